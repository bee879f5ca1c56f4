package contest

import "sort"

// RankMap assigns competition ranks ("1224" style) to user IDs from
// their scores. Equal scores share a rank and the next distinct score
// skips as many positions as there were ties above it. Iteration over
// the input map is order-independent.
func RankMap(scores map[int]int) map[int]int {
	if len(scores) == 0 {
		return map[int]int{}
	}

	type entry struct {
		userID int
		score  int
	}
	entries := make([]entry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, entry{id, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].userID < entries[j].userID
	})

	ranks := make(map[int]int, len(entries))
	for i, e := range entries {
		if i > 0 && e.score == entries[i-1].score {
			ranks[e.userID] = ranks[entries[i-1].userID]
			continue
		}
		ranks[e.userID] = i + 1
	}
	return ranks
}
