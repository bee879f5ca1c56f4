package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) regenerateSummaries(contestID int, all bool) error {
	ctx := context.Background()

	if !all {
		notes, err := cli.summarySvc.Regenerate(ctx, contestID)
		if err != nil {
			return err
		}
		fmt.Printf("regenerated %d key note(s) for contest %d\n", len(notes), contestID)
		return nil
	}

	contests, err := cli.contestSvc.QueryFinished(ctx)
	if err != nil {
		return err
	}
	for _, c := range contests {
		notes, err := cli.summarySvc.Regenerate(ctx, c.ID)
		if err != nil {
			logger.Error("regenerating summaries", "contest", c.ID, "err", err)
			continue
		}
		fmt.Printf("regenerated %d key note(s) for %q\n", len(notes), c.Name)
	}
	return nil
}
