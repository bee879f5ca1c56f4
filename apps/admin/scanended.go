package main

import (
	"context"
	"fmt"
)

// scanEnded finishes contests past their end time, queueing their
// report emails, and optionally works the queue right after.
func (cli *commandLine) scanEnded(limit int, process bool, processLimit int, dryRun bool) error {
	ctx := context.Background()

	finished, err := cli.contestSvc.FinishEndedContests(ctx, limit, dryRun)
	if err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("would finish %d contest(s)\n", len(finished))
		for _, c := range finished {
			fmt.Printf("  %d: %s (ended %s)\n", c.ID, c.Name, c.EndTime.Time.Format("2006-01-02 15:04"))
		}
		return nil
	}
	fmt.Printf("finished %d contest(s)\n", len(finished))

	if process {
		return cli.processQueue(processLimit)
	}
	return nil
}
