package main

import (
	"context"
	"fmt"
)

// sendEmails works a contest's queued report emails. With resendFailed
// set, permanently failed rows get a fresh attempt cycle first.
func (cli *commandLine) sendEmails(contestID int, resendFailed bool) error {
	ctx := context.Background()

	c, err := cli.contestSvc.Get(ctx, contestID)
	if err != nil {
		return err
	}

	if resendFailed {
		n, err := cli.orchestrator.ResendFailed(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Printf("requeued %d failed email(s) for %q\n", n, c.Name)
	} else if err = cli.orchestrator.EnqueueContestResults(ctx, c); err != nil {
		return err
	}

	return cli.processQueue(0)
}
