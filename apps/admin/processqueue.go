package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) processQueue(limit int) error {
	stats, err := cli.orchestrator.ProcessQueue(context.Background(), limit)
	if err != nil {
		return err
	}
	fmt.Printf("processed=%d sent=%d retried=%d failed=%d skipped=%d suppressed=%d\n",
		stats.Processed, stats.Sent, stats.Retried, stats.Failed, stats.Skipped, stats.Suppressed)
	return nil
}
