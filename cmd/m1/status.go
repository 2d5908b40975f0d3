// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show how many targets of a search are queued and running",
	Long: `Status fetches the current progress of a batch search. A search is
finished when nothing is queued or running. The observed status is saved
in the local ledger.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	id := args[0]
	st, err := client.BatchSearchFromID(id).Status(ctx)
	if err != nil {
		return err
	}
	withLedger(func(l *ledger.Ledger) error {
		return l.RecordStatus(ctx, id, st, time.Now())
	})

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeOutput(os.Stdout, map[string]any{
			"id":       id,
			"queued":   st.Queued,
			"running":  st.Running,
			"finished": st.Finished(),
		}, "json")
	}

	state := "in progress"
	if st.Finished() {
		state = "finished"
	}
	fmt.Printf("%s: %s (queued %d, running %d)\n", id, state, st.Queued, st.Running)
	return nil
}

func init() {
	statusCmd.Flags().Bool("json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}
