// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/internal/ledger"
	"github.com/pdiddy/m1score/pkg/logger"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete batch searches from the service",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		var failed int
		for _, id := range args {
			if err := client.DeleteBatchSearch(ctx, id); err != nil {
				log.Error("delete failed", logger.String("id", id), logger.Error(err))
				failed++
				continue
			}
			withLedger(func(l *ledger.Ledger) error {
				return l.MarkDeleted(ctx, id, time.Now())
			})
			fmt.Println("Deleted", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d search(es) could not be deleted", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
