// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a batch search as returned by the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		search, err := client.BatchSearchFromID(args[0]).Get(ctx)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return writeOutput(os.Stdout, search, format)
	},
}

func init() {
	getCmd.Flags().String("format", "json", "output format: json or yaml")
	rootCmd.AddCommand(getCmd)
}
