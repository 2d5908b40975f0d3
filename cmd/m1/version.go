package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/pkg/m1"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of m1",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("m1 %s (client library %s)\n", version, m1.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
