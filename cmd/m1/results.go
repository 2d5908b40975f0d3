// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/internal/ledger"
	"github.com/pdiddy/m1score/pkg/types"
)

var resultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Fetch the results of a batch search",
	Long: `Results waits for the search to finish, polling its status every
poll_interval, and prints the results. Interrupt to stop waiting.

With --partial the results are fetched immediately, finished or not.
With --precision the result, certainty and price fields are printed as
fixed-point strings; otherwise numbers are printed as the service sent them.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func runResults(cmd *cobra.Command, args []string) error {
	opts, err := resultsOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	search := client.BatchSearchFromID(args[0])
	partial, _ := cmd.Flags().GetBool("partial")

	var results []map[string]any
	if partial {
		results, err = search.PartialResults(ctx, opts)
	} else {
		results, err = search.Results(ctx, opts)
	}
	if err != nil {
		return err
	}
	if !partial {
		withLedger(func(l *ledger.Ledger) error {
			return l.RecordStatus(ctx, search.ID(), types.Status{}, time.Now())
		})
	}

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	return writeOutputFile(out, results, format)
}

// resultsOptionsFromFlags reads --precision and --only. A negative
// --precision (the default) leaves numbers unformatted.
func resultsOptionsFromFlags(cmd *cobra.Command) (types.ResultsOptions, error) {
	var opts types.ResultsOptions
	if cmd.Flags().Changed("precision") {
		p, _ := cmd.Flags().GetInt("precision")
		if p < 0 {
			return opts, fmt.Errorf("--precision must not be negative")
		}
		opts.Precision = types.Precision(p)
	}
	opts.Only, _ = cmd.Flags().GetStringSlice("only")
	return opts, nil
}

func addResultsFlags(cmd *cobra.Command) {
	cmd.Flags().Int("precision", -1, "decimal places for result, certainty and price")
	cmd.Flags().StringSlice("only", nil, "return only these fields")
	cmd.Flags().String("format", "json", "output format: json or yaml")
	cmd.Flags().StringP("out", "o", "", "write results to a file instead of stdout")
}

func init() {
	addResultsFlags(resultsCmd)
	resultsCmd.Flags().Bool("partial", false, "fetch results now without waiting for the search to finish")

	rootCmd.AddCommand(resultsCmd)
}
