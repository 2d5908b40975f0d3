// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/internal/ledger"
	"github.com/pdiddy/m1score/internal/targets"
	"github.com/pdiddy/m1score/pkg/m1"
	"github.com/pdiddy/m1score/pkg/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit [smiles...]",
	Short: "Submit a batch of targets for scoring",
	Long: `Submit sends a batch search to the service and prints its id. Targets come
from the arguments, from --file, or both (arguments first).

A targets file may be YAML or JSON (a list of SMILES strings or of objects
with a smiles field; extra fields are sent as per-target metadata) or plain
text with one SMILES per line.

With --wait, submit polls until the search finishes and prints the results.`,
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	items, err := collectTargets(cmd, args)
	if err != nil {
		return err
	}
	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	req.Targets, req.TargetsMetadata, err = m1.SplitTargets(items)
	if err != nil {
		return err
	}

	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	search, err := client.RunBatchSearch(ctx, req)
	if err != nil {
		return err
	}
	withLedger(func(l *ledger.Ledger) error {
		return l.RecordSubmission(ctx, search.ID(), req.WithDefaults(), time.Now())
	})

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		fmt.Println(search.ID())
		return nil
	}

	opts, err := resultsOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	results, err := search.Results(ctx, opts)
	if err != nil {
		return err
	}
	withLedger(func(l *ledger.Ledger) error {
		return l.RecordStatus(ctx, search.ID(), types.Status{}, time.Now())
	})

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	return writeOutputFile(out, results, format)
}

func collectTargets(cmd *cobra.Command, args []string) ([]map[string]any, error) {
	items := make([]map[string]any, 0, len(args))
	for _, a := range args {
		items = append(items, map[string]any{m1.TargetKey: a})
	}

	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		fromFile, err := targets.Load(file)
		if err != nil {
			return nil, err
		}
		items = append(items, fromFile...)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("no targets: pass SMILES arguments or --file")
	}
	return items, nil
}

func requestFromFlags(cmd *cobra.Command) (types.SearchRequest, error) {
	var req types.SearchRequest

	if s, _ := cmd.Flags().GetString("detail-level"); s != "" {
		d, err := types.ParseDetailLevel(s)
		if err != nil {
			return req, err
		}
		req.DetailLevel = d
	}
	if s, _ := cmd.Flags().GetString("priority"); s != "" {
		p, err := types.ParsePriority(s)
		if err != nil {
			return req, err
		}
		req.Priority = p
	}
	if s, _ := cmd.Flags().GetString("invalid-targets"); s != "" {
		v, err := types.ParseInvalidTargetStrategy(s)
		if err != nil {
			return req, err
		}
		req.InvalidTargetStrategy = v
	}

	if cmd.Flags().Changed("starting-materials") {
		req.StartingMaterials, _ = cmd.Flags().GetStringSlice("starting-materials")
	}
	req.Preset, _ = cmd.Flags().GetString("preset")
	req.Name, _ = cmd.Flags().GetString("name")

	raw, _ := cmd.Flags().GetStringToString("params")
	req.Parameters = parseParams(raw)
	return req, nil
}

// parseParams turns k=v flag pairs into search parameters. Values that parse
// as JSON (numbers, booleans, lists, objects) keep their JSON type; anything
// else is sent as a string.
func parseParams(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	params := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err == nil && !dec.More() {
			params[k] = decoded
			continue
		}
		params[k] = v
	}
	return params
}

func init() {
	submitCmd.Flags().StringP("file", "f", "", "read targets from a YAML, JSON, or plain-text file")
	submitCmd.Flags().StringToString("params", nil, "search parameter as key=value (repeatable)")
	submitCmd.Flags().String("detail-level", "", "score, best_path, or all_paths (default score)")
	submitCmd.Flags().String("priority", "", "lowest, low, normal, high, highest, or 1-10 (default normal)")
	submitCmd.Flags().String("invalid-targets", "", "reject or pass (default reject)")
	submitCmd.Flags().StringSlice("starting-materials", nil, "restrict building blocks to these SMILES")
	submitCmd.Flags().String("preset", "", "server-side parameter preset")
	submitCmd.Flags().String("name", "", "display name for the search")
	submitCmd.Flags().Bool("wait", false, "wait for the search to finish and print results")
	addResultsFlags(submitCmd)

	rootCmd.AddCommand(submitCmd)
}
