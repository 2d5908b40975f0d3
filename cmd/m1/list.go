// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/m1score/internal/ledger"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch searches",
	Long: `List prints the batch searches the service knows about for this account.

With --local it lists the searches recorded in the local ledger instead,
with the last status seen for each. --export dumps the whole ledger,
deleted searches included, as JSON or YAML.`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	local, _ := cmd.Flags().GetBool("local")
	export, _ := cmd.Flags().GetString("export")
	if local || export != "" {
		return runListLocal(cmd, export)
	}

	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext()
	defer cancel()

	searches, err := client.ListSearches(ctx)
	if err != nil {
		return err
	}
	return writeOutput(os.Stdout, searches, "json")
}

func runListLocal(cmd *cobra.Command, export string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("the ledger is disabled: set --ledger or ledger.path")
	}
	defer l.Close()

	ctx, cancel := commandContext()
	defer cancel()

	switch export {
	case "":
	case "yaml":
		return l.ExportYAML(ctx, os.Stdout)
	case "json":
		return l.ExportJSON(ctx, os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", export)
	}

	all, _ := cmd.Flags().GetBool("all")
	records, err := l.List(ctx, all)
	if err != nil {
		return err
	}
	return formatLedger(records)
}

func formatLedger(records []ledger.Record) error {
	if len(records) == 0 {
		fmt.Println("No searches recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-24s  %-20s  %-7s  %-6s  %-7s  %-8s  %s\n",
		"ID", "Name", "Targets", "Queued", "Running", "State", "Submitted")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))

	for _, r := range records {
		name := r.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-24s  %-20s  %-7d  %-6d  %-7d  %-8s  %s\n",
			r.ID, name, r.Targets, r.Queued, r.Running, recordState(r), formatStamp(r.SubmittedAt))
	}

	fmt.Fprintf(os.Stdout, "\n%d searches\n", len(records))
	return nil
}

func recordState(r ledger.Record) string {
	switch {
	case r.DeletedAt != nil:
		return "deleted"
	case r.CheckedAt == nil:
		return "unknown"
	case r.Finished:
		return "finished"
	default:
		return "running"
	}
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func init() {
	listCmd.Flags().Bool("local", false, "list searches from the local ledger")
	listCmd.Flags().Bool("all", false, "with --local, include deleted searches")
	listCmd.Flags().String("export", "", "export the local ledger as yaml or json")

	rootCmd.AddCommand(listCmd)
}
