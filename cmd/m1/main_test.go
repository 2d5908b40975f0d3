// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/m1score/internal/ledger"
	"github.com/pdiddy/m1score/pkg/types"
)

func TestParseParams(t *testing.T) {
	got := parseParams(map[string]string{
		"steps":   "5",
		"exact":   "true",
		"weights": "[1, 2]",
		"model":   "fast",
		"mixed":   "5 apples",
	})
	assert.Equal(t, map[string]any{
		"steps":   json.Number("5"),
		"exact":   true,
		"weights": []any{json.Number("1"), json.Number("2")},
		"model":   "fast",
		"mixed":   "5 apples",
	}, got)

	assert.Nil(t, parseParams(nil))
}

func newSubmitFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringP("file", "f", "", "")
	cmd.Flags().StringToString("params", nil, "")
	cmd.Flags().String("detail-level", "", "")
	cmd.Flags().String("priority", "", "")
	cmd.Flags().String("invalid-targets", "", "")
	cmd.Flags().StringSlice("starting-materials", nil, "")
	cmd.Flags().String("preset", "", "")
	cmd.Flags().String("name", "", "")
	addResultsFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestRequestFromFlags(t *testing.T) {
	cmd := newSubmitFlags(t,
		"--detail-level", "best_path",
		"--priority", "high",
		"--invalid-targets", "pass",
		"--starting-materials", "CC,O",
		"--preset", "fast",
		"--name", "trial",
		"--params", "steps=3",
	)
	req, err := requestFromFlags(cmd)
	require.NoError(t, err)

	assert.Equal(t, types.DetailBestPath, req.DetailLevel)
	assert.Equal(t, types.PriorityHigh, req.Priority)
	assert.Equal(t, types.InvalidTargetsPass, req.InvalidTargetStrategy)
	assert.Equal(t, []string{"CC", "O"}, req.StartingMaterials)
	assert.Equal(t, "fast", req.Preset)
	assert.Equal(t, "trial", req.Name)
	assert.Equal(t, map[string]any{"steps": json.Number("3")}, req.Parameters)
}

func TestRequestFromFlagsLeavesStartingMaterialsUnset(t *testing.T) {
	req, err := requestFromFlags(newSubmitFlags(t))
	require.NoError(t, err)
	assert.Nil(t, req.StartingMaterials)
}

func TestRequestFromFlagsRejectsUnknownEnums(t *testing.T) {
	for _, args := range [][]string{
		{"--detail-level", "everything"},
		{"--priority", "urgent"},
		{"--invalid-targets", "ignore"},
	} {
		_, err := requestFromFlags(newSubmitFlags(t, args...))
		assert.Error(t, err, "%v", args)
	}
}

func TestCollectTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- smiles: cc\n  tag: x\n"), 0o644))

	cmd := newSubmitFlags(t, "--file", path)
	items, err := collectTargets(cmd, []string{"CCO"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"smiles": "CCO"},
		{"smiles": "cc", "tag": "x"},
	}, items)

	_, err = collectTargets(newSubmitFlags(t), nil)
	assert.ErrorContains(t, err, "no targets")
}

func TestResultsOptionsFromFlags(t *testing.T) {
	opts, err := resultsOptionsFromFlags(newSubmitFlags(t))
	require.NoError(t, err)
	assert.Nil(t, opts.Precision)
	assert.Empty(t, opts.Only)

	opts, err = resultsOptionsFromFlags(newSubmitFlags(t, "--precision", "0", "--only", "result,price"))
	require.NoError(t, err)
	require.NotNil(t, opts.Precision)
	assert.Equal(t, 0, *opts.Precision)
	assert.Equal(t, []string{"result", "price"}, opts.Only)

	_, err = resultsOptionsFromFlags(newSubmitFlags(t, "--precision", "-2"))
	assert.Error(t, err)
}

func TestWriteOutputYAMLUnquotesNumbers(t *testing.T) {
	results := []map[string]any{
		{"targetSmiles": "CCO", "result": json.Number("3.5"), "count": json.Number("7"), "price": "12.00"},
	}
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, results, "yaml"))

	out := buf.String()
	assert.Contains(t, out, "result: 3.5\n")
	assert.Contains(t, out, "count: 7\n")
	assert.Contains(t, out, `price: "12.00"`)
}

func TestWriteOutputJSONKeepsNumbers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, []map[string]any{{"result": json.Number("0.10")}}, "json"))
	assert.Contains(t, buf.String(), `"result": 0.10`)
}

func TestWriteOutputUnknownFormat(t *testing.T) {
	assert.Error(t, writeOutput(&bytes.Buffer{}, nil, "csv"))
}

func TestWriteOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeOutputFile(path, map[string]any{"a": 1}, "json"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(data))
}

func TestRecordState(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "unknown", recordState(ledger.Record{}))
	assert.Equal(t, "running", recordState(ledger.Record{CheckedAt: &now, Queued: 1}))
	assert.Equal(t, "finished", recordState(ledger.Record{CheckedAt: &now, Finished: true}))
	assert.Equal(t, "deleted", recordState(ledger.Record{CheckedAt: &now, Finished: true, DeletedAt: &now}))
}
