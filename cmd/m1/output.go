// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/m1score/internal/traverse"
)

// writeOutput encodes v to w as JSON or YAML.
func writeOutput(w io.Writer, v any, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		data, err := yaml.Marshal(yamlNumbers(v))
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}
}

// writeOutputFile writes to path, or to stdout when path is empty.
func writeOutputFile(path string, v any, format string) error {
	if path == "" {
		return writeOutput(os.Stdout, v, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := writeOutput(f, v, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// yamlNumbers replaces json.Number leaves with native numbers so YAML
// renders them unquoted.
func yamlNumbers(v any) any {
	return traverse.Walk(toGeneric(v), func(_ traverse.Path, node any) any {
		n, ok := node.(json.Number)
		if !ok {
			return node
		}
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f
		}
		return string(n)
	})
}

// toGeneric lifts the record slices the client returns into the []any and
// map[string]any shapes the walker descends into.
func toGeneric(v any) any {
	switch v := v.(type) {
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	default:
		return v
	}
}
