// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package targets reads target molecules from files for submission.
//
// Three formats are accepted, picked by extension:
//
//	.yaml, .yml  a list of SMILES strings or of objects with a smiles field
//	.json        the same shapes as YAML
//	anything else  plain text, one SMILES per line; blank lines and lines
//	               starting with # are skipped
//
// Object items may carry extra fields, which travel to the service as
// per-target metadata.
package targets

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/m1score/pkg/m1"
)

// Load reads path and returns one item per target. Every item has a
// "smiles" key.
func Load(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening targets file: %w", err)
	}
	defer f.Close()

	items, err := Parse(f, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Format names a targets file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Parse decodes targets from r in the given format.
func Parse(r io.Reader, format Format) ([]map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}

	var items []map[string]any
	switch format {
	case FormatYAML:
		var raw []any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		items, err = normalize(raw)
	case FormatJSON:
		var raw []any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		items, err = normalize(raw)
	case FormatText:
		items, err = parseText(data)
	default:
		return nil, fmt.Errorf("unknown targets format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no targets found")
	}
	return items, nil
}

func normalize(raw []any) ([]map[string]any, error) {
	items := make([]map[string]any, 0, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case string:
			items = append(items, map[string]any{m1.TargetKey: v})
		case map[string]any:
			items = append(items, v)
		default:
			return nil, fmt.Errorf("item %d: expected a SMILES string or an object, got %T", i, v)
		}
	}
	return items, nil
}

func parseText(data []byte) ([]map[string]any, error) {
	var items []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, map[string]any{m1.TargetKey: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return items, nil
}
