// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"
)

// ExportYAML writes every tracked search, deleted ones included, to w.
func (l *Ledger) ExportYAML(ctx context.Context, w io.Writer) error {
	records, err := l.List(ctx, true)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if records == nil {
		records = []Record{}
	}

	data, err := yaml.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes every tracked search, deleted ones included, to w.
func (l *Ledger) ExportJSON(ctx context.Context, w io.Writer) error {
	records, err := l.List(ctx, true)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
