// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package m1

import (
	"fmt"
	"strings"
)

// TargetKey is the item field holding the molecule encoding.
const TargetKey = "smiles"

// SplitTargets separates items of the form {"smiles": ..., extra...} into
// the bare target list and a metadata map from item index to the extra
// fields. Items with no extra fields get no metadata entry, and a nil map
// is returned when no item has any. Every item must have a non-empty
// string "smiles" field.
func SplitTargets(items []map[string]any) ([]string, map[int]map[string]any, error) {
	targets := make([]string, 0, len(items))
	var metadata map[int]map[string]any

	for i, item := range items {
		raw, ok := item[TargetKey]
		if !ok {
			return nil, nil, fmt.Errorf("item %d has no %q field", i, TargetKey)
		}
		target, ok := raw.(string)
		if !ok || strings.TrimSpace(target) == "" {
			return nil, nil, fmt.Errorf("item %d: %q must be a non-empty string", i, TargetKey)
		}
		targets = append(targets, target)

		if len(item) == 1 {
			continue
		}
		extra := make(map[string]any, len(item)-1)
		for k, v := range item {
			if k != TargetKey {
				extra[k] = v
			}
		}
		if metadata == nil {
			metadata = make(map[int]map[string]any)
		}
		metadata[i] = extra
	}
	return targets, metadata, nil
}
