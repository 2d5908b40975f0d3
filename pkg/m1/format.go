// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package m1

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pdiddy/m1score/internal/traverse"
	"github.com/pdiddy/m1score/pkg/types"
)

// FormatResults rewrites the numeric result fields (result, certainty,
// price) of every record in results as fixed-point strings with exactly
// precision decimal places. Absent and falsy values (null, 0, "", false)
// and values that are not numbers are left as they are.
func FormatResults(results any, precision int) any {
	fn := FixedPoint(precision)
	for _, field := range types.NumericResultFields {
		results = traverse.Modify(results, traverse.Path{traverse.Each(), traverse.Key(field)}, fn)
	}
	return results
}

// FixedPoint returns a transform that renders a number, or a string holding
// a number, with precision decimal places.
func FixedPoint(precision int) func(any) any {
	return func(v any) any {
		if isFalsy(v) {
			return v
		}
		f, ok := toFloat(v)
		if !ok {
			return v
		}
		return strconv.FormatFloat(f, 'f', precision, 64)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == 0
	case float64:
		return x == 0
	case float32:
		return x == 0
	case int:
		return x == 0
	case int64:
		return x == 0
	}
	return false
}
