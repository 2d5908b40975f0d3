// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the request, status and configuration structures
// shared by the scoring client, the local ledger and the m1 CLI.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Priority is a scheduling hint for the scoring service. The numeric values
// are sent on the wire unchanged.
type Priority int

const (
	PriorityLowest  Priority = 1
	PriorityLow     Priority = 3
	PriorityNormal  Priority = 5
	PriorityHigh    Priority = 8
	PriorityHighest Priority = 10
)

var priorityNames = map[Priority]string{
	PriorityLowest:  "lowest",
	PriorityLow:     "low",
	PriorityNormal:  "normal",
	PriorityHigh:    "high",
	PriorityHighest: "highest",
}

// Valid reports whether p is one of the five named levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// ParsePriority accepts a level name ("high") or its numeric value ("8").
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return 0, fmt.Errorf("unknown priority %q: use lowest, low, normal, high, or highest", s)
}

// DetailLevel selects how much synthesis detail the service returns.
type DetailLevel string

const (
	DetailScore    DetailLevel = "score"
	DetailBestPath DetailLevel = "best_path"
	DetailAllPaths DetailLevel = "all_paths"
)

// Valid reports whether d is a known detail level.
func (d DetailLevel) Valid() bool {
	switch d {
	case DetailScore, DetailBestPath, DetailAllPaths:
		return true
	}
	return false
}

// ParseDetailLevel validates a detail level name.
func ParseDetailLevel(s string) (DetailLevel, error) {
	d := DetailLevel(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown detail level %q: use score, best_path, or all_paths", s)
	}
	return d, nil
}

// InvalidTargetStrategy tells the service what to do with targets it
// cannot parse.
type InvalidTargetStrategy string

const (
	// InvalidTargetsReject fails the whole submission.
	InvalidTargetsReject InvalidTargetStrategy = "reject"
	// InvalidTargetsPass accepts the batch and reports the bad targets in results.
	InvalidTargetsPass InvalidTargetStrategy = "pass"
)

// Valid reports whether s is a known strategy.
func (s InvalidTargetStrategy) Valid() bool {
	return s == InvalidTargetsReject || s == InvalidTargetsPass
}

// ParseInvalidTargetStrategy validates a strategy name.
func ParseInvalidTargetStrategy(s string) (InvalidTargetStrategy, error) {
	v := InvalidTargetStrategy(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("unknown invalid-target strategy %q: use reject or pass", s)
	}
	return v, nil
}

// SearchRequest describes a batch search to submit. Zero-valued
// DetailLevel, Priority and InvalidTargetStrategy are replaced by the
// defaults (score, normal, reject) and always sent; the remaining optional
// fields are omitted from the payload when unset.
type SearchRequest struct {
	// Targets are the molecule encodings to score, in order.
	Targets []string `json:"targets" yaml:"targets"`

	// Parameters is passed through to the service verbatim.
	Parameters map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	DetailLevel           DetailLevel           `json:"detail_level" yaml:"detail_level"`
	Priority              Priority              `json:"priority" yaml:"priority"`
	InvalidTargetStrategy InvalidTargetStrategy `json:"invalid_target_strategy" yaml:"invalid_target_strategy"`

	// StartingMaterials restricts the purchasable building blocks. Nil omits
	// the key; an empty non-nil list is sent as [].
	StartingMaterials []string `json:"starting_materials" yaml:"starting_materials,omitempty"`

	// Preset names a server-side parameter preset.
	Preset string `json:"preset,omitempty" yaml:"preset,omitempty"`

	// Name is a display name for the search.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// TargetsMetadata holds extra per-target fields keyed by target index.
	TargetsMetadata map[int]map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MarshalJSON encodes the request payload. starting_materials is left out
// only when StartingMaterials is nil.
func (r SearchRequest) MarshalJSON() ([]byte, error) {
	type payload SearchRequest
	out := struct {
		payload
		StartingMaterials *[]string `json:"starting_materials,omitempty"`
	}{payload: payload(r)}
	if r.StartingMaterials != nil {
		out.StartingMaterials = &r.StartingMaterials
	}
	return json.Marshal(out)
}

// WithDefaults returns a copy of r with the always-sent enumerations set.
func (r SearchRequest) WithDefaults() SearchRequest {
	if r.DetailLevel == "" {
		r.DetailLevel = DetailScore
	}
	if r.Priority == 0 {
		r.Priority = PriorityNormal
	}
	if r.InvalidTargetStrategy == "" {
		r.InvalidTargetStrategy = InvalidTargetsReject
	}
	return r
}

// Validate checks the request before it is sent.
func (r SearchRequest) Validate() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("at least one target is required")
	}
	for i, t := range r.Targets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("target %d is empty", i)
		}
	}
	if !r.DetailLevel.Valid() {
		return fmt.Errorf("invalid detail level %q", r.DetailLevel)
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority %d", int(r.Priority))
	}
	if !r.InvalidTargetStrategy.Valid() {
		return fmt.Errorf("invalid target strategy %q", r.InvalidTargetStrategy)
	}
	for i := range r.TargetsMetadata {
		if i < 0 || i >= len(r.Targets) {
			return fmt.Errorf("metadata index %d out of range for %d targets", i, len(r.Targets))
		}
	}
	return nil
}

// Status is a snapshot of a search's progress.
type Status struct {
	Queued  int `json:"queued" yaml:"queued"`
	Running int `json:"running" yaml:"running"`
}

// Finished reports whether no sub-task is queued or running.
func (s Status) Finished() bool {
	return s.Queued == 0 && s.Running == 0
}

// Result fields the client reformats when a precision is requested.
const (
	FieldResult    = "result"
	FieldCertainty = "certainty"
	FieldPrice     = "price"
)

// NumericResultFields lists the fields reformatted to a fixed precision.
var NumericResultFields = []string{FieldResult, FieldCertainty, FieldPrice}

// ResultsOptions controls a results fetch.
type ResultsOptions struct {
	// Precision, when set, is the number of decimal places for the numeric
	// result fields. Nil returns numbers exactly as the service sent them.
	Precision *int

	// Only restricts the returned fields.
	Only []string
}

// Precision is a helper for building ResultsOptions literals.
func Precision(n int) *int { return &n }
