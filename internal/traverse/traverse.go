// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package traverse walks decoded JSON structures (map[string]any, []any and
// scalars) and rewrites the values found at a structural path.
//
// A path is a list of segments. A key segment descends into a mapping entry;
// an Each segment descends into every element of a sequence. Paths are
// written as dot-separated keys with "[]" marking a sequence:
//
//	"price"          top-level key
//	"[].price"       key inside every element of a top-level sequence
//	"routes[].score" key inside every element of the "routes" sequence
package traverse

import (
	"strings"
)

// Segment is one step of a Path.
type Segment struct {
	Key  string
	Each bool
}

// Path is the structural location of a node inside a decoded document.
type Path []Segment

// Key returns a key segment.
func Key(k string) Segment { return Segment{Key: k} }

// Each returns the "every element of the sequence" segment.
func Each() Segment { return Segment{Each: true} }

// Equal reports whether p and other have the same segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders p in the same syntax ParsePath accepts.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.Each {
			b.WriteString("[]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// ParsePath converts a path string into a Path. Empty key parts are
// skipped, so "a..b" and ".a.b" both parse as [a b].
//
//	ParsePath("foo")       -> [foo]
//	ParsePath("foo.bar")   -> [foo bar]
//	ParsePath("foo.bar[]") -> [foo bar []]
//	ParsePath("[].price")  -> [[] price]
func ParsePath(s string) Path {
	var p Path
	chunks := strings.Split(s, "[]")
	for i, chunk := range chunks {
		for _, part := range strings.Split(strings.Trim(chunk, "."), ".") {
			if part == "" {
				continue
			}
			p = append(p, Key(part))
		}
		if i < len(chunks)-1 {
			p = append(p, Each())
		}
	}
	return p
}

// Walk visits every node of v exactly once, children before parents, and
// returns a new structure assembled from the callback's return values.
// Mappings and sequences are rebuilt, never mutated in place. The callback
// receives the node's path and the node with its children already rebuilt.
// A nil callback returns a structural copy of v.
func Walk(v any, cb func(Path, any) any) any {
	return walk(v, nil, cb)
}

func walk(v any, path Path, cb func(Path, any) any) any {
	var out any
	switch node := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(node))
		for k, child := range node {
			m[k] = walk(child, appendSegment(path, Key(k)), cb)
		}
		out = m
	case []any:
		s := make([]any, len(node))
		for i, child := range node {
			s[i] = walk(child, appendSegment(path, Each()), cb)
		}
		out = s
	default:
		out = v
	}
	if cb == nil {
		return out
	}
	return cb(path, out)
}

// appendSegment returns a fresh slice so sibling paths never share storage.
func appendSegment(p Path, s Segment) Path {
	next := make(Path, len(p), len(p)+1)
	copy(next, p)
	return append(next, s)
}

// Modify returns a copy of v in which every node whose path equals target
// exactly has been replaced by fn(node). Matching is whole-path equality:
// a prefix or a longer path never matches.
//
// A target that matches nothing, including a malformed or misspelled path,
// is not an error. The result is then an unmodified copy of v, so callers
// that depend on a rewrite taking effect must check for it themselves.
func Modify(v any, target Path, fn func(any) any) any {
	return Walk(v, func(p Path, node any) any {
		if p.Equal(target) {
			return fn(node)
		}
		return node
	})
}

// ModifyString is Modify with a path string parsed by ParsePath.
func ModifyString(v any, target string, fn func(any) any) any {
	return Modify(v, ParsePath(target), fn)
}
