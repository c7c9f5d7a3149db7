// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package attrjson implements the attribute codec for N5 metadata:
// JSON attribute documents with deep-merge insertion, path-addressed
// reads, and removal at a path.
//
// A document is a plain map[string]any as produced by encoding/json.
// A nil map means "no document". Attribute paths are dot-separated
// (the normalized form produced by the container layer); reads and
// removals at a path go through gjson/sjson so nested addressing
// follows one well-defined syntax.
package attrjson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dario.cat/mergo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Parse decodes an attribute document. Empty input, a JSON null, a
// non-object value, or malformed JSON all yield (nil, false): a
// partially written or foreign metadata file reads as "no document"
// rather than failing the whole operation.
func Parse(data []byte) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, false
	}
	if doc == nil {
		return nil, false
	}
	return doc, true
}

// Encode serializes a document. A nil document encodes as the empty
// object.
func Encode(doc map[string]any) ([]byte, error) {
	if doc == nil {
		doc = map[string]any{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding attributes: %w", err)
	}
	return data, nil
}

// Clone deep-copies a document via a JSON roundtrip, so callers can
// merge into or mutate the copy without aliasing cached state.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	clone, _ := Parse(data)
	return clone
}

// Merge deep-merges overlay on top of base and returns the merged
// document. Keys absent from overlay keep their base values; nested
// objects merge recursively; on conflicting keys the overlay wins,
// including zero and null values. Neither input is mutated.
func Merge(base, overlay map[string]any) (map[string]any, error) {
	merged := Clone(base)
	if merged == nil {
		merged = map[string]any{}
	}
	if len(overlay) == 0 {
		return merged, nil
	}
	if err := mergo.Merge(&merged, Clone(overlay), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging attributes: %w", err)
	}
	applyNulls(merged, overlay)
	return merged, nil
}

// applyNulls re-applies explicit JSON nulls from the overlay. The
// generic merge treats a nil value as empty and skips it, but a null
// written by the caller must win like any other value.
func applyNulls(merged, overlay map[string]any) {
	for key, value := range overlay {
		switch value := value.(type) {
		case nil:
			merged[key] = nil
		case map[string]any:
			if nested, ok := merged[key].(map[string]any); ok {
				applyNulls(nested, value)
			}
		}
	}
}

// Get returns the raw JSON value at a normalized attribute path. The
// empty path addresses the whole document.
func Get(doc map[string]any, path string) (json.RawMessage, bool) {
	data, err := Encode(doc)
	if err != nil {
		return nil, false
	}
	if path == "" {
		return data, doc != nil
	}
	result := gjson.GetBytes(data, path)
	if !result.Exists() {
		return nil, false
	}
	return json.RawMessage(result.Raw), true
}

// GetInto decodes the value at a normalized attribute path into v.
// The boolean reports whether the path was present; a present value
// that does not decode into v is an error.
func GetInto(doc map[string]any, path string, v any) (bool, error) {
	raw, ok := Get(doc, path)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("attribute %q: %w", path, err)
	}
	return true, nil
}

// Remove deletes the value at a normalized attribute path and
// returns the resulting document, the removed raw value, and whether
// anything was removed. The input document is not mutated.
func Remove(doc map[string]any, path string) (map[string]any, json.RawMessage, bool) {
	removed, ok := Get(doc, path)
	if !ok {
		return doc, nil, false
	}
	data, err := Encode(doc)
	if err != nil {
		return doc, nil, false
	}
	modified, err := sjson.DeleteBytes(data, path)
	if err != nil {
		return doc, nil, false
	}
	result, _ := Parse(modified)
	if result == nil {
		result = map[string]any{}
	}
	return result, removed, true
}

// TypeNames maps each top-level attribute name to the name of its
// JSON type: "null", "boolean", "number", "string", "array" or
// "object".
func TypeNames(doc map[string]any) map[string]string {
	names := make(map[string]string, len(doc))
	for key, value := range doc {
		names[key] = typeName(value)
	}
	return names
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "object"
	}
}
