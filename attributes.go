// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"encoding/json"
	"fmt"

	"github.com/ctrueden/n5/attrjson"
	"github.com/ctrueden/n5/compression"
)

// Reserved attribute keys. A node whose document carries both
// KeyDimensions and KeyDataType is a dataset.
const (
	KeyDimensions  = "dimensions"
	KeyDataType    = "dataType"
	KeyBlockSize   = "blockSize"
	KeyCompression = "compression"

	// KeyCompressionType is the legacy version-0 encoding of the
	// codec: a bare string name instead of a descriptor object.
	KeyCompressionType = "compressionType"
)

// DatasetAttributes are the structural attributes of one dataset.
type DatasetAttributes struct {
	// Dimensions is the dataset's extent per axis, slowest-varying
	// axis last.
	Dimensions []int64

	// BlockSize is the chunk extent per axis. When absent on read it
	// defaults to Dimensions narrowed to int32.
	BlockSize []int32

	// DataType is the scalar element type.
	DataType DataType

	// Compression encodes block payloads. nil reads and writes raw
	// bytes.
	Compression compression.Compression
}

// Validate checks the structural attributes before a dataset is
// created.
func (a *DatasetAttributes) Validate() error {
	if len(a.Dimensions) == 0 {
		return fmt.Errorf("dataset needs at least one dimension")
	}
	for i, d := range a.Dimensions {
		if d < 0 {
			return fmt.Errorf("dimension %d is negative: %d", i, d)
		}
	}
	if !a.DataType.Valid() {
		return fmt.Errorf("unknown data type %q", a.DataType)
	}
	if len(a.BlockSize) != 0 && len(a.BlockSize) != len(a.Dimensions) {
		return fmt.Errorf("block size has %d axes, dimensions %d",
			len(a.BlockSize), len(a.Dimensions))
	}
	for i, b := range a.BlockSize {
		if b <= 0 {
			return fmt.Errorf("block size %d is not positive: %d", i, b)
		}
	}
	return nil
}

// Document encodes the structural attributes as an attribute document
// fragment, ready to merge into a node's document. A nil Compression
// is written as the raw codec; an empty BlockSize is filled in from
// Dimensions.
func (a *DatasetAttributes) Document() (map[string]any, error) {
	codec := a.Compression
	if codec == nil {
		codec = compression.Raw{}
	}
	descriptor, err := compression.Marshal(codec)
	if err != nil {
		return nil, err
	}
	blockSize := a.BlockSize
	if len(blockSize) == 0 {
		blockSize = narrowDimensions(a.Dimensions)
	}
	encoded, err := json.Marshal(struct {
		Dimensions  []int64         `json:"dimensions"`
		DataType    DataType        `json:"dataType"`
		BlockSize   []int32         `json:"blockSize"`
		Compression json.RawMessage `json:"compression"`
	}{a.Dimensions, a.DataType, blockSize, descriptor})
	if err != nil {
		return nil, err
	}
	doc, ok := attrjson.Parse(encoded)
	if !ok {
		return nil, fmt.Errorf("encoding dataset attributes for %v", a.Dimensions)
	}
	return doc, nil
}

// ParseDatasetAttributes derives the structural attributes from a
// node's document. ok is false when the document does not declare a
// dataset, including when a structural field is present but
// malformed; partially written or foreign metadata reads as "not a
// dataset" rather than failing.
func ParseDatasetAttributes(doc map[string]any) (*DatasetAttributes, bool) {
	var attrs DatasetAttributes
	if found, err := attrjson.GetInto(doc, KeyDimensions, &attrs.Dimensions); !found || err != nil {
		return nil, false
	}
	if found, err := attrjson.GetInto(doc, KeyDataType, &attrs.DataType); !found || err != nil {
		return nil, false
	}
	if !attrs.DataType.Valid() {
		return nil, false
	}
	if found, err := attrjson.GetInto(doc, KeyBlockSize, &attrs.BlockSize); err != nil {
		return nil, false
	} else if !found {
		attrs.BlockSize = narrowDimensions(attrs.Dimensions)
	}
	if len(attrs.BlockSize) != len(attrs.Dimensions) {
		return nil, false
	}

	if descriptor, found := attrjson.Get(doc, KeyCompression); found {
		codec, err := compression.Unmarshal(descriptor)
		if err != nil {
			return nil, false
		}
		attrs.Compression = codec
		return &attrs, true
	}
	// Legacy containers store a bare codec name at a separate key.
	// An unrecognized name reads as no codec, not as a failure.
	var name string
	if found, err := attrjson.GetInto(doc, KeyCompressionType, &name); found && err == nil {
		if codec, ok := compression.FromName(name); ok {
			attrs.Compression = codec
		}
	}
	return &attrs, true
}

func narrowDimensions(dimensions []int64) []int32 {
	narrowed := make([]int32, len(dimensions))
	for i, d := range dimensions {
		narrowed[i] = int32(d)
	}
	return narrowed
}
