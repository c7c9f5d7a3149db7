// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"reflect"
	"slices"
	"testing"

	"github.com/ctrueden/n5/attrjson"
	"github.com/ctrueden/n5/compression"
)

func docFromJSON(t *testing.T, data string) map[string]any {
	t.Helper()
	doc, ok := attrjson.Parse([]byte(data))
	if !ok {
		t.Fatalf("bad test document: %s", data)
	}
	return doc
}

func TestParseDatasetAttributes(t *testing.T) {
	t.Run("full descriptor", func(t *testing.T) {
		doc := docFromJSON(t, `{
			"dimensions": [10, 20],
			"dataType": "uint16",
			"blockSize": [5, 5],
			"compression": {"type": "gzip", "level": 3}
		}`)
		attrs, ok := ParseDatasetAttributes(doc)
		if !ok {
			t.Fatal("expected a dataset")
		}
		if !slices.Equal(attrs.Dimensions, []int64{10, 20}) {
			t.Errorf("Dimensions = %v", attrs.Dimensions)
		}
		if !slices.Equal(attrs.BlockSize, []int32{5, 5}) {
			t.Errorf("BlockSize = %v", attrs.BlockSize)
		}
		if attrs.DataType != Uint16 {
			t.Errorf("DataType = %q", attrs.DataType)
		}
		if attrs.Compression != (compression.Gzip{Level: 3}) {
			t.Errorf("Compression = %#v", attrs.Compression)
		}
	})

	t.Run("block size defaults to dimensions", func(t *testing.T) {
		doc := docFromJSON(t, `{"dimensions": [3, 4], "dataType": "float64"}`)
		attrs, ok := ParseDatasetAttributes(doc)
		if !ok {
			t.Fatal("expected a dataset")
		}
		if !slices.Equal(attrs.BlockSize, []int32{3, 4}) {
			t.Errorf("BlockSize = %v, want dimensions narrowed", attrs.BlockSize)
		}
		if attrs.Compression != nil {
			t.Errorf("Compression = %#v, want nil", attrs.Compression)
		}
	})

	t.Run("legacy compression type", func(t *testing.T) {
		doc := docFromJSON(t, `{
			"dimensions": [2], "dataType": "uint8", "compressionType": "lz4"
		}`)
		attrs, ok := ParseDatasetAttributes(doc)
		if !ok {
			t.Fatal("expected a dataset")
		}
		if attrs.Compression == nil || attrs.Compression.Type() != "lz4" {
			t.Errorf("Compression = %#v, want lz4", attrs.Compression)
		}
	})

	t.Run("unrecognized legacy name yields no codec", func(t *testing.T) {
		doc := docFromJSON(t, `{
			"dimensions": [2], "dataType": "uint8", "compressionType": "zstd"
		}`)
		attrs, ok := ParseDatasetAttributes(doc)
		if !ok {
			t.Fatal("still a dataset")
		}
		if attrs.Compression != nil {
			t.Errorf("Compression = %#v, want nil", attrs.Compression)
		}
	})

	t.Run("not a dataset", func(t *testing.T) {
		tests := map[string]string{
			"no dimensions":        `{"dataType": "uint8"}`,
			"no data type":         `{"dimensions": [2]}`,
			"unknown data type":    `{"dimensions": [2], "dataType": "complex128"}`,
			"malformed dimensions": `{"dimensions": "wide", "dataType": "uint8"}`,
			"axis count mismatch":  `{"dimensions": [2, 3], "dataType": "uint8", "blockSize": [2]}`,
			"bad compression":      `{"dimensions": [2], "dataType": "uint8", "compression": {"type": "zstd"}}`,
		}
		for name, data := range tests {
			t.Run(name, func(t *testing.T) {
				if _, ok := ParseDatasetAttributes(docFromJSON(t, data)); ok {
					t.Errorf("parsed %s as a dataset", data)
				}
			})
		}
	})
}

func TestDatasetAttributesDocumentRoundTrip(t *testing.T) {
	in := &DatasetAttributes{
		Dimensions:  []int64{100, 200, 300},
		DataType:    Float32,
		Compression: compression.Gzip{Level: -1},
	}
	doc, err := in.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	out, ok := ParseDatasetAttributes(doc)
	if !ok {
		t.Fatal("encoded document should parse as a dataset")
	}
	if !slices.Equal(out.Dimensions, in.Dimensions) {
		t.Errorf("Dimensions = %v", out.Dimensions)
	}
	if !slices.Equal(out.BlockSize, []int32{100, 200, 300}) {
		t.Errorf("BlockSize = %v, want dimensions narrowed", out.BlockSize)
	}
	if out.DataType != Float32 {
		t.Errorf("DataType = %q", out.DataType)
	}
	if !reflect.DeepEqual(out.Compression, in.Compression) {
		t.Errorf("Compression = %#v, want %#v", out.Compression, in.Compression)
	}
}

func TestDatasetAttributesValidate(t *testing.T) {
	tests := []struct {
		name    string
		attrs   DatasetAttributes
		wantErr bool
	}{
		{"valid", DatasetAttributes{Dimensions: []int64{4}, DataType: Uint8}, false},
		{"no dimensions", DatasetAttributes{DataType: Uint8}, true},
		{"negative dimension", DatasetAttributes{Dimensions: []int64{-1}, DataType: Uint8}, true},
		{"bad data type", DatasetAttributes{Dimensions: []int64{4}, DataType: "int128"}, true},
		{"axis mismatch", DatasetAttributes{Dimensions: []int64{4}, BlockSize: []int32{2, 2}, DataType: Uint8}, true},
		{"zero block size", DatasetAttributes{Dimensions: []int64{4}, BlockSize: []int32{0}, DataType: Uint8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attrs.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
