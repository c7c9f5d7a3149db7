// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

// DataType is the scalar element type of a dataset, stored as a
// string under the "dataType" attribute.
type DataType string

const (
	Uint8   DataType = "uint8"
	Uint16  DataType = "uint16"
	Uint32  DataType = "uint32"
	Uint64  DataType = "uint64"
	Int8    DataType = "int8"
	Int16   DataType = "int16"
	Int32   DataType = "int32"
	Int64   DataType = "int64"
	Float32 DataType = "float32"
	Float64 DataType = "float64"
)

// Size returns the element size in bytes, or 0 for an unknown type.
func (t DataType) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

// Valid reports whether t is one of the defined scalar types.
func (t DataType) Valid() bool { return t.Size() != 0 }
