// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

package n5

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ctrueden/n5/compression"
)

// DataBlock is one chunk of a dataset: the raw element bytes of the
// block at one grid position. Data holds the elements in big-endian
// order, fastest-varying axis first; its length is Size's product
// times the element size, except for edge blocks cropped to the
// dataset's extent.
type DataBlock struct {
	// GridPosition addresses the block within the dataset's chunk
	// grid.
	GridPosition []int64

	// Size is the block's extent per axis in elements.
	Size []int32

	// Data is the encoded element payload.
	Data []byte
}

// Block stream layout: a big-endian header (uint16 mode, uint16 axis
// count, int32 extent per axis, and for mode 1 an int32 element
// count) followed by the codec-compressed payload. Mode 0 is the
// default layout where the element count is implied by the extents;
// mode 1 carries an explicit count for cropped blocks.
const (
	blockModeDefault   = 0
	blockModeVarlength = 1
)

// maxBlockBytes bounds a single block's decoded payload. The header
// alone dictates the allocation, so a corrupt stream must not be able
// to request an arbitrary amount of memory.
const maxBlockBytes = 1 << 31

// WriteBlockTo encodes a block to w using the dataset's codec. A nil
// codec writes the payload uncompressed.
func WriteBlockTo(w io.Writer, attrs *DatasetAttributes, block *DataBlock) error {
	elementSize := attrs.DataType.Size()
	if elementSize == 0 {
		return fmt.Errorf("unknown data type %q", attrs.DataType)
	}
	if len(block.Data)%elementSize != 0 {
		return fmt.Errorf("payload of %d bytes is not a whole number of %d-byte elements",
			len(block.Data), elementSize)
	}
	elements := len(block.Data) / elementSize

	mode := uint16(blockModeDefault)
	if int64(elements) != blockElements(block.Size) {
		mode = blockModeVarlength
	}
	header := []any{
		mode,
		uint16(len(block.Size)),
	}
	for _, s := range block.Size {
		header = append(header, s)
	}
	if mode == blockModeVarlength {
		header = append(header, int32(elements))
	}
	for _, field := range header {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return fmt.Errorf("block header: %w", err)
		}
	}

	codec := attrs.Compression
	if codec == nil {
		codec = compression.Raw{}
	}
	encoder, err := codec.Encoder(w)
	if err != nil {
		return err
	}
	if _, err := encoder.Write(block.Data); err != nil {
		return fmt.Errorf("block payload: %w", err)
	}
	return encoder.Close()
}

// ReadBlockFrom decodes a block from r using the dataset's codec.
func ReadBlockFrom(r io.Reader, attrs *DatasetAttributes, gridPosition []int64) (*DataBlock, error) {
	var mode, axes uint16
	if err := binary.Read(r, binary.BigEndian, &mode); err != nil {
		return nil, fmt.Errorf("block header: %w", err)
	}
	if mode != blockModeDefault && mode != blockModeVarlength {
		return nil, fmt.Errorf("unsupported block mode %d", mode)
	}
	if err := binary.Read(r, binary.BigEndian, &axes); err != nil {
		return nil, fmt.Errorf("block header: %w", err)
	}
	elementSize := int64(attrs.DataType.Size())
	if elementSize == 0 {
		return nil, fmt.Errorf("unknown data type %q", attrs.DataType)
	}
	size := make([]int32, axes)
	for i := range size {
		if err := binary.Read(r, binary.BigEndian, &size[i]); err != nil {
			return nil, fmt.Errorf("block header: %w", err)
		}
		if size[i] < 0 {
			return nil, fmt.Errorf("negative block extent %d", size[i])
		}
	}
	byteLen := elementSize
	for _, s := range size {
		if s != 0 && byteLen > maxBlockBytes/int64(s) {
			return nil, fmt.Errorf("block extents %v exceed the %d-byte payload limit", size, maxBlockBytes)
		}
		byteLen *= int64(s)
	}
	if mode == blockModeVarlength {
		var count int32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("block header: %w", err)
		}
		if count < 0 {
			return nil, fmt.Errorf("negative block element count %d", count)
		}
		if int64(count) > maxBlockBytes/elementSize {
			return nil, fmt.Errorf("block count %d exceeds the %d-byte payload limit", count, maxBlockBytes)
		}
		byteLen = int64(count) * elementSize
	}

	codec := attrs.Compression
	if codec == nil {
		codec = compression.Raw{}
	}
	decoder, err := codec.Decoder(r)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	data := make([]byte, byteLen)
	if _, err := io.ReadFull(decoder, data); err != nil {
		return nil, fmt.Errorf("block payload: %w", err)
	}
	return &DataBlock{
		GridPosition: gridPosition,
		Size:         size,
		Data:         data,
	}, nil
}

func blockElements(size []int32) int64 {
	n := int64(1)
	for _, s := range size {
		n *= int64(s)
	}
	return n
}
