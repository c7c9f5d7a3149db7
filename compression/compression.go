// Copyright 2026 The N5 Authors
// SPDX-License-Identifier: Apache-2.0

// Package compression provides the named block codecs an N5 container
// can declare in its dataset attributes: raw, gzip, bzip2, lz4 and xz.
//
// A codec is selected by name and stored as a JSON descriptor object
// with a "type" discriminator. Version-0 containers instead stored a
// bare string under a legacy key; [FromName] maps those names onto
// the same codec types so the rest of the system sees exactly one
// representation.
package compression

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Codec type discriminators as stored in the "type" field of a
// compression descriptor. These are format constants; changing them
// breaks container compatibility.
const (
	TypeRaw   = "raw"
	TypeGzip  = "gzip"
	TypeBzip2 = "bzip2"
	TypeLZ4   = "lz4"
	TypeXZ    = "xz"
)

// Compression encodes and decodes block payloads. Implementations
// are small value types safe to copy and share.
type Compression interface {
	// Type returns the codec's name, used as the JSON discriminator.
	Type() string

	// Encoder wraps w with the codec's compressed stream. Closing the
	// returned writer finishes the stream without closing w.
	Encoder(w io.Writer) (io.WriteCloser, error)

	// Decoder wraps r with the codec's decompressing reader. Closing
	// the returned reader does not close r.
	Decoder(r io.Reader) (io.ReadCloser, error)
}

// Raw is the identity codec: payloads are stored as-is.
type Raw struct{}

func (Raw) Type() string { return TypeRaw }

func (Raw) Encoder(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (Raw) Decoder(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Gzip compresses payloads with gzip. Level is the deflate level
// exactly as stored in the descriptor: -1 is the default level, 0
// writes stored (uncompressed) deflate blocks, 1 through 9 trade
// speed for ratio. The distinction matters for descriptor fidelity;
// a foreign {"level": 0} descriptor must keep meaning "store".
type Gzip struct {
	Level int `json:"level"`
}

func (Gzip) Type() string { return TypeGzip }

func (c Gzip) Encoder(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.Level)
	if err != nil {
		return nil, fmt.Errorf("gzip encoder: %w", err)
	}
	return zw, nil
}

func (Gzip) Decoder(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decoder: %w", err)
	}
	return zr, nil
}

// Bzip2 compresses payloads with bzip2. BlockSize is the bzip2 level
// (1-9, in 100 KiB units); zero means 9, the format default.
type Bzip2 struct {
	BlockSize int `json:"blockSize"`
}

func (Bzip2) Type() string { return TypeBzip2 }

func (c Bzip2) Encoder(w io.Writer) (io.WriteCloser, error) {
	level := c.BlockSize
	if level == 0 {
		level = bzip2.BestCompression
	}
	zw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, fmt.Errorf("bzip2 encoder: %w", err)
	}
	return zw, nil
}

func (Bzip2) Decoder(r io.Reader) (io.ReadCloser, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 decoder: %w", err)
	}
	return zr, nil
}

// LZ4 compresses payloads with the LZ4 frame format. BlockSize is
// the frame block size in bytes; zero means 64 KiB, the descriptor
// default.
type LZ4 struct {
	BlockSize int `json:"blockSize"`
}

func (LZ4) Type() string { return TypeLZ4 }

func (c LZ4) Encoder(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.BlockSizeOption(frameBlockSize(c.BlockSize))); err != nil {
		return nil, fmt.Errorf("lz4 encoder: %w", err)
	}
	return zw, nil
}

func (LZ4) Decoder(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// frameBlockSize maps a requested block size in bytes onto the
// nearest LZ4 frame block size at or below it.
func frameBlockSize(size int) lz4.BlockSize {
	switch {
	case size >= 4<<20:
		return lz4.Block4Mb
	case size >= 1<<20:
		return lz4.Block1Mb
	case size >= 256<<10:
		return lz4.Block256Kb
	default:
		return lz4.Block64Kb
	}
}

// XZ compresses payloads with the xz container format. Preset is
// retained for descriptor fidelity with other N5 implementations;
// the stream is always written with the library's default settings.
type XZ struct {
	Preset int `json:"preset"`
}

func (XZ) Type() string { return TypeXZ }

func (XZ) Encoder(w io.Writer) (io.WriteCloser, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("xz encoder: %w", err)
	}
	return zw, nil
}

func (XZ) Decoder(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("xz decoder: %w", err)
	}
	return io.NopCloser(zr), nil
}

// FromName maps a codec name to a codec with default parameters. It
// serves the legacy version-0 attribute encoding, where the codec was
// a bare string instead of a descriptor object. An unrecognized name
// yields no codec.
func FromName(name string) (Compression, bool) {
	switch name {
	case TypeRaw:
		return Raw{}, true
	case TypeGzip:
		return Gzip{Level: -1}, true
	case TypeBzip2:
		return Bzip2{BlockSize: bzip2.BestCompression}, true
	case TypeLZ4:
		return LZ4{BlockSize: 64 << 10}, true
	case TypeXZ:
		return XZ{Preset: 6}, true
	default:
		return nil, false
	}
}

// Marshal encodes a codec as its JSON descriptor with the "type"
// discriminator inlined.
func Marshal(c Compression) (json.RawMessage, error) {
	switch c := c.(type) {
	case Raw:
		return json.Marshal(struct {
			Type string `json:"type"`
		}{TypeRaw})
	case Gzip:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Level int    `json:"level"`
		}{TypeGzip, c.Level})
	case Bzip2:
		return json.Marshal(struct {
			Type      string `json:"type"`
			BlockSize int    `json:"blockSize"`
		}{TypeBzip2, c.BlockSize})
	case LZ4:
		return json.Marshal(struct {
			Type      string `json:"type"`
			BlockSize int    `json:"blockSize"`
		}{TypeLZ4, c.BlockSize})
	case XZ:
		return json.Marshal(struct {
			Type   string `json:"type"`
			Preset int    `json:"preset"`
		}{TypeXZ, c.Preset})
	default:
		return nil, fmt.Errorf("unsupported compression type %q", c.Type())
	}
}

// Unmarshal decodes a JSON compression descriptor into its codec.
func Unmarshal(data []byte) (Compression, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("compression descriptor: %w", err)
	}

	switch envelope.Type {
	case TypeRaw:
		return Raw{}, nil
	case TypeGzip:
		var c Gzip
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("gzip descriptor: %w", err)
		}
		return c, nil
	case TypeBzip2:
		var c Bzip2
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("bzip2 descriptor: %w", err)
		}
		return c, nil
	case TypeLZ4:
		var c LZ4
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("lz4 descriptor: %w", err)
		}
		return c, nil
	case TypeXZ:
		var c XZ
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("xz descriptor: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown compression type %q", envelope.Type)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
