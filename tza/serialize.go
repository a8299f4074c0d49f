// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tza

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/nlpodyssey/denoiseconv/tza/header"
	"github.com/zeebo/xxh3"
)

// WriteOptions controls how Serialize lays out an archive.
type WriteOptions struct {
	// Version is header.VersionPlain or header.VersionCompressed.
	// The zero value selects header.VersionCompressed.
	Version uint8
	// Codec applies to every block of a version 3 archive. It must be
	// header.CodecNone for version 2.
	Codec header.Codec
	// Level is the zstd compression level. The zero value selects
	// zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

var blockPadding [header.BlockAlignment]byte

// Serialize writes the given records to "w" as a TZA archive.
//
// Records are stored in the given order, each block starting at a
// multiple of header.BlockAlignment. Every record must have a unique name,
// a valid data type, positive dimensions, one layout character per
// dimension and exactly as many data bytes as its shape requires.
func Serialize(w io.Writer, records []Record, opts WriteOptions) error {
	if opts.Version == 0 {
		opts.Version = header.VersionCompressed
	}
	if opts.Level == 0 {
		opts.Level = zstd.SpeedDefault
	}
	if err := checkWriteOptions(opts); err != nil {
		return err
	}

	blocks, err := encodeBlocks(records, opts)
	if err != nil {
		return err
	}
	head, err := makeValidHeader(records, blocks, opts)
	if err != nil {
		return err
	}

	if _, err = w.Write(header.AppendPreamble(nil, head)); err != nil {
		return fmt.Errorf("failed to write preamble: %w", err)
	}
	pos := int64(header.PreambleSize)
	for i, r := range records {
		t := head.Tensors[r.Name]
		if pad := t.Block.Offset - pos; pad > 0 {
			if _, err = w.Write(blockPadding[:pad]); err != nil {
				return fmt.Errorf("failed to write block padding: %w", err)
			}
		}
		if _, err = w.Write(blocks[i]); err != nil {
			return fmt.Errorf("failed to write block of tensor %q: %w", r.Name, err)
		}
		pos = t.Block.End()
	}

	table, err := header.AppendTable(nil, head)
	if err != nil {
		return err
	}
	if _, err = w.Write(table); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return nil
}

func checkWriteOptions(opts WriteOptions) error {
	switch opts.Version {
	case header.VersionPlain:
		if opts.Codec != header.CodecNone {
			return fmt.Errorf("codec %s is not allowed in version %d", opts.Codec, opts.Version)
		}
	case header.VersionCompressed:
		if err := opts.Codec.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported version %d", opts.Version)
	}
	return nil
}

func encodeBlocks(records []Record, opts WriteOptions) ([][]byte, error) {
	var enc *zstd.Encoder
	if opts.Codec == header.CodecZstd && len(records) > 0 {
		var err error
		if enc, err = newEncoder(opts.Level); err != nil {
			return nil, err
		}
		defer enc.Close()
	}

	blocks := make([][]byte, len(records))
	for i, r := range records {
		if err := checkRecord(r); err != nil {
			return nil, err
		}
		if enc != nil {
			blocks[i] = enc.EncodeAll(r.Data, nil)
		} else {
			blocks[i] = r.Data
		}
	}
	return blocks, nil
}

func checkRecord(r Record) error {
	if err := r.DType.Validate(); err != nil {
		return fmt.Errorf("record %q: %w", r.Name, err)
	}
	if len(r.Layout) != len(r.Shape) {
		return fmt.Errorf("record %q: layout %q does not match rank %d", r.Name, r.Layout, len(r.Shape))
	}
	for i, d := range r.Shape {
		if d <= 0 {
			return fmt.Errorf("record %q: dimension %d has non-positive size %d", r.Name, i, d)
		}
	}
	n, err := r.Shape.CheckedNumElements()
	if err != nil {
		return fmt.Errorf("record %q: %w", r.Name, err)
	}
	if want := n * r.DType.Size(); len(r.Data) != want {
		return fmt.Errorf("record %q: data length %d, shape %v of %s requires %d", r.Name, len(r.Data), r.Shape, r.DType, want)
	}
	return nil
}

func makeValidHeader(records []Record, blocks [][]byte, opts WriteOptions) (header.Header, error) {
	head := header.Header{
		Major:   opts.Version,
		Minor:   header.MinorVersion,
		Tensors: make(header.TensorMap, len(records)),
		Names:   make([]string, len(records)),
	}

	offset := int64(header.PreambleSize)
	for i, r := range records {
		if _, ok := head.Tensors[r.Name]; ok {
			return header.Header{}, fmt.Errorf("duplicate tensor name %q", r.Name)
		}
		offset = alignUp(offset, header.BlockAlignment)
		t := header.Tensor{
			Name:   r.Name,
			DType:  r.DType,
			Shape:  r.Shape.Clone(),
			Layout: r.Layout,
			Block:  header.Block{Offset: offset, Length: int64(len(blocks[i]))},
		}
		if opts.Version == header.VersionCompressed {
			t.Codec = opts.Codec
			t.Checksum = xxh3.Hash(blocks[i])
		}
		head.Tensors[r.Name] = t
		head.Names[i] = r.Name
		offset = t.Block.End()
	}
	head.TableOffset = offset

	table, err := header.AppendTable(nil, head)
	if err != nil {
		return header.Header{}, err
	}
	if err = head.Validate(offset + int64(len(table))); err != nil {
		return header.Header{}, fmt.Errorf("failed to generate a valid header: %w", err)
	}
	return head, nil
}

func alignUp(n, alignment int64) int64 {
	return (n + alignment - 1) / alignment * alignment
}
