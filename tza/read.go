// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tza

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/nlpodyssey/denoiseconv/tza/header"
	"github.com/zeebo/xxh3"
)

// Open reads the whole file at path and decodes it.
//
// Filesystem failures are reported wrapping ErrIO. See Decode for the
// other errors.
func Open(path string) (*Archive, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return Decode(buf)
}

// Decode parses a whole TZA archive from buf.
//
// Structural problems (preamble, table, block placement, checksums,
// malformed compressed data) are reported wrapping ErrCorrupt. A block
// whose decoded length differs from the size declared by its shape and
// data type is reported wrapping ErrSizeMismatch.
//
// The returned Archive does not retain buf.
func Decode(buf []byte) (*Archive, error) {
	h, err := readValidHeader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, err
	}

	var dec *zstd.Decoder
	if needsDecoder(h) {
		if dec, err = newDecoder(maxRecordSize(h)); err != nil {
			return nil, err
		}
		defer dec.Close()
	}

	a := &Archive{
		major:   h.Major,
		minor:   h.Minor,
		names:   h.Names,
		records: make(map[string]Record, len(h.Names)),
	}
	for _, name := range h.Names {
		t := h.Tensors[name]
		data, err := decodeBlock(h.Major, t, buf[t.Block.Offset:t.Block.End()], dec)
		if err != nil {
			return nil, err
		}
		a.records[name] = Record{
			Name:   t.Name,
			DType:  t.DType,
			Shape:  t.Shape,
			Layout: t.Layout,
			Data:   data,
		}
	}
	return a, nil
}

// ReadTOC reads and validates only the table of contents of the archive
// of the given total size that "r" provides. Blocks are neither read nor
// decompressed.
//
// Failures of "r" are reported wrapping ErrIO, structural problems
// wrapping ErrCorrupt.
func ReadTOC(r io.ReaderAt, size int64) (header.Header, error) {
	return readValidHeader(r, size)
}

func readValidHeader(r io.ReaderAt, size int64) (header.Header, error) {
	tr := &trackingReaderAt{r: r}
	h, err := header.Read(tr, size)
	if err != nil {
		if tr.err != nil {
			return header.Header{}, fmt.Errorf("%w: %w", ErrIO, err)
		}
		return header.Header{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err = h.Validate(size); err != nil {
		return header.Header{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	for _, name := range h.Names {
		for i, d := range h.Tensors[name].Shape {
			if d <= 0 {
				return header.Header{}, fmt.Errorf("%w: tensor %q: dimension %d has non-positive size %d", ErrCorrupt, name, i, d)
			}
		}
		if _, err = h.Tensors[name].ByteSize(); err != nil {
			return header.Header{}, fmt.Errorf("%w: tensor %q: %w", ErrCorrupt, name, err)
		}
	}
	return h, nil
}

func decodeBlock(major uint8, t header.Tensor, stored []byte, dec *zstd.Decoder) ([]byte, error) {
	if major == header.VersionCompressed {
		if sum := xxh3.Hash(stored); sum != t.Checksum {
			return nil, fmt.Errorf("%w: tensor %q: block %w", ErrCorrupt, t.Name, header.ErrChecksumMismatch)
		}
	}

	want, err := t.ByteSize()
	if err != nil {
		return nil, fmt.Errorf("%w: tensor %q: %w", ErrCorrupt, t.Name, err)
	}

	var data []byte
	switch t.Codec {
	case header.CodecNone:
		data = bytes.Clone(stored)
	case header.CodecZstd:
		data, err = dec.DecodeAll(stored, nil)
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("%w: tensor %q: decoded data exceeds %d bytes", ErrSizeMismatch, t.Name, want)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: tensor %q: failed to decompress block: %w", ErrCorrupt, t.Name, err)
		}
	default:
		return nil, fmt.Errorf("%w: tensor %q: %w", ErrCorrupt, t.Name, t.Codec.Validate())
	}

	if len(data) != want {
		return nil, fmt.Errorf("%w: tensor %q: decoded %d bytes, shape %v of %s requires %d",
			ErrSizeMismatch, t.Name, len(data), t.Shape, t.DType, want)
	}
	return data, nil
}

func needsDecoder(h header.Header) bool {
	for _, t := range h.Tensors {
		if t.Codec == header.CodecZstd {
			return true
		}
	}
	return false
}

func maxRecordSize(h header.Header) int {
	n := 0
	for _, t := range h.Tensors {
		if size, err := t.ByteSize(); err == nil {
			n = max(n, size)
		}
	}
	return n
}

// trackingReaderAt remembers the last failure of the wrapped reader, so
// that I/O errors can be told apart from malformed content.
type trackingReaderAt struct {
	r   io.ReaderAt
	err error
}

func (t *trackingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := t.r.ReadAt(p, off)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
