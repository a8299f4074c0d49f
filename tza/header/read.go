// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/zeebo/xxh3"
)

// MaxTableSize limits the amount of memory allocated to hold a table.
const MaxTableSize = 100_000_000

// ErrChecksumMismatch is returned when a stored XXH3 hash does not match
// the hashed content.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Read reads and parses from "r" the preamble and the table of a TZA
// archive of the given total size.
//
// Note that after successfully reading and parsing, only the table
// checksum (version 3) is verified: use Header.Validate to check the
// consistency of the table against the archive.
func Read(r io.ReaderAt, size int64) (Header, error) {
	if size < PreambleSize {
		return Header{}, fmt.Errorf("archive too small: %d bytes", size)
	}

	var pre [PreambleSize]byte
	if err := readFullAt(r, pre[:], 0); err != nil {
		return Header{}, fmt.Errorf("failed to read preamble: %w", err)
	}
	if m := binary.LittleEndian.Uint16(pre[0:2]); m != Magic {
		return Header{}, fmt.Errorf("invalid magic 0x%04X", m)
	}

	h := Header{Major: pre[2], Minor: pre[3]}
	if h.Major != VersionPlain && h.Major != VersionCompressed {
		return Header{}, fmt.Errorf("unsupported version %d.%d", h.Major, h.Minor)
	}

	off := binary.LittleEndian.Uint64(pre[4:12])
	if off < PreambleSize || off >= uint64(size) {
		return Header{}, fmt.Errorf("table offset %d out of range [%d, %d)", off, PreambleSize, size)
	}
	h.TableOffset = int64(off)

	tableSize := size - h.TableOffset
	if tableSize > MaxTableSize {
		return Header{}, fmt.Errorf("table too large: max %d, actual %d", MaxTableSize, tableSize)
	}
	table := make([]byte, tableSize)
	if err := readFullAt(r, table, h.TableOffset); err != nil {
		return Header{}, fmt.Errorf("failed to read table: %w", err)
	}

	var err error
	if h.Tensors, h.Names, err = parseTable(table, h.Major); err != nil {
		return Header{}, err
	}
	return h, nil
}

func readFullAt(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func parseTable(table []byte, major uint8) (TensorMap, []string, error) {
	tr := &tableReader{buf: table}

	count := tr.u32()
	if tr.err != nil {
		return nil, nil, fmt.Errorf("failed to read record count: %w", tr.err)
	}

	var tm TensorMap
	var names []string
	if count > 0 {
		tm = make(TensorMap, min(int(count), 1024))
		names = make([]string, 0, min(int(count), 1024))
	}
	for i := uint32(0); i < count; i++ {
		t, err := parseEntry(tr, major)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read table entry %d: %w", i, err)
		}
		if _, dup := tm[t.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate tensor name %q", t.Name)
		}
		tm[t.Name] = t
		names = append(names, t.Name)
	}

	if major == VersionCompressed {
		sum := xxh3.Hash(table[:tr.pos])
		stored := tr.u64()
		if tr.err != nil {
			return nil, nil, fmt.Errorf("failed to read table checksum: %w", tr.err)
		}
		if sum != stored {
			return nil, nil, fmt.Errorf("table: %w", ErrChecksumMismatch)
		}
	}

	if rest := len(table) - tr.pos; rest != 0 {
		return nil, nil, fmt.Errorf("unexpected %d trailing bytes after table", rest)
	}
	return tm, names, nil
}

func parseEntry(tr *tableReader, major uint8) (t Tensor, err error) {
	t.Name = string(tr.next(int(tr.u16())))

	ndims := int(tr.u8())
	if ndims > 0 {
		t.Shape = make(tensor.Shape, ndims)
		for i := range t.Shape {
			t.Shape[i] = int(tr.u32())
		}
	}
	t.Layout = string(tr.next(ndims))
	code := tr.u8()
	offset := tr.u64()

	var length, checksum uint64
	var codec uint8
	if major == VersionCompressed {
		codec = tr.u8()
		length = tr.u64()
		checksum = tr.u64()
	}
	if tr.err != nil {
		return Tensor{}, tr.err
	}

	if t.DType, err = dtype.FromChar(code); err != nil {
		return Tensor{}, fmt.Errorf("tensor %q: %w", t.Name, err)
	}
	t.Codec = Codec(codec)
	t.Checksum = checksum

	if major == VersionPlain {
		size, err := t.ByteSize()
		if err != nil {
			return Tensor{}, fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		length = uint64(size)
	}
	if offset > math.MaxInt64 || length > math.MaxInt64-offset {
		return Tensor{}, fmt.Errorf("tensor %q: block [%d, +%d) overflows", t.Name, offset, length)
	}
	t.Block = Block{Offset: int64(offset), Length: int64(length)}
	return t, nil
}

type tableReader struct {
	buf []byte
	pos int
	err error
}

func (tr *tableReader) next(n int) []byte {
	if tr.err != nil {
		return nil
	}
	if n > len(tr.buf)-tr.pos {
		tr.err = fmt.Errorf("unexpected end of table at byte %d: %w", tr.pos, io.ErrUnexpectedEOF)
		return nil
	}
	b := tr.buf[tr.pos : tr.pos+n]
	tr.pos += n
	return b
}

func (tr *tableReader) u8() uint8 {
	if b := tr.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (tr *tableReader) u16() uint16 {
	if b := tr.next(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (tr *tableReader) u32() uint32 {
	if b := tr.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (tr *tableReader) u64() uint64 {
	if b := tr.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
