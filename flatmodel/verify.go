// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatmodel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nlpodyssey/denoiseconv/flatmodel/denoiser"
)

var (
	// ErrOutOfBounds is returned by Verify when an offset, table or
	// vector does not resolve inside the buffer.
	ErrOutOfBounds = errors.New("flatmodel: offset out of bounds")
	// ErrIdentifier is returned by Verify for buffers not identified as
	// denoiser models.
	ErrIdentifier = errors.New("flatmodel: bad file identifier")
)

type fieldKind uint8

const (
	scalar fieldKind = iota
	stringField
	vectorField
	tableField
	tableVectorField
)

// field describes one vtable slot of a schema table.
type field struct {
	name string
	kind fieldKind
	// size is the inline size of a scalar, or the element size of a vector.
	size int64
	sub  []field
}

var (
	tensorSchema = []field{
		{name: "dtype", kind: scalar, size: 1},
		{name: "shape", kind: vectorField, size: 4},
		{name: "layout", kind: stringField},
		{name: "data", kind: vectorField, size: 1},
	}
	layerSchema = []field{
		{name: "name", kind: stringField},
		{name: "kind", kind: scalar, size: 1},
		{name: "in_channels", kind: scalar, size: 4},
		{name: "out_channels", kind: scalar, size: 4},
		{name: "kernel_h", kind: scalar, size: 4},
		{name: "kernel_w", kind: scalar, size: 4},
		{name: "relu", kind: scalar, size: 1},
		{name: "sources", kind: vectorField, size: 4},
		{name: "weight", kind: tableField, sub: tensorSchema},
		{name: "bias", kind: tableField, sub: tensorSchema},
	}
	modelSchema = []field{
		{name: "name", kind: stringField},
		{name: "in_channels", kind: scalar, size: 4},
		{name: "out_channels", kind: scalar, size: 4},
		{name: "layers", kind: tableVectorField, sub: layerSchema},
	}
)

// Verify checks that buf holds a denoiser Model whose every table, vtable,
// vector and string lies inside buf, so that accessors can never read out
// of range.
func Verify(buf []byte) error {
	v := verifier{buf: buf}
	if int64(len(buf)) < 8 {
		return fmt.Errorf("%w: buffer of %d bytes is too small", ErrOutOfBounds, len(buf))
	}
	if !denoiser.ModelBufferHasIdentifier(buf) {
		return fmt.Errorf("%w: got %q, want %q", ErrIdentifier, buf[4:8], denoiser.ModelIdentifier)
	}
	root, err := v.indirect(0, "root")
	if err != nil {
		return err
	}
	return v.table(root, modelSchema, "model")
}

type verifier struct {
	buf []byte
}

func (v verifier) check(pos, size int64, what string) error {
	if pos < 0 || size < 0 || pos > int64(len(v.buf)) || size > int64(len(v.buf))-pos {
		return fmt.Errorf("%w: %s at [%d, +%d) exceeds %d bytes", ErrOutOfBounds, what, pos, size, len(v.buf))
	}
	return nil
}

func (v verifier) u16(pos int64, what string) (int64, error) {
	if err := v.check(pos, 2, what); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint16(v.buf[pos:])), nil
}

func (v verifier) u32(pos int64, what string) (uint32, error) {
	if err := v.check(pos, 4, what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.buf[pos:]), nil
}

// indirect follows the unsigned offset stored at pos.
func (v verifier) indirect(pos int64, what string) (int64, error) {
	off, err := v.u32(pos, what)
	if err != nil {
		return 0, err
	}
	target := pos + int64(off)
	if err = v.check(target, 0, what); err != nil {
		return 0, err
	}
	return target, nil
}

func (v verifier) table(pos int64, schema []field, what string) error {
	soff, err := v.u32(pos, what)
	if err != nil {
		return err
	}
	vt := pos - int64(int32(soff))
	vtSize, err := v.u16(vt, what+" vtable")
	if err != nil {
		return err
	}
	tableSize, err := v.u16(vt+2, what+" vtable")
	if err != nil {
		return err
	}
	if vtSize < 4 || vtSize%2 != 0 {
		return fmt.Errorf("%w: %s: invalid vtable size %d", ErrOutOfBounds, what, vtSize)
	}
	if err = v.check(vt, vtSize, what+" vtable"); err != nil {
		return err
	}
	if err = v.check(pos, tableSize, what); err != nil {
		return err
	}

	for i, f := range schema {
		slot := 4 + 2*int64(i)
		if slot+2 > vtSize {
			break
		}
		off := int64(binary.LittleEndian.Uint16(v.buf[vt+slot:]))
		if off == 0 {
			continue
		}
		name := what + "." + f.name
		inline := f.size
		if f.kind != scalar {
			inline = 4
		}
		if off+inline > tableSize {
			return fmt.Errorf("%w: %s lies outside its table", ErrOutOfBounds, name)
		}
		if err = v.field(pos+off, f, name); err != nil {
			return err
		}
	}
	return nil
}

func (v verifier) field(pos int64, f field, name string) error {
	switch f.kind {
	case stringField:
		_, err := v.vector(pos, 1, 1, name)
		return err
	case vectorField:
		_, err := v.vector(pos, f.size, 0, name)
		return err
	case tableField:
		target, err := v.indirect(pos, name)
		if err != nil {
			return err
		}
		return v.table(target, f.sub, name)
	case tableVectorField:
		start, err := v.vector(pos, 4, 0, name)
		if err != nil {
			return err
		}
		n, _ := v.u32(start-4, name)
		for j := int64(0); j < int64(n); j++ {
			elem := fmt.Sprintf("%s[%d]", name, j)
			target, err := v.indirect(start+4*j, elem)
			if err != nil {
				return err
			}
			if err = v.table(target, f.sub, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// vector checks the vector referenced from pos, followed by trailing
// bytes (the terminator of strings), and returns the position of its
// first element.
func (v verifier) vector(pos, elemSize, trailing int64, name string) (int64, error) {
	target, err := v.indirect(pos, name)
	if err != nil {
		return 0, err
	}
	n, err := v.u32(target, name+" length")
	if err != nil {
		return 0, err
	}
	start := target + 4
	if err = v.check(start, int64(n)*elemSize+trailing, name); err != nil {
		return 0, err
	}
	return start, nil
}
