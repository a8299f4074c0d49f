// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tza reads and writes TZA tensor archives.
//
// An archive is decoded eagerly: when Open or Decode succeed every record
// has already been located, checksum-verified, decompressed and checked
// against its declared shape. No partially readable archive is ever
// returned.
package tza

import (
	"fmt"
	"slices"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// Record is a named tensor stored in an archive.
//
// Data is little-endian and row-major ("C") ordered, in the element type
// given by DType. Layout has one character per dimension, for example
// "oihw" for convolution weights or "x" for biases.
type Record struct {
	Name   string
	DType  dtype.DType
	Shape  tensor.Shape
	Layout string
	Data   []byte
}

// Dense converts the record data to float32 values.
func (r Record) Dense() (*tensor.Dense, error) {
	return tensor.FromBytes(r.DType, r.Shape, r.Data)
}

// Archive is a fully decoded TZA archive.
//
// It is immutable and safe for concurrent use.
type Archive struct {
	major   uint8
	minor   uint8
	names   []string
	records map[string]Record
}

// Get returns the record with the given name, or an error wrapping
// ErrKeyNotFound.
//
// Every call returns the same record: its Data must not be modified.
func (a *Archive) Get(name string) (Record, error) {
	r, ok := a.records[name]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
	}
	return r, nil
}

// Names returns the names of all records, in table order.
func (a *Archive) Names() []string {
	return slices.Clone(a.names)
}

// Len returns the number of records.
func (a *Archive) Len() int {
	return len(a.names)
}

// Version returns the major and minor format version of the archive.
func (a *Archive) Version() (major, minor uint8) {
	return a.major, a.minor
}
