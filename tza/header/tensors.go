// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// Tensor provides properties of a tensor, as described within a TZA table.
type Tensor struct {
	Name   string
	DType  dtype.DType
	Shape  tensor.Shape
	Layout string
	Block  Block
	Codec  Codec
	// Checksum is the XXH3 hash of the stored block (version 3 only).
	Checksum uint64
}

// ByteSize returns the size of the decoded tensor data, computed from
// shape and data type. It fails if the size does not fit in an int.
func (t Tensor) ByteSize() (int, error) {
	n, err := t.Shape.CheckedNumElements()
	if err != nil {
		return 0, err
	}
	hi, size := bits.Mul(uint(n), uint(t.DType.Size()))
	if hi != 0 || size > math.MaxInt {
		return 0, fmt.Errorf("int overflow computing byte size of shape %v with data type %s", t.Shape, t.DType)
	}
	return int(size), nil
}

// TensorMap is a set of Tensor objects mapped by their name.
type TensorMap map[string]Tensor

// TensorSlice is a slice of Tensor objects.
type TensorSlice []Tensor

// TensorSliceByBlock implements sort.Interface allowing to sort a
// TensorSlice by ascending Block values.
// It provides Less, while using Len and Swap methods of the embedded
// TensorSlice value.
type TensorSliceByBlock struct{ TensorSlice }

// TensorSlice creates an unsorted slice of Tensor objects filled with
// all values of the TensorMap.
func (tm TensorMap) TensorSlice() TensorSlice {
	if len(tm) == 0 {
		return nil
	}
	ts := make(TensorSlice, 0, len(tm))
	for _, t := range tm {
		ts = append(ts, t)
	}
	return ts
}

// Len is the number of elements in the collection.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Len() int {
	return len(ts)
}

// Swap swaps the elements with indexes i and j.
// This function partially satisfies sort.Interface.
func (ts TensorSlice) Swap(i, j int) {
	ts[i], ts[j] = ts[j], ts[i]
}

// Less reports whether the Tensor with index i must sort before the Tensor
// with index j, according to their Block values.
func (t TensorSliceByBlock) Less(i, j int) bool {
	return t.TensorSlice[i].Block.Less(t.TensorSlice[j].Block)
}
