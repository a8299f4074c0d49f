// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
)

// Shape is the ordered list of dimension sizes of a tensor.
// Data is always row-major ("C") ordered.
type Shape []int

// NumElements returns the total number of elements.
// An empty shape counts as 1 scalar value.
func (s Shape) NumElements() int {
	n := 1
	for _, v := range s {
		n *= v
	}
	return n
}

// CheckedNumElements is like NumElements, but it fails on negative
// dimensions and on int overflow.
func (s Shape) CheckedNumElements() (int, error) {
	size := uint(1)
	for _, v := range s {
		if v < 0 {
			return 0, fmt.Errorf("shape contains negative value %d", v)
		}
		var hi uint
		if hi, size = bits.Mul(size, uint(v)); hi != 0 {
			return 0, fmt.Errorf("int overflow computing tensor elements size from shape")
		}
	}
	if size > math.MaxInt {
		return 0, fmt.Errorf("tensor elements size is too large for int type: %d", size)
	}
	return int(size), nil
}

// Equal reports whether two shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of the shape, or nil if it is empty.
func (s Shape) Clone() Shape {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

// Strides returns the row-major element strides of the shape.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

func (s Shape) String() string {
	return fmt.Sprint([]int(s))
}
