// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor

import "fmt"

// Axis permutations between the layouts used by the archive, the
// inference runtime and the golden fixtures.
var (
	// OIHWToHWIO moves convolution weights from channel-major storage
	// [out, in, h, w] to the runtime order [h, w, in, out].
	OIHWToHWIO = []int{2, 3, 1, 0}
	// NCHWToNHWC moves activations to channel-minor order.
	NCHWToNHWC = []int{0, 2, 3, 1}
)

// Permute reorders the axes of row-major data made of elements of elemSize
// bytes. Axis i of the result is axis perm[i] of the source.
//
// Elements are copied byte by byte: values are never reinterpreted, so the
// permutation is bit-exact for any data type.
func Permute(data []byte, elemSize int, shape Shape, perm []int) ([]byte, Shape, error) {
	if elemSize <= 0 {
		return nil, nil, fmt.Errorf("invalid element size %d", elemSize)
	}
	if err := validatePerm(perm, len(shape)); err != nil {
		return nil, nil, err
	}
	n, err := shape.CheckedNumElements()
	if err != nil {
		return nil, nil, err
	}
	if len(data) != n*elemSize {
		return nil, nil, fmt.Errorf("data length %d does not match shape %v with element size %d", len(data), shape, elemSize)
	}

	rank := len(shape)
	outShape := make(Shape, rank)
	for i, p := range perm {
		outShape[i] = shape[p]
	}
	out := make([]byte, len(data))
	if n == 0 {
		return out, outShape, nil
	}

	srcStrides := shape.Strides()
	idx := make([]int, rank)
	srcOff := 0
	for i := 0; i < n; i++ {
		copy(out[i*elemSize:(i+1)*elemSize], data[srcOff*elemSize:(srcOff+1)*elemSize])
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			srcOff += srcStrides[perm[d]]
			if idx[d] < outShape[d] {
				break
			}
			srcOff -= srcStrides[perm[d]] * outShape[d]
			idx[d] = 0
		}
	}
	return out, outShape, nil
}

// InversePerm returns the permutation undoing perm.
func InversePerm(perm []int) []int {
	inv := make([]int, len(perm))
	for i, p := range perm {
		inv[p] = i
	}
	return inv
}

func validatePerm(perm []int, rank int) error {
	if len(perm) != rank {
		return fmt.Errorf("permutation %v does not match rank %d", perm, rank)
	}
	seen := make([]bool, rank)
	for _, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			return fmt.Errorf("invalid permutation %v", perm)
		}
		seen[p] = true
	}
	return nil
}
