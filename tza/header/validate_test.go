// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"math"
	"testing"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/stretchr/testify/assert"
)

func oneTensor(t Tensor) Header {
	return Header{
		Major:       VersionCompressed,
		TableOffset: 100,
		Tensors:     TensorMap{t.Name: t},
		Names:       []string{t.Name},
	}
}

func TestHeader_Validate_Success(t *testing.T) {
	testCases := []struct {
		name string
		h    Header
	}{
		{"no tensors", Header{Major: VersionPlain, TableOffset: 12}},
		{"plain tensors", twoTensors(VersionPlain)},
		{"compressed tensors", twoTensors(VersionCompressed)},
		{"scalar", oneTensor(Tensor{
			Name: "s", DType: dtype.F32, Block: Block{Offset: 64, Length: 4},
		})},
		{"zero size tensors share an offset", Header{
			Major:       VersionPlain,
			TableOffset: 64,
			Tensors: TensorMap{
				"a": Tensor{Name: "a", DType: dtype.F32, Shape: tensor.Shape{0}, Layout: "x", Block: Block{Offset: 12}},
				"b": Tensor{Name: "b", DType: dtype.F16, Shape: tensor.Shape{2, 0}, Layout: "xy", Block: Block{Offset: 12}},
			},
			Names: []string{"b", "a"},
		}},
		{"block ends at table", oneTensor(Tensor{
			Name: "a", DType: dtype.F16, Shape: tensor.Shape{4}, Layout: "x", Block: Block{Offset: 92, Length: 8},
		})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.h.TableOffset == 0 {
				tc.h.TableOffset = 88
			}
			assert.NoError(t, tc.h.Validate(tc.h.TableOffset+50))
		})
	}
}

func TestHeader_Validate_Failure(t *testing.T) {
	valid := Tensor{
		Name: "a", DType: dtype.F32, Shape: tensor.Shape{2, 2}, Layout: "xy",
		Block: Block{Offset: 64, Length: 16},
	}
	with := func(f func(t *Tensor)) Header {
		t := valid
		f(&t)
		return oneTensor(t)
	}

	testCases := []struct {
		name   string
		h      Header
		errMsg string
	}{
		{
			"table offset inside preamble",
			Header{TableOffset: 11},
			"table offset 11 out of range [12, 150)",
		},
		{
			"table offset at end",
			Header{TableOffset: 150},
			"table offset 150 out of range [12, 150)",
		},
		{
			"tensor names mismatch",
			Header{TableOffset: 100, Tensors: TensorMap{"b": valid}, Names: []string{"b"}},
			`tensor names mismatch: TensorMap key "b", Tensor.Name "a"`,
		},
		{
			"names list too short",
			Header{TableOffset: 100, Tensors: TensorMap{"a": valid}},
			"names list has 0 entries, expected 1",
		},
		{
			"names list with unknown name",
			Header{TableOffset: 100, Tensors: TensorMap{"a": valid}, Names: []string{"z"}},
			`names list refers to unknown tensor "z"`,
		},
		{
			"invalid DType",
			with(func(t *Tensor) { t.DType = 0 }),
			`invalid tensor "a": invalid DType(0)`,
		},
		{
			"invalid codec",
			with(func(t *Tensor) { t.Codec = 7 }),
			`invalid tensor "a": invalid Codec(7)`,
		},
		{
			"compression in plain archive",
			func() Header {
				h := with(func(t *Tensor) { t.Codec = CodecZstd })
				h.Major = VersionPlain
				return h
			}(),
			`invalid tensor "a": codec zstd is not allowed in version 2`,
		},
		{
			"layout does not match rank",
			with(func(t *Tensor) { t.Layout = "oihw" }),
			`invalid tensor "a": layout "oihw" does not match rank 2`,
		},
		{
			"shape contains a negative value",
			with(func(t *Tensor) { t.Shape = tensor.Shape{2, -1} }),
			`invalid tensor "a": shape contains negative value -1`,
		},
		{
			"shape product overflow",
			with(func(t *Tensor) { t.Shape = tensor.Shape{math.MaxInt, math.MaxInt} }),
			`invalid tensor "a": int overflow computing tensor elements size from shape`,
		},
		{
			"block inside preamble",
			with(func(t *Tensor) { t.Block.Offset = 4 }),
			`invalid tensor "a": invalid block [4, +16)`,
		},
		{
			"negative block length",
			with(func(t *Tensor) { t.Block.Length = -1 }),
			`invalid tensor "a": invalid block [64, +-1)`,
		},
		{
			"block beyond table",
			with(func(t *Tensor) { t.Block.Offset = 90 }),
			`invalid tensor "a": block [90, 106) extends beyond table offset 100`,
		},
		{
			"overlapping blocks",
			Header{
				TableOffset: 100,
				Tensors: TensorMap{
					"a": valid,
					"b": Tensor{Name: "b", DType: dtype.F32, Block: Block{Offset: 76, Length: 4}},
				},
				Names: []string{"a", "b"},
			},
			`blocks of tensors "a" and "b" overlap`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualError(t, tc.h.Validate(150), tc.errMsg)
		})
	}
}
