// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/x448/float16"
)

// Dense is a float32 tensor with data fully loaded in memory, used for
// numeric evaluation.
type Dense struct {
	Shape Shape
	Data  []float32
}

// NewDense allocates a zero-filled Dense tensor.
func NewDense(shape Shape) *Dense {
	return &Dense{
		Shape: shape.Clone(),
		Data:  make([]float32, shape.NumElements()),
	}
}

// FromBytes decodes little-endian raw data of the given type into a Dense
// tensor. F16 values are widened to float32, which is exact.
func FromBytes(dt dtype.DType, shape Shape, data []byte) (*Dense, error) {
	values, err := DecodeFloat32(dt, data)
	if err != nil {
		return nil, err
	}
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("decoded %d values, shape %v requires %d", len(values), shape, shape.NumElements())
	}
	return &Dense{Shape: shape.Clone(), Data: values}, nil
}

// Bytes encodes the tensor data as little-endian float32 values.
func (d *Dense) Bytes() []byte {
	return EncodeFloat32(dtype.F32, d.Data)
}

// DecodeFloat32 interprets little-endian raw data as values of type dt.
func DecodeFloat32(dt dtype.DType, data []byte) ([]float32, error) {
	size := dt.Size()
	if size < 0 {
		return nil, dt.Validate()
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of %s size %d", len(data), dt, size)
	}
	out := make([]float32, len(data)/size)
	switch dt {
	case dtype.F16:
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
	case dtype.F32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	}
	return out, nil
}

// EncodeFloat32 converts values to little-endian raw data of type dt.
// Conversion to F16 rounds to nearest even.
func EncodeFloat32(dt dtype.DType, values []float32) []byte {
	switch dt {
	case dtype.F16:
		out := make([]byte, 0, len(values)*2)
		for _, v := range values {
			out = binary.LittleEndian.AppendUint16(out, float16.Fromfloat32(v).Bits())
		}
		return out
	default:
		out := make([]byte, 0, len(values)*4)
		for _, v := range values {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
		return out
	}
}
