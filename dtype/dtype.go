// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dtype

import (
	"fmt"
)

// DType represents the element data type of a TZA tensor record.
type DType uint8

const (
	// F16 represents a 16-bit half-precision floating point data type.
	F16 DType = iota + 1
	// F32 represents a 32-bit floating point data type.
	F32
)

var (
	dTypeToString = [...]string{
		F16: "F16",
		F32: "F32",
	}
	dTypeToSize = [...]int{
		F16: 2,
		F32: 4,
	}
	// dTypeToChar maps each DType to the single-byte code used in TZA tables.
	dTypeToChar = [...]byte{
		F16: 'h',
		F32: 'f',
	}
)

// Validate returns an error if the DType is not valid, otherwise nil.
func (dt DType) Validate() error {
	if dt == 0 || dt > F32 {
		return fmt.Errorf("invalid DType(%d)", dt)
	}
	return nil
}

// String returns a string representation of a DType.
func (dt DType) String() string {
	if err := dt.Validate(); err != nil {
		return err.Error()
	}
	return dTypeToString[dt]
}

// Size returns the size in bytes of one element of this data type,
// or -1 if the DType value is invalid.
func (dt DType) Size() int {
	if err := dt.Validate(); err != nil {
		return -1
	}
	return dTypeToSize[dt]
}

// Char returns the TZA table code of the DType, or 0 if it is invalid.
func (dt DType) Char() byte {
	if err := dt.Validate(); err != nil {
		return 0
	}
	return dTypeToChar[dt]
}

// FromChar converts a TZA table code to a DType.
func FromChar(c byte) (DType, error) {
	switch c {
	case 'h':
		return F16, nil
	case 'f':
		return F32, nil
	default:
		return 0, fmt.Errorf("unknown DType code %q", c)
	}
}

// MarshalText satisfies encoding.TextMarshaler interface.
func (dt DType) MarshalText() ([]byte, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return []byte(dTypeToString[dt]), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (dt *DType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "F16":
		*dt = F16
	case "F32":
		*dt = F32
	default:
		return fmt.Errorf("failed to text-unmarshal DType from value %q", string(text))
	}
	return nil
}
