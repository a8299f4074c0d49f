// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dtype

import (
	"encoding"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ encoding.TextMarshaler   = DType(0)
	_ encoding.TextUnmarshaler = new(DType)
)

var (
	validValues = []struct {
		dType  DType
		size   int
		string string
		char   byte
	}{
		{F16, 2, "F16", 'h'},
		{F32, 4, "F32", 'f'},
	}
	invalidValues = []DType{0, 3, 4, 254, 255}
)

func TestDType_Validate(t *testing.T) {
	for _, tc := range validValues {
		assert.NoError(t, tc.dType.Validate())
	}

	for _, dt := range invalidValues {
		assert.EqualError(t, dt.Validate(), fmt.Sprintf("invalid DType(%d)", dt))
	}
}

func TestDType_String(t *testing.T) {
	for _, tc := range validValues {
		assert.Equal(t, tc.string, tc.dType.String())
	}

	for _, dt := range invalidValues {
		assert.Equal(t, fmt.Sprintf("invalid DType(%d)", dt), dt.String())
	}
}

func TestDType_Size(t *testing.T) {
	for _, tc := range validValues {
		assert.Equal(t, tc.size, tc.dType.Size())
	}

	for _, dt := range invalidValues {
		assert.Equal(t, -1, dt.Size())
	}
}

func TestDType_Char(t *testing.T) {
	for _, tc := range validValues {
		assert.Equal(t, tc.char, tc.dType.Char())

		dt, err := FromChar(tc.char)
		require.NoError(t, err)
		assert.Equal(t, tc.dType, dt)
	}

	for _, dt := range invalidValues {
		assert.Zero(t, dt.Char())
	}

	_, err := FromChar('d')
	assert.EqualError(t, err, `unknown DType code 'd'`)
}

func TestDType_MarshalText(t *testing.T) {
	for _, tc := range validValues {
		b, err := tc.dType.MarshalText()
		assert.NoError(t, err)
		assert.Equal(t, []byte(tc.string), b)
	}

	for _, dt := range invalidValues {
		b, err := dt.MarshalText()
		assert.EqualError(t, err, fmt.Sprintf("invalid DType(%d)", dt))
		assert.Nil(t, b)
	}
}

func TestDType_UnmarshalText(t *testing.T) {
	for _, tc := range validValues {
		var dt DType
		err := dt.UnmarshalText([]byte(tc.string))
		assert.NoError(t, err)
		assert.Equal(t, tc.dType, dt)
	}

	var dt DType
	assert.EqualError(t, dt.UnmarshalText(nil), `failed to text-unmarshal DType from value ""`)
	assert.EqualError(t, dt.UnmarshalText([]byte("foo")), `failed to text-unmarshal DType from value "foo"`)
	assert.EqualError(t, dt.UnmarshalText([]byte(`"F32"`)), `failed to text-unmarshal DType from value "\"F32\""`)
}
