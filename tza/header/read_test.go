// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
	"testing/iotest"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeArchive lays out a preamble, blockSize filler bytes and the table
// of h, fixing h.TableOffset accordingly.
func makeArchive(t *testing.T, h Header, blockSize int) []byte {
	h.TableOffset = int64(PreambleSize + blockSize)
	data := AppendPreamble(nil, h)
	data = append(data, bytes.Repeat([]byte{0xff}, blockSize)...)
	data, err := AppendTable(data, h)
	require.NoError(t, err)
	return data
}

func twoTensors(major uint8) Header {
	h := Header{
		Major: major,
		Tensors: TensorMap{
			"foo.weight": Tensor{
				Name: "foo.weight", DType: dtype.F32, Shape: tensor.Shape{2, 1, 3, 3}, Layout: "oihw",
				Block: Block{Offset: 12, Length: 72},
			},
			"foo.bias": Tensor{
				Name: "foo.bias", DType: dtype.F16, Shape: tensor.Shape{2}, Layout: "x",
				Block: Block{Offset: 84, Length: 4},
			},
		},
		Names: []string{"foo.weight", "foo.bias"},
	}
	if major == VersionCompressed {
		w := h.Tensors["foo.weight"]
		w.Codec, w.Block.Length, w.Checksum = CodecZstd, 40, 0xdeadbeef
		h.Tensors["foo.weight"] = w
		b := h.Tensors["foo.bias"]
		b.Block.Offset, b.Checksum = 52, 42
		h.Tensors["foo.bias"] = b
	}
	return h
}

func TestRead_Success(t *testing.T) {
	testCases := []struct {
		name      string
		h         Header
		blockSize int
	}{
		{"empty plain", Header{Major: VersionPlain}, 0},
		{"empty compressed", Header{Major: VersionCompressed, Minor: 1}, 0},
		{"plain tensors", twoTensors(VersionPlain), 76},
		{"compressed tensors", twoTensors(VersionCompressed), 44},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := makeArchive(t, tc.h, tc.blockSize)
			got, err := Read(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)

			want := tc.h
			want.TableOffset = int64(PreambleSize + tc.blockSize)
			assert.Equal(t, want, got)
			assert.NoError(t, got.Validate(int64(len(data))))
		})
	}
}

func TestRead_Failure(t *testing.T) {
	valid := makeArchive(t, twoTensors(VersionCompressed), 44)

	edit := func(f func(b []byte) []byte) []byte {
		return f(bytes.Clone(valid))
	}

	testCases := []struct {
		name   string
		data   []byte
		errMsg string
	}{
		{"too small", []byte{0xD7, 0x41, 2}, "archive too small: 3 bytes"},
		{
			"bad magic",
			edit(func(b []byte) []byte { b[0] = 0; return b }),
			"invalid magic 0x4100",
		},
		{
			"bad version",
			edit(func(b []byte) []byte { b[2] = 1; return b }),
			"unsupported version 1.0",
		},
		{
			"table offset before blocks",
			edit(func(b []byte) []byte { binary.LittleEndian.PutUint64(b[4:], 3); return b }),
			fmt.Sprintf("table offset 3 out of range [12, %d)", len(valid)),
		},
		{
			"table offset beyond end",
			edit(func(b []byte) []byte { binary.LittleEndian.PutUint64(b[4:], 1<<40); return b }),
			fmt.Sprintf("table offset 1099511627776 out of range [12, %d)", len(valid)),
		},
		{
			"truncated table",
			valid[:len(valid)-9],
			"failed to read table entry 1: unexpected end of table at byte 97: unexpected EOF",
		},
		{
			"missing table checksum",
			valid[:len(valid)-8],
			"failed to read table checksum: unexpected end of table at byte 105: unexpected EOF",
		},
		{
			"table checksum mismatch",
			edit(func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }),
			"table: checksum mismatch",
		},
		{
			"trailing bytes",
			append(bytes.Clone(valid), 0),
			"unexpected 1 trailing bytes after table",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := Read(bytes.NewReader(tc.data), int64(len(tc.data)))
			require.EqualError(t, err, tc.errMsg)
			assert.Equal(t, Header{}, h)
		})
	}

	t.Run("trailing bytes in plain table", func(t *testing.T) {
		data := append(makeArchive(t, twoTensors(VersionPlain), 76), 0)
		_, err := Read(bytes.NewReader(data), int64(len(data)))
		require.EqualError(t, err, "unexpected 1 trailing bytes after table")
	})

	t.Run("duplicate name", func(t *testing.T) {
		h := twoTensors(VersionPlain)
		h.Names = []string{"foo.bias", "foo.bias"}
		data := makeArchive(t, h, 76)
		_, err := Read(bytes.NewReader(data), int64(len(data)))
		require.EqualError(t, err, `duplicate tensor name "foo.bias"`)
	})

	t.Run("unknown dtype code", func(t *testing.T) {
		h := Header{Major: VersionPlain, Names: []string{"a"}}
		h.TableOffset = PreambleSize
		data := AppendPreamble(nil, h)
		data = binary.LittleEndian.AppendUint32(data, 1)
		data = binary.LittleEndian.AppendUint16(data, 1)
		data = append(data, 'a', 1)
		data = binary.LittleEndian.AppendUint32(data, 4)
		data = append(data, 'x', 'd')
		data = binary.LittleEndian.AppendUint64(data, 12)
		_, err := Read(bytes.NewReader(data), int64(len(data)))
		require.EqualError(t, err, `failed to read table entry 0: tensor "a": unknown DType code 'd'`)
	})

	t.Run("reader error", func(t *testing.T) {
		r := readerAtFunc(func(p []byte, off int64) (int, error) { return 0, iotest.ErrTimeout })
		_, err := Read(r, 100)
		require.EqualError(t, err, "failed to read preamble: timeout")
	})
}

type readerAtFunc func(p []byte, off int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) { return f(p, off) }
