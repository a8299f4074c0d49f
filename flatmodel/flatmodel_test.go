// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatmodel

import (
	"encoding/binary"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/flatmodel/denoiser"
	"github.com/nlpodyssey/denoiseconv/internal/synth"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildInstance(t *testing.T, in, out int, dt dtype.DType) *model.Instance {
	t.Helper()
	params := synth.Params(in, out)
	inst, err := model.Build("rt_test", params, synth.NewSource(synth.Records(params, dt, 3, 11)))
	require.NoError(t, err)
	return inst
}

// detached copies buf into a slice whose capacity equals its length.
func detached(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	return out
}

func TestSerialize(t *testing.T) {
	for _, dt := range []dtype.DType{dtype.F32, dtype.F16} {
		t.Run(dt.String(), func(t *testing.T) {
			inst := buildInstance(t, 9, 3, dt)
			buf, err := Serialize(inst, Options{})
			require.NoError(t, err)
			buf = detached(buf)

			assert.True(t, denoiser.ModelBufferHasIdentifier(buf))
			assert.LessOrEqual(t, int64(len(buf)), UpperBound(inst))
			require.NoError(t, Verify(buf))

			s, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, "rt_test", s.Name)
			assert.Equal(t, 9, s.InChannels)
			assert.Equal(t, 3, s.OutChannels)
			require.Len(t, s.Layers, model.NumStages)

			for i, l := range s.Layers {
				st := inst.Stages[i]
				assert.Equal(t, st.Name, l.Name)
				assert.Equal(t, st.Kind, l.Kind)
				assert.Equal(t, st.InChannels, l.InChannels, st.Name)
				assert.Equal(t, st.OutChannels, l.OutChannels, st.Name)
				assert.Equal(t, st.ReLU, l.ReLU, st.Name)
				assert.Equal(t, st.Sources, l.Sources, st.Name)

				if st.Kind != model.Conv {
					assert.Nil(t, l.Weight, st.Name)
					assert.Nil(t, l.Bias, st.Name)
					continue
				}
				require.NotNil(t, l.Weight, st.Name)
				require.NotNil(t, l.Bias, st.Name)
				assert.Equal(t, 3, l.KernelH)
				assert.Equal(t, 3, l.KernelW)

				w := l.Weight
				assert.Equal(t, dt, w.DType)
				assert.Equal(t, WeightLayout, w.Layout)
				assert.Equal(t, tensor.Shape{3, 3, st.InChannels, st.OutChannels}, w.Shape)
				assert.Zero(t, w.Offset%16, "weight data of %s is not 16-byte aligned", st.Name)
				assert.Equal(t, len(buf)-cap(w.Data), w.Offset)

				back, shape, err := tensor.Permute(w.Data, dt.Size(), w.Shape, tensor.InversePerm(tensor.OIHWToHWIO))
				require.NoError(t, err)
				assert.Equal(t, st.Weight.Shape, shape)
				assert.Equal(t, st.Weight.Data, back, "weight of %s is not bit-exact", st.Name)

				assert.Equal(t, st.Bias.DType, l.Bias.DType)
				assert.Equal(t, st.Bias.Shape, l.Bias.Shape)
				assert.Equal(t, "x", l.Bias.Layout)
				assert.Equal(t, st.Bias.Data, l.Bias.Data)
			}
		})
	}
}

func TestSerialize_WeightElementOrder(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F32)
	buf, err := Serialize(inst, Options{})
	require.NoError(t, err)
	s, err := Decode(buf)
	require.NoError(t, err)

	st := inst.Stages[0]
	l := s.Layers[0]
	ow, err := st.Weight.Dense()
	require.NoError(t, err)
	hw, err := tensor.FromBytes(dtype.F32, l.Weight.Shape, l.Weight.Data)
	require.NoError(t, err)

	o, i, kh, kw := st.Weight.Shape[0], st.Weight.Shape[1], st.Weight.Shape[2], st.Weight.Shape[3]
	for _, idx := range [][4]int{{0, 0, 0, 0}, {5, 2, 1, 0}, {31, 1, 2, 2}, {17, 0, 0, 2}} {
		oc, ic, y, x := idx[0], idx[1], idx[2], idx[3]
		want := ow.Data[((oc*i+ic)*kh+y)*kw+x]
		got := hw.Data[((y*kw+x)*i+ic)*o+oc]
		assert.Equal(t, want, got, "%v", idx)
	}
}

func TestBuildTensor_DataAlignment(t *testing.T) {
	for _, n := range []int{0, 1, 6, 17, 64, 1000} {
		b := flatbuffers.NewBuilder(0)
		b.CreateString("x")
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*7 + 3)
		}
		off, err := buildTensor(b, dtype.F16, tensor.Shape{n}, "x", data)
		require.NoError(t, err)
		b.Finish(off)
		buf := b.FinishedBytes()

		tt := denoiser.GetRootAsTensor(buf, 0)
		assert.Equal(t, data, append([]byte{}, tt.DataBytes()...), "length %d", n)
		tab := tt.Table()
		o := tab.Offset(10)
		require.NotZero(t, o)
		assert.Zero(t, tab.Vector(flatbuffers.UOffsetT(o))%dataAlign, "length %d", n)
	}
}

func TestSerialize_Overflow(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F16)
	bound := UpperBound(inst)

	buf, err := Serialize(inst, Options{MaxSize: bound - 1})
	assert.Nil(t, buf)
	assert.ErrorIs(t, err, ErrSerializationOverflow)

	buf, err = Serialize(inst, Options{MaxSize: bound})
	require.NoError(t, err)
	assert.NotEmpty(t, buf)
}

func TestSerialize_InvalidInstance(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F32)
	inst.Stages = inst.Stages[:10]
	_, err := Serialize(inst, Options{})
	assert.ErrorContains(t, err, "invalid instance")
}

func TestVerify_Failure(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F32)
	valid, err := Serialize(inst, Options{})
	require.NoError(t, err)
	valid = detached(valid)

	edit := func(f func(b []byte)) []byte {
		b := detached(valid)
		f(b)
		return b
	}
	root := int64(binary.LittleEndian.Uint32(valid))

	testCases := []struct {
		name string
		buf  []byte
		want error
	}{
		{"empty", nil, ErrOutOfBounds},
		{"short", valid[:6], ErrOutOfBounds},
		{"identifier", edit(func(b []byte) { copy(b[4:8], "ABCD") }), ErrIdentifier},
		{"root offset", edit(func(b []byte) { binary.LittleEndian.PutUint32(b, uint32(len(b)+4)) }), ErrOutOfBounds},
		{"vtable offset", edit(func(b []byte) { binary.LittleEndian.PutUint32(b[root:], 0x7fffffff) }), ErrOutOfBounds},
		{"truncated", valid[:len(valid)/2], ErrOutOfBounds},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Verify(tc.buf), tc.want)
			s, err := Decode(tc.buf)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerify_CorruptedVectorLength(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F32)
	buf, err := Serialize(inst, Options{})
	require.NoError(t, err)
	buf = detached(buf)

	s, err := Decode(buf)
	require.NoError(t, err)
	w := s.Layers[0].Weight
	binary.LittleEndian.PutUint32(buf[w.Offset-4:], uint32(len(buf)))

	assert.ErrorIs(t, Verify(buf), ErrOutOfBounds)
}

func TestSummary(t *testing.T) {
	inst := buildInstance(t, 3, 3, dtype.F16)
	buf, err := Serialize(inst, Options{})
	require.NoError(t, err)
	s, err := Decode(buf)
	require.NoError(t, err)

	l, ok := s.Layer("concat1")
	require.True(t, ok)
	assert.Equal(t, model.Concat, l.Kind)
	assert.Equal(t, []int{23, model.InputSource}, l.Sources)

	_, ok = s.Layer("missing")
	assert.False(t, ok)

	want := 0
	for _, st := range inst.Stages {
		want += len(st.Weight.Data) + len(st.Bias.Data)
	}
	assert.Equal(t, want, s.WeightBytes())
}
