// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package synth generates deterministic random weight sets for tests.
package synth

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/nlpodyssey/denoiseconv/tza"
)

// Params returns the parameters of a network of the default family.
func Params(in, out int) arch.Params {
	return arch.Params{InChannels: in, OutChannels: out, Widths: arch.DefaultWidths}
}

// Records returns He-initialized weights and small biases for every
// tensor required by a network with the given parameters.
func Records(p arch.Params, dt dtype.DType, kernel int, seed uint64) []tza.Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	specs := model.RequiredTensors(p, kernel)
	records := make([]tza.Record, len(specs))
	for i, s := range specs {
		values := make([]float32, s.Shape.NumElements())
		scale := 0.01
		if len(s.Shape) == 4 {
			scale = math.Sqrt(2 / float64(s.Shape[1]*s.Shape[2]*s.Shape[3]))
		}
		for j := range values {
			values[j] = float32(rng.NormFloat64() * scale)
		}
		records[i] = tza.Record{
			Name:   s.Key,
			DType:  dt,
			Shape:  s.Shape,
			Layout: s.Layout,
			Data:   tensor.EncodeFloat32(dt, values),
		}
	}
	return records
}

// Without returns a copy of records without the named ones.
func Without(records []tza.Record, names ...string) []tza.Record {
	out := make([]tza.Record, 0, len(records))
next:
	for _, r := range records {
		for _, n := range names {
			if r.Name == n {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// Archive serializes records to an in-memory TZA archive.
func Archive(records []tza.Record, opts tza.WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := tza.Serialize(&buf, records, opts); err != nil {
		return nil, fmt.Errorf("failed to serialize synthetic archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Source is an in-memory arch.TensorSource.
type Source map[string]tza.Record

// NewSource indexes records by name.
func NewSource(records []tza.Record) Source {
	s := make(Source, len(records))
	for _, r := range records {
		s[r.Name] = r
	}
	return s
}

// Get returns the named record or an error wrapping tza.ErrKeyNotFound.
func (s Source) Get(name string) (tza.Record, error) {
	r, ok := s[name]
	if !ok {
		return tza.Record{}, fmt.Errorf("%w: %q", tza.ErrKeyNotFound, name)
	}
	return r, nil
}
