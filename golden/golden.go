// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package golden produces regression fixtures for converted models: a
// synthetic input and the output the network computes from it.
//
// Fixtures are stored as NPY arrays in NHWC order, the activation layout of
// the inference runtime.
package golden

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/nn"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// DefaultExtent is the height and width of generated inputs.
const DefaultExtent = 64

// ErrExtent is returned for extents the network cannot process.
var ErrExtent = errors.New("golden: invalid extent")

// Options controls Generate.
type Options struct {
	// Extent is the spatial size of the square input. Zero selects
	// DefaultExtent. It must be a multiple of nn.SpatialMultiple.
	Extent int
	// Seed initializes the random input generator.
	Seed uint64
}

// Vectors is an input/output pair in NCHW order.
type Vectors struct {
	Input  *tensor.Dense
	Output *tensor.Dense
}

// Generate fills an input of shape [1, InChannels, Extent, Extent] with
// uniform values in [0, 1) and evaluates inst on it.
//
// The same Options always yield the same input.
func Generate(inst *model.Instance, opts Options) (*Vectors, error) {
	e := opts.Extent
	if e == 0 {
		e = DefaultExtent
	}
	if e < 0 || e%nn.SpatialMultiple != 0 {
		return nil, fmt.Errorf("%w: %d is not a positive multiple of %d", ErrExtent, e, nn.SpatialMultiple)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, ^opts.Seed))
	in := tensor.NewDense(tensor.Shape{1, inst.InChannels(), e, e})
	for i := range in.Data {
		in.Data[i] = rng.Float32()
	}

	out, err := nn.Forward(inst, in)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model %q: %w", inst.Name, err)
	}
	return &Vectors{Input: in, Output: out}, nil
}

// FileNames returns the fixture file names for the archive base name.
func FileNames(base string) (input, output string) {
	return "in_" + base + ".npy", "out_" + base + ".npy"
}
