// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nn

import (
	"fmt"

	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// SpatialMultiple is the factor height and width of a network input must
// be a multiple of, one halving per pooling stage.
const SpatialMultiple = 16

// Forward evaluates inst on x [N, InChannels, H, W] and returns the output
// [N, OutChannels, H, W]. Weights stored as F16 are widened to float32.
func Forward(inst *model.Instance, x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "forward")
	if err != nil {
		return nil, err
	}
	if c != inst.InChannels() {
		return nil, fmt.Errorf("%w: forward: input has %d channels, network expects %d", ErrShape, c, inst.InChannels())
	}
	if n == 0 || h == 0 || w == 0 || h%SpatialMultiple != 0 || w%SpatialMultiple != 0 {
		return nil, fmt.Errorf("%w: forward: spatial size %dx%d is not a positive multiple of %d", ErrShape, h, w, SpatialMultiple)
	}

	outs := make([]*tensor.Dense, len(inst.Stages))
	source := func(i int) *tensor.Dense {
		if i == model.InputSource {
			return x
		}
		return outs[i]
	}

	for i, s := range inst.Stages {
		var y *tensor.Dense
		switch s.Kind {
		case model.Conv:
			y, err = conv(s, source(s.Sources[0]))
		case model.MaxPool:
			y, err = MaxPool2(source(s.Sources[0]))
		case model.Upsample:
			y, err = Upsample2(source(s.Sources[0]))
		case model.Concat:
			operands := make([]*tensor.Dense, len(s.Sources))
			for j, src := range s.Sources {
				operands[j] = source(src)
			}
			y, err = Concat(operands...)
		default:
			err = fmt.Errorf("unknown stage kind %s", s.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name, err)
		}
		outs[i] = y
	}
	return outs[len(outs)-1], nil
}

func conv(s model.Stage, x *tensor.Dense) (*tensor.Dense, error) {
	weight, err := s.Weight.Dense()
	if err != nil {
		return nil, fmt.Errorf("failed to decode weight: %w", err)
	}
	bias, err := s.Bias.Dense()
	if err != nil {
		return nil, fmt.Errorf("failed to decode bias: %w", err)
	}
	y, err := Conv2D(x, weight, bias)
	if err != nil {
		return nil, err
	}
	if s.ReLU {
		ReLU(y)
	}
	return y, nil
}
