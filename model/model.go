// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model binds the weights of an archive to the fixed U-Net
// topology of the denoiser family.
package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/tza"
)

// WeightLayout and BiasLayout are the only accepted record layouts.
const (
	WeightLayout = "oihw"
	BiasLayout   = "x"
)

// ErrIncompatibleShape is wrapped by errors reporting tensors whose shape
// does not fit the topology.
var ErrIncompatibleShape = errors.New("incompatible shape")

// ShapeError describes a tensor dimension that does not fit the topology.
// An Axis of -1 refers to the rank of the tensor.
type ShapeError struct {
	Key  string
	Axis int
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("%s: tensor %q: rank %d, want %d", ErrIncompatibleShape, e.Key, e.Got, e.Want)
	}
	return fmt.Sprintf("%s: tensor %q: axis %d has size %d, want %d", ErrIncompatibleShape, e.Key, e.Axis, e.Got, e.Want)
}

// Unwrap returns ErrIncompatibleShape.
func (e *ShapeError) Unwrap() error {
	return ErrIncompatibleShape
}

// Stage is a StageDescriptor with resolved channels and, for Conv stages,
// bound weights.
type Stage struct {
	StageDescriptor
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	// Weight is the OIHW convolution kernel of a Conv stage.
	Weight tza.Record
	// Bias holds one value per output channel of a Conv stage.
	Bias tza.Record
}

// Instance is a network with every stage bound to its weights.
type Instance struct {
	Name   string
	Params arch.Params
	Stages []Stage
}

// Build binds the tensors of src to the topology described by params.
//
// Every Conv stage requires a "<stage>.weight" tensor of shape
// [out, in, kh, kw] with an odd square kernel, and a "<stage>.bias"
// tensor of shape [out]. out must equal the stage width and in the
// number of channels produced by the stage's source.
//
// On failure no Instance is returned: absent tensors are reported wrapping
// arch.ErrMissingKey, mismatching ones wrapping ErrIncompatibleShape.
func Build(name string, params arch.Params, src arch.TensorSource) (*Instance, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	descs := Topology(params)
	in, out := stageChannels(descs, params.InChannels)
	inst := &Instance{
		Name:   name,
		Params: params,
		Stages: make([]Stage, len(descs)),
	}
	for i, d := range descs {
		s := Stage{StageDescriptor: d, InChannels: in[i], OutChannels: out[i]}
		if d.Kind == Conv {
			if err := bindConv(&s, src); err != nil {
				return nil, err
			}
		}
		inst.Stages[i] = s
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// sourceChannels sums the output channels of the given stages.
func (inst *Instance) sourceChannels(sources []int) int {
	n := 0
	for _, src := range sources {
		if src == InputSource {
			n += inst.Params.InChannels
		} else {
			n += inst.Stages[src].OutChannels
		}
	}
	return n
}

func bindConv(s *Stage, src arch.TensorSource) error {
	wKey, bKey := s.Name+".weight", s.Name+".bias"

	w, err := src.Get(wKey)
	if err != nil {
		return arch.LookupError(wKey, err)
	}
	b, err := src.Get(bKey)
	if err != nil {
		return arch.LookupError(bKey, err)
	}

	if len(w.Shape) != 4 {
		return &ShapeError{Key: wKey, Axis: -1, Want: 4, Got: len(w.Shape)}
	}
	if w.Layout != WeightLayout {
		return fmt.Errorf("%w: tensor %q: layout %q, want %q", ErrIncompatibleShape, wKey, w.Layout, WeightLayout)
	}
	if len(b.Shape) != 1 {
		return &ShapeError{Key: bKey, Axis: -1, Want: 1, Got: len(b.Shape)}
	}
	if b.Layout != BiasLayout {
		return fmt.Errorf("%w: tensor %q: layout %q, want %q", ErrIncompatibleShape, bKey, b.Layout, BiasLayout)
	}

	s.KernelH, s.KernelW = w.Shape[2], w.Shape[3]
	if s.KernelH%2 == 0 || s.KernelH != s.KernelW {
		return fmt.Errorf("%w: tensor %q: kernel %dx%d is not odd and square", ErrIncompatibleShape, wKey, s.KernelH, s.KernelW)
	}
	s.Weight, s.Bias = w, b
	return checkConv(*s)
}

func checkConv(s Stage) error {
	wKey, bKey := s.Name+".weight", s.Name+".bias"
	checks := []struct {
		key       string
		axis      int
		got, want int
	}{
		{wKey, 0, s.Weight.Shape[0], s.OutChannels},
		{wKey, 1, s.Weight.Shape[1], s.InChannels},
		{bKey, 0, s.Bias.Shape[0], s.OutChannels},
	}
	for _, c := range checks {
		if c.got != c.want {
			return &ShapeError{Key: c.key, Axis: c.axis, Want: c.want, Got: c.got}
		}
	}
	return nil
}

// Validate re-checks that the stages follow the topology of the instance
// parameters, and that every stage consumes exactly the channels its
// sources produce.
func (inst *Instance) Validate() error {
	descs := Topology(inst.Params)
	if len(inst.Stages) != len(descs) {
		return fmt.Errorf("instance has %d stages, want %d", len(inst.Stages), len(descs))
	}
	for i, s := range inst.Stages {
		d := descs[i]
		if s.Name != d.Name || s.Kind != d.Kind || s.ReLU != d.ReLU || !slices.Equal(s.Sources, d.Sources) {
			return fmt.Errorf("stage %d: got %s %q, want %s %q", i, s.Kind, s.Name, d.Kind, d.Name)
		}
		for _, src := range s.Sources {
			if src != InputSource && (src < 0 || src >= i) {
				return fmt.Errorf("stage %q: source %d is not an earlier stage", s.Name, src)
			}
		}
		if in := inst.sourceChannels(s.Sources); s.InChannels != in {
			return fmt.Errorf("stage %q: %d input channels, sources produce %d", s.Name, s.InChannels, in)
		}

		if s.Kind != Conv {
			if s.OutChannels != s.InChannels {
				return fmt.Errorf("stage %q: %d output channels, want %d", s.Name, s.OutChannels, s.InChannels)
			}
			continue
		}
		if s.OutChannels != d.Width {
			return fmt.Errorf("stage %q: %d output channels, want %d", s.Name, s.OutChannels, d.Width)
		}
		if len(s.Weight.Shape) != 4 || len(s.Bias.Shape) != 1 {
			return fmt.Errorf("stage %q: weights are not bound", s.Name)
		}
		if err := checkConv(s); err != nil {
			return err
		}
	}
	return nil
}

// InChannels returns the number of channels of the network input.
func (inst *Instance) InChannels() int {
	return inst.Params.InChannels
}

// OutChannels returns the number of channels of the network output.
func (inst *Instance) OutChannels() int {
	return inst.Stages[len(inst.Stages)-1].OutChannels
}

// Stage returns the stage with the given name, and whether it exists.
func (inst *Instance) Stage(name string) (Stage, bool) {
	for _, s := range inst.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}
