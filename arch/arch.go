// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch infers the architecture parameters of a denoising U-Net
// from the tensors of a weight archive.
//
// The network belongs to a fixed family: only the number of input and
// output channels vary between members. Both are read from designated
// axes of designated tensors, listed in Designations.
package arch

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/denoiseconv/tza"
)

var (
	// ErrMissingKey is returned when a required tensor is absent.
	// Errors wrapping it also wrap tza.ErrKeyNotFound.
	ErrMissingKey = errors.New("missing key")
	// ErrShapeTooShort is returned when a designated tensor has no
	// designated axis.
	ErrShapeTooShort = errors.New("shape too short")
	// ErrInvalidChannels is returned when a designated axis is empty.
	ErrInvalidChannels = errors.New("invalid channel count")
)

// TensorSource provides named tensor records, such as a *tza.Archive.
type TensorSource interface {
	// Get returns the named record, or an error wrapping
	// tza.ErrKeyNotFound.
	Get(name string) (tza.Record, error)
}

// Designation binds an architecture parameter to one axis of one tensor.
type Designation struct {
	Param string
	Key   string
	Axis  int
}

// Designations is the single place where assumptions about where the
// architecture parameters live are recorded. Convolution weights are
// stored OIHW: axis 0 is the output channels, axis 1 the input channels.
var Designations = [...]Designation{
	{Param: "in_channels", Key: "enc_conv0.weight", Axis: 1},
	{Param: "out_channels", Key: "dec_conv0.weight", Axis: 0},
}

// Widths lists the output channels of the convolution stages.
type Widths struct {
	// Encoder holds the widths of enc_conv0/enc_conv1, enc_conv2,
	// enc_conv3, enc_conv4 and enc_conv5a/enc_conv5b.
	Encoder [5]int
	// Decoder holds the widths of dec_conv4a/dec_conv4b,
	// dec_conv3a/dec_conv3b, dec_conv2a/dec_conv2b, dec_conv1a and
	// dec_conv1b.
	Decoder [5]int
}

// DefaultWidths are the widths of the only supported network family.
var DefaultWidths = Widths{
	Encoder: [5]int{32, 48, 64, 80, 96},
	Decoder: [5]int{112, 96, 64, 64, 32},
}

// Params are the architecture parameters of a network.
type Params struct {
	InChannels  int
	OutChannels int
	Widths      Widths
}

// Infer reads the designated dimensions from src.
//
// No default is ever substituted: an absent tensor is reported wrapping
// ErrMissingKey, a tensor of too small rank wrapping ErrShapeTooShort and
// an empty axis wrapping ErrInvalidChannels. Every error names the
// offending key.
func Infer(src TensorSource) (Params, error) {
	p := Params{Widths: DefaultWidths}
	for _, d := range Designations {
		v, err := d.lookup(src)
		if err != nil {
			return Params{}, err
		}
		switch d.Param {
		case "in_channels":
			p.InChannels = v
		case "out_channels":
			p.OutChannels = v
		}
	}
	return p, nil
}

func (d Designation) lookup(src TensorSource) (int, error) {
	r, err := src.Get(d.Key)
	if err != nil {
		return 0, LookupError(d.Key, err)
	}
	if len(r.Shape) <= d.Axis {
		return 0, fmt.Errorf("%w: %s: tensor %q has shape %v, axis %d required",
			ErrShapeTooShort, d.Param, d.Key, r.Shape, d.Axis)
	}
	v := r.Shape[d.Axis]
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s: tensor %q has size %d on axis %d",
			ErrInvalidChannels, d.Param, d.Key, v, d.Axis)
	}
	return v, nil
}

// LookupError converts an error returned by TensorSource.Get for the
// given key. Missing keys are reported wrapping ErrMissingKey.
func LookupError(key string, err error) error {
	if errors.Is(err, tza.ErrKeyNotFound) {
		return fmt.Errorf("%w %q: %w", ErrMissingKey, key, err)
	}
	return fmt.Errorf("failed to get tensor %q: %w", key, err)
}

// Validate checks that all channel counts are positive.
func (p Params) Validate() error {
	if p.InChannels <= 0 || p.OutChannels <= 0 {
		return fmt.Errorf("%w: in %d, out %d", ErrInvalidChannels, p.InChannels, p.OutChannels)
	}
	for _, w := range append(p.Widths.Encoder[:], p.Widths.Decoder[:]...) {
		if w <= 0 {
			return fmt.Errorf("%w: width %d", ErrInvalidChannels, w)
		}
	}
	return nil
}
