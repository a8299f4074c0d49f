// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"fmt"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// StageKind identifies the operation performed by a stage.
type StageKind uint8

const (
	// Conv is a 2-D convolution with bias, "same" padding and stride 1.
	Conv StageKind = iota
	// MaxPool is a 2x2 max-pooling with stride 2.
	MaxPool
	// Upsample is a 2x nearest-neighbour upsampling.
	Upsample
	// Concat concatenates its sources along the channel axis.
	Concat
)

func (k StageKind) String() string {
	switch k {
	case Conv:
		return "Conv"
	case MaxPool:
		return "MaxPool"
	case Upsample:
		return "Upsample"
	case Concat:
		return "Concat"
	default:
		return fmt.Sprintf("StageKind(%d)", k)
	}
}

// InputSource is the source index denoting the network input.
const InputSource = -1

// StageDescriptor describes one stage of the network.
type StageDescriptor struct {
	Name string
	Kind StageKind
	// Sources are indexes of earlier stages, or InputSource.
	Sources []int
	// Width is the number of output channels of a Conv stage, 0 otherwise.
	Width int
	// ReLU reports whether a rectifier follows a Conv stage.
	ReLU bool
}

// NumStages is the number of stages of every network of the family.
const NumStages = 28

// Topology returns the stage descriptors of the network with the given
// parameters, in evaluation order.
func Topology(p arch.Params) []StageDescriptor {
	enc, dec := p.Widths.Encoder, p.Widths.Decoder

	t := &topologyBuilder{index: make(map[string]int, NumStages)}
	t.conv("enc_conv0", enc[0], true, "")
	t.conv("enc_conv1", enc[0], true, "enc_conv0")
	t.op("pool1", MaxPool, "enc_conv1")
	t.conv("enc_conv2", enc[1], true, "pool1")
	t.op("pool2", MaxPool, "enc_conv2")
	t.conv("enc_conv3", enc[2], true, "pool2")
	t.op("pool3", MaxPool, "enc_conv3")
	t.conv("enc_conv4", enc[3], true, "pool3")
	t.op("pool4", MaxPool, "enc_conv4")
	t.conv("enc_conv5a", enc[4], true, "pool4")
	t.conv("enc_conv5b", enc[4], true, "enc_conv5a")

	t.op("upsample4", Upsample, "enc_conv5b")
	t.op("concat4", Concat, "upsample4", "pool3")
	t.conv("dec_conv4a", dec[0], true, "concat4")
	t.conv("dec_conv4b", dec[0], true, "dec_conv4a")

	t.op("upsample3", Upsample, "dec_conv4b")
	t.op("concat3", Concat, "upsample3", "pool2")
	t.conv("dec_conv3a", dec[1], true, "concat3")
	t.conv("dec_conv3b", dec[1], true, "dec_conv3a")

	t.op("upsample2", Upsample, "dec_conv3b")
	t.op("concat2", Concat, "upsample2", "pool1")
	t.conv("dec_conv2a", dec[2], true, "concat2")
	t.conv("dec_conv2b", dec[2], true, "dec_conv2a")

	t.op("upsample1", Upsample, "dec_conv2b")
	t.op("concat1", Concat, "upsample1", "")
	t.conv("dec_conv1a", dec[3], true, "concat1")
	t.conv("dec_conv1b", dec[4], true, "dec_conv1a")

	t.conv("dec_conv0", p.OutChannels, false, "dec_conv1b")
	return t.stages
}

// topologyBuilder resolves source names to indexes; the empty name is
// the network input.
type topologyBuilder struct {
	stages []StageDescriptor
	index  map[string]int
}

func (t *topologyBuilder) conv(name string, width int, relu bool, source string) {
	t.add(StageDescriptor{Name: name, Kind: Conv, Width: width, ReLU: relu}, source)
}

func (t *topologyBuilder) op(name string, kind StageKind, sources ...string) {
	t.add(StageDescriptor{Name: name, Kind: kind}, sources...)
}

func (t *topologyBuilder) add(s StageDescriptor, sources ...string) {
	for _, name := range sources {
		if name == "" {
			s.Sources = append(s.Sources, InputSource)
			continue
		}
		i, ok := t.index[name]
		if !ok {
			panic(fmt.Sprintf("model: stage %q refers to unknown stage %q", s.Name, name))
		}
		s.Sources = append(s.Sources, i)
	}
	t.index[s.Name] = len(t.stages)
	t.stages = append(t.stages, s)
}

// stageChannels returns the input and output channels of every stage.
func stageChannels(descs []StageDescriptor, inChannels int) (in, out []int) {
	in = make([]int, len(descs))
	out = make([]int, len(descs))
	for i, d := range descs {
		for _, src := range d.Sources {
			if src == InputSource {
				in[i] += inChannels
			} else {
				in[i] += out[src]
			}
		}
		out[i] = in[i]
		if d.Kind == Conv {
			out[i] = d.Width
		}
	}
	return in, out
}

// TensorSpec describes a tensor required by Build.
type TensorSpec struct {
	Key    string
	Shape  tensor.Shape
	Layout string
}

// RequiredTensors lists, in stage order, the tensors Build requires for
// the given parameters when every convolution has a square kernel of the
// given size.
func RequiredTensors(p arch.Params, kernel int) []TensorSpec {
	descs := Topology(p)
	in, out := stageChannels(descs, p.InChannels)
	var specs []TensorSpec
	for i, d := range descs {
		if d.Kind != Conv {
			continue
		}
		specs = append(specs,
			TensorSpec{Key: d.Name + ".weight", Shape: tensor.Shape{out[i], in[i], kernel, kernel}, Layout: WeightLayout},
			TensorSpec{Key: d.Name + ".bias", Shape: tensor.Shape{out[i]}, Layout: BiasLayout},
		)
	}
	return specs
}
