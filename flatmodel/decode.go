// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flatmodel

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/flatmodel/denoiser"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// Summary is the content of a serialized model.
//
// Tensor data refers to the decoded buffer without copying.
type Summary struct {
	Name        string
	InChannels  int
	OutChannels int
	Layers      []Layer
}

// Layer is a decoded layer.
type Layer struct {
	Name        string
	Kind        model.StageKind
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	ReLU        bool
	Sources     []int
	// Weight and Bias are nil for layers other than convolutions.
	Weight *Tensor
	Bias   *Tensor
}

// Tensor is a decoded tensor.
type Tensor struct {
	DType  dtype.DType
	Shape  tensor.Shape
	Layout string
	Data   []byte
	// Offset is the position of Data within the buffer.
	Offset int
}

// Decode verifies buf and reads back its content.
func Decode(buf []byte) (*Summary, error) {
	if err := Verify(buf); err != nil {
		return nil, err
	}

	m := denoiser.GetRootAsModel(buf, 0)
	s := &Summary{
		Name:        string(m.Name()),
		InChannels:  int(m.InChannels()),
		OutChannels: int(m.OutChannels()),
		Layers:      make([]Layer, m.LayersLength()),
	}

	var l denoiser.Layer
	for i := range s.Layers {
		m.Layers(&l, i)
		layer, err := decodeLayer(&l)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		s.Layers[i] = layer
	}
	return s, nil
}

func decodeLayer(l *denoiser.Layer) (Layer, error) {
	kind, err := stageKind(l.Kind())
	if err != nil {
		return Layer{}, err
	}
	out := Layer{
		Name:        string(l.Name()),
		Kind:        kind,
		InChannels:  int(l.InChannels()),
		OutChannels: int(l.OutChannels()),
		KernelH:     int(l.KernelH()),
		KernelW:     int(l.KernelW()),
		ReLU:        l.Relu(),
		Sources:     make([]int, l.SourcesLength()),
	}
	for j := range out.Sources {
		out.Sources[j] = int(l.Sources(j))
	}
	if t := l.Weight(nil); t != nil {
		if out.Weight, err = decodeTensor(t); err != nil {
			return Layer{}, fmt.Errorf("weight: %w", err)
		}
	}
	if t := l.Bias(nil); t != nil {
		if out.Bias, err = decodeTensor(t); err != nil {
			return Layer{}, fmt.Errorf("bias: %w", err)
		}
	}
	return out, nil
}

func decodeTensor(t *denoiser.Tensor) (*Tensor, error) {
	var dt dtype.DType
	switch t.Dtype() {
	case denoiser.DataTypeFloat32:
		dt = dtype.F32
	case denoiser.DataTypeFloat16:
		dt = dtype.F16
	default:
		return nil, fmt.Errorf("unknown data type %s", t.Dtype())
	}

	out := &Tensor{
		DType:  dt,
		Layout: string(t.Layout()),
		Data:   t.DataBytes(),
	}
	if n := t.ShapeLength(); n > 0 {
		out.Shape = make(tensor.Shape, n)
		for j := range out.Shape {
			out.Shape[j] = int(t.Shape(j))
		}
	}
	if want := out.Shape.NumElements() * dt.Size(); len(out.Data) != want {
		return nil, fmt.Errorf("data length %d, shape %v of %s requires %d", len(out.Data), out.Shape, dt, want)
	}

	tab := t.Table()
	if o := tab.Offset(10); o != 0 {
		out.Offset = int(tab.Vector(flatbuffers.UOffsetT(o)))
	}
	return out, nil
}

func stageKind(k denoiser.LayerKind) (model.StageKind, error) {
	switch k {
	case denoiser.LayerKindConv:
		return model.Conv, nil
	case denoiser.LayerKindMaxPool:
		return model.MaxPool, nil
	case denoiser.LayerKindUpsample:
		return model.Upsample, nil
	case denoiser.LayerKindConcat:
		return model.Concat, nil
	default:
		return 0, fmt.Errorf("unknown layer kind %s", k)
	}
}

// Layer returns the layer with the given name, and whether it exists.
func (s *Summary) Layer(name string) (Layer, bool) {
	for _, l := range s.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// WeightBytes returns the total size of all weight and bias data.
func (s *Summary) WeightBytes() int {
	n := 0
	for _, l := range s.Layers {
		if l.Weight != nil {
			n += len(l.Weight.Data)
		}
		if l.Bias != nil {
			n += len(l.Bias.Data)
		}
	}
	return n
}
