// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flatmodel converts denoiser networks to and from a FlatBuffers
// binary, the format consumed by inference engines.
//
// Convolution weights are stored HWIO ([kh, kw, in, out]) with the element
// type of the source archive preserved bit-exact. Biases are stored as in
// the archive.
package flatmodel

import (
	"errors"
	"fmt"
	"math"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/flatmodel/denoiser"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// FileExtension is the extension of serialized model files.
const FileExtension = ".dnzr"

// WeightLayout is the layout of serialized convolution weights.
const WeightLayout = "hwio"

// DefaultMaxSize is the FlatBuffers limit for 32-bit offsets.
const DefaultMaxSize = math.MaxInt32

// ErrSerializationOverflow is returned when a model may not fit the
// configured maximum size.
var ErrSerializationOverflow = errors.New("flatmodel: serialization overflow")

// Options controls Serialize.
type Options struct {
	// MaxSize limits the size of the produced buffer. Zero, negative and
	// too large values select DefaultMaxSize.
	MaxSize int64
}

// Serialize encodes the instance as a FlatBuffers Model.
//
// The size of the output is bounded in advance with UpperBound: if the
// bound exceeds the maximum size, an error wrapping
// ErrSerializationOverflow is returned and nothing is built.
func Serialize(inst *model.Instance, opts Options) ([]byte, error) {
	if err := inst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instance: %w", err)
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 || maxSize > DefaultMaxSize {
		maxSize = DefaultMaxSize
	}
	bound := UpperBound(inst)
	if bound > maxSize {
		return nil, fmt.Errorf("%w: model %q needs up to %d bytes, limit is %d",
			ErrSerializationOverflow, inst.Name, bound, maxSize)
	}

	b := flatbuffers.NewBuilder(int(bound))
	layers := make([]flatbuffers.UOffsetT, len(inst.Stages))
	for i, s := range inst.Stages {
		var err error
		if layers[i], err = buildLayer(b, s); err != nil {
			return nil, fmt.Errorf("layer %q: %w", s.Name, err)
		}
	}

	denoiser.ModelStartLayersVector(b, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		b.PrependUOffsetT(layers[i])
	}
	layersVec := b.EndVector(len(layers))
	name := b.CreateString(inst.Name)

	denoiser.ModelStart(b)
	denoiser.ModelAddName(b, name)
	denoiser.ModelAddInChannels(b, uint32(inst.InChannels()))
	denoiser.ModelAddOutChannels(b, uint32(inst.OutChannels()))
	denoiser.ModelAddLayers(b, layersVec)
	denoiser.FinishModelBuffer(b, denoiser.ModelEnd(b))
	return b.FinishedBytes(), nil
}

func buildLayer(b *flatbuffers.Builder, s model.Stage) (flatbuffers.UOffsetT, error) {
	var weight, bias flatbuffers.UOffsetT
	if s.Kind == model.Conv {
		w := s.Weight
		data, shape, err := tensor.Permute(w.Data, w.DType.Size(), w.Shape, tensor.OIHWToHWIO)
		if err != nil {
			return 0, fmt.Errorf("failed to permute weight: %w", err)
		}
		if weight, err = buildTensor(b, w.DType, shape, WeightLayout, data); err != nil {
			return 0, fmt.Errorf("weight: %w", err)
		}
		if bias, err = buildTensor(b, s.Bias.DType, s.Bias.Shape, s.Bias.Layout, s.Bias.Data); err != nil {
			return 0, fmt.Errorf("bias: %w", err)
		}
	}

	name := b.CreateString(s.Name)
	denoiser.LayerStartSourcesVector(b, len(s.Sources))
	for i := len(s.Sources) - 1; i >= 0; i-- {
		b.PrependInt32(int32(s.Sources[i]))
	}
	sources := b.EndVector(len(s.Sources))

	denoiser.LayerStart(b)
	denoiser.LayerAddName(b, name)
	denoiser.LayerAddKind(b, layerKind(s.Kind))
	denoiser.LayerAddInChannels(b, uint32(s.InChannels))
	denoiser.LayerAddOutChannels(b, uint32(s.OutChannels))
	denoiser.LayerAddKernelH(b, uint32(s.KernelH))
	denoiser.LayerAddKernelW(b, uint32(s.KernelW))
	denoiser.LayerAddRelu(b, s.ReLU)
	denoiser.LayerAddSources(b, sources)
	if weight != 0 {
		denoiser.LayerAddWeight(b, weight)
		denoiser.LayerAddBias(b, bias)
	}
	return denoiser.LayerEnd(b), nil
}

func buildTensor(b *flatbuffers.Builder, dt dtype.DType, shape tensor.Shape, layout string, data []byte) (flatbuffers.UOffsetT, error) {
	kind, err := dataType(dt)
	if err != nil {
		return 0, err
	}

	// Aligning here leaves CreateByteVector nothing to pad, so the data
	// starts on a dataAlign boundary as force_align requires.
	b.Prep(dataAlign, len(data))
	dataVec := b.CreateByteVector(data)

	denoiser.TensorStartShapeVector(b, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		b.PrependUint32(uint32(shape[i]))
	}
	shapeVec := b.EndVector(len(shape))
	layoutStr := b.CreateString(layout)

	denoiser.TensorStart(b)
	denoiser.TensorAddDtype(b, kind)
	denoiser.TensorAddShape(b, shapeVec)
	denoiser.TensorAddLayout(b, layoutStr)
	denoiser.TensorAddData(b, dataVec)
	return denoiser.TensorEnd(b), nil
}

func dataType(dt dtype.DType) (denoiser.DataType, error) {
	switch dt {
	case dtype.F32:
		return denoiser.DataTypeFloat32, nil
	case dtype.F16:
		return denoiser.DataTypeFloat16, nil
	default:
		return 0, fmt.Errorf("unsupported data type %s", dt)
	}
}

func layerKind(k model.StageKind) denoiser.LayerKind {
	switch k {
	case model.MaxPool:
		return denoiser.LayerKindMaxPool
	case model.Upsample:
		return denoiser.LayerKindUpsample
	case model.Concat:
		return denoiser.LayerKindConcat
	default:
		return denoiser.LayerKindConv
	}
}

// Worst-case sizes, including padding to the largest alignment in use.
const (
	dataAlign      = 16
	maxAlign       = dataAlign
	headerBound    = 2*flatbuffers.SizeUOffsetT + maxAlign
	modelFields    = 4
	layerFields    = 10
	tensorFields   = 4
	fieldSizeBound = 8
)

// UpperBound returns a size the serialized instance cannot exceed.
func UpperBound(inst *model.Instance) int64 {
	n := int64(headerBound) + tableBound(modelFields) + stringBound(inst.Name) + vectorBound(len(inst.Stages), 4)
	for _, s := range inst.Stages {
		n += tableBound(layerFields) + stringBound(s.Name) + vectorBound(len(s.Sources), 4)
		if s.Kind == model.Conv {
			n += tensorBound(len(s.Weight.Shape), WeightLayout, len(s.Weight.Data))
			n += tensorBound(len(s.Bias.Shape), s.Bias.Layout, len(s.Bias.Data))
		}
	}
	return n
}

func tableBound(fields int) int64 {
	vtable := int64(2*flatbuffers.SizeVOffsetT + fields*flatbuffers.SizeVOffsetT)
	return vtable + flatbuffers.SizeSOffsetT + int64(fields*fieldSizeBound) + 2*maxAlign
}

func vectorBound(n, elemSize int) int64 {
	return flatbuffers.SizeUOffsetT + int64(n)*int64(elemSize) + maxAlign
}

func stringBound(s string) int64 {
	return vectorBound(len(s)+1, 1)
}

func tensorBound(rank int, layout string, dataLen int) int64 {
	return tableBound(tensorFields) + vectorBound(rank, 4) + stringBound(layout) + vectorBound(dataLen, 1)
}
