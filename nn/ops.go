// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nn evaluates denoiser networks on float32 tensors.
//
// All activations are NCHW ordered. Evaluation is single-threaded and
// meant for producing reference outputs, not for speed.
package nn

import (
	"errors"
	"fmt"

	"github.com/nlpodyssey/denoiseconv/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ErrShape is wrapped by errors reporting operands of unexpected shape.
var ErrShape = errors.New("nn: shape mismatch")

func dims4(x *tensor.Dense, op string) (n, c, h, w int, err error) {
	if len(x.Shape) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("%w: %s: input must be 4D [N,C,H,W], got shape %v", ErrShape, op, x.Shape)
	}
	return x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3], nil
}

// Conv2D convolves x [N,C,H,W] with weight [O,C,K,K] using stride 1 and
// zero "same" padding, then adds bias [O].
//
// Each image is unfolded with im2col into a [C*K*K, H*W] matrix, which is
// multiplied by the [O, C*K*K] weight matrix with SGEMM.
func Conv2D(x, weight, bias *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "conv2d")
	if err != nil {
		return nil, err
	}
	if len(weight.Shape) != 4 {
		return nil, fmt.Errorf("%w: conv2d: weight must be 4D [O,C,KH,KW], got shape %v", ErrShape, weight.Shape)
	}
	o, wc, kh, kw := weight.Shape[0], weight.Shape[1], weight.Shape[2], weight.Shape[3]
	if wc != c {
		return nil, fmt.Errorf("%w: conv2d: input has %d channels, weight expects %d", ErrShape, c, wc)
	}
	if kh != kw || kh%2 == 0 {
		return nil, fmt.Errorf("%w: conv2d: kernel %dx%d is not odd and square", ErrShape, kh, kw)
	}
	if len(bias.Shape) != 1 || bias.Shape[0] != o {
		return nil, fmt.Errorf("%w: conv2d: bias shape %v, want [%d]", ErrShape, bias.Shape, o)
	}

	k := c * kh * kw
	hw := h * w
	out := tensor.NewDense(tensor.Shape{n, o, h, w})
	col := make([]float32, k*hw)
	wm := blas32.General{Rows: o, Cols: k, Stride: k, Data: weight.Data}

	for b := 0; b < n; b++ {
		im2col(col, x.Data[b*c*hw:(b+1)*c*hw], c, h, w, kh)
		dst := out.Data[b*o*hw : (b+1)*o*hw]
		for oc := 0; oc < o; oc++ {
			v := bias.Data[oc]
			row := dst[oc*hw : (oc+1)*hw]
			for i := range row {
				row[i] = v
			}
		}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			wm,
			blas32.General{Rows: k, Cols: hw, Stride: hw, Data: col},
			1,
			blas32.General{Rows: o, Cols: hw, Stride: hw, Data: dst},
		)
	}
	return out, nil
}

// im2col fills col [C*K*K, H*W] so that row (ch, ky, kx) holds, for every
// output position, the input value under that kernel tap.
func im2col(col, img []float32, c, h, w, k int) {
	pad := k / 2
	hw := h * w
	row := 0
	for ch := 0; ch < c; ch++ {
		plane := img[ch*hw : (ch+1)*hw]
		for ky := 0; ky < k; ky++ {
			for kx := 0; kx < k; kx++ {
				dst := col[row*hw : (row+1)*hw]
				for y := 0; y < h; y++ {
					sy := y + ky - pad
					line := dst[y*w : (y+1)*w]
					if sy < 0 || sy >= h {
						clear(line)
						continue
					}
					src := plane[sy*w : (sy+1)*w]
					for x := 0; x < w; x++ {
						sx := x + kx - pad
						if sx < 0 || sx >= w {
							line[x] = 0
						} else {
							line[x] = src[sx]
						}
					}
				}
				row++
			}
		}
	}
}

// ReLU replaces negative values of x with zero, in place.
func ReLU(x *tensor.Dense) {
	for i, v := range x.Data {
		if v < 0 {
			x.Data[i] = 0
		}
	}
}

// MaxPool2 applies 2x2 max-pooling with stride 2. Height and width must
// be even.
func MaxPool2(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "maxpool")
	if err != nil {
		return nil, err
	}
	if h%2 != 0 || w%2 != 0 {
		return nil, fmt.Errorf("%w: maxpool: odd spatial size %dx%d", ErrShape, h, w)
	}
	oh, ow := h/2, w/2
	out := tensor.NewDense(tensor.Shape{n, c, oh, ow})
	for p := 0; p < n*c; p++ {
		src := x.Data[p*h*w : (p+1)*h*w]
		dst := out.Data[p*oh*ow : (p+1)*oh*ow]
		for y := 0; y < oh; y++ {
			top := src[2*y*w : (2*y+1)*w]
			bottom := src[(2*y+1)*w : (2*y+2)*w]
			for x := 0; x < ow; x++ {
				dst[y*ow+x] = max(top[2*x], top[2*x+1], bottom[2*x], bottom[2*x+1])
			}
		}
	}
	return out, nil
}

// Upsample2 doubles height and width with nearest-neighbour sampling.
func Upsample2(x *tensor.Dense) (*tensor.Dense, error) {
	n, c, h, w, err := dims4(x, "upsample")
	if err != nil {
		return nil, err
	}
	oh, ow := h*2, w*2
	out := tensor.NewDense(tensor.Shape{n, c, oh, ow})
	for p := 0; p < n*c; p++ {
		src := x.Data[p*h*w : (p+1)*h*w]
		dst := out.Data[p*oh*ow : (p+1)*oh*ow]
		for y := 0; y < oh; y++ {
			line := src[(y/2)*w : (y/2+1)*w]
			for x := 0; x < ow; x++ {
				dst[y*ow+x] = line[x/2]
			}
		}
	}
	return out, nil
}

// Concat joins xs along the channel axis. All operands must share batch
// size, height and width.
func Concat(xs ...*tensor.Dense) (*tensor.Dense, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: concat: no operands", ErrShape)
	}
	n, _, h, w, err := dims4(xs[0], "concat")
	if err != nil {
		return nil, err
	}
	total := 0
	for _, x := range xs {
		xn, xc, xh, xw, err := dims4(x, "concat")
		if err != nil {
			return nil, err
		}
		if xn != n || xh != h || xw != w {
			return nil, fmt.Errorf("%w: concat: shape %v does not match %v", ErrShape, x.Shape, xs[0].Shape)
		}
		total += xc
	}

	out := tensor.NewDense(tensor.Shape{n, total, h, w})
	hw := h * w
	for b := 0; b < n; b++ {
		dst := out.Data[b*total*hw:]
		off := 0
		for _, x := range xs {
			size := x.Shape[1] * hw
			copy(dst[off:off+size], x.Data[b*size:(b+1)*size])
			off += size
		}
	}
	return out, nil
}
