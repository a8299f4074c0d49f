// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package golden

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
)

// NPY format version 1.0.
const (
	npyMagic     = "\x93NUMPY"
	npyPrefixLen = len(npyMagic) + 4
	npyAlign     = 64
	npyDescr     = "<f4"
)

// ErrNPY is returned when reading malformed or unsupported NPY data.
var ErrNPY = errors.New("golden: invalid NPY data")

// WriteNPY writes the NCHW tensor d to w as a little-endian float32 NPY
// array in NHWC order.
func WriteNPY(w io.Writer, d *tensor.Dense) error {
	data, shape, err := tensor.Permute(d.Bytes(), dtype.F32.Size(), d.Shape, tensor.NCHWToNHWC)
	if err != nil {
		return fmt.Errorf("failed to permute to NHWC: %w", err)
	}
	return writeArray(w, shape, data)
}

func writeArray(w io.Writer, shape tensor.Shape, data []byte) error {
	dims := make([]string, len(shape))
	for i, s := range shape {
		dims[i] = strconv.Itoa(s)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", npyDescr, tuple)

	// The header is padded with spaces and ends with a newline so that the
	// data starts aligned.
	total := npyPrefixLen + len(dict) + 1
	pad := (npyAlign - total%npyAlign) % npyAlign
	hlen := len(dict) + pad + 1

	hdr := make([]byte, 0, npyPrefixLen+hlen)
	hdr = append(hdr, npyMagic...)
	hdr = append(hdr, 1, 0)
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(hlen))
	hdr = append(hdr, dict...)
	hdr = append(hdr, strings.Repeat(" ", pad)...)
	hdr = append(hdr, '\n')

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("failed to write NPY header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write NPY data: %w", err)
	}
	return nil
}

var (
	descrRe = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	orderRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ReadNPY reads a little-endian float32 C-order NPY array of version 1.0.
// The tensor keeps the stored shape.
func ReadNPY(r io.Reader) (*tensor.Dense, error) {
	br := bufio.NewReader(r)
	prefix := make([]byte, npyPrefixLen)
	if _, err := io.ReadFull(br, prefix); err != nil {
		return nil, fmt.Errorf("%w: failed to read prefix: %w", ErrNPY, err)
	}
	if string(prefix[:len(npyMagic)]) != npyMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrNPY, prefix[:len(npyMagic)])
	}
	if major := prefix[len(npyMagic)]; major != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d.%d", ErrNPY, major, prefix[len(npyMagic)+1])
	}

	hdr := make([]byte, binary.LittleEndian.Uint16(prefix[len(npyMagic)+2:]))
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %w", ErrNPY, err)
	}
	shape, err := parseHeader(string(hdr))
	if err != nil {
		return nil, err
	}

	n, err := shape.CheckedNumElements()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNPY, err)
	}
	data := make([]byte, n*dtype.F32.Size())
	if _, err = io.ReadFull(br, data); err != nil {
		return nil, fmt.Errorf("%w: failed to read data: %w", ErrNPY, err)
	}
	if _, err = br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected trailing data", ErrNPY)
	}
	return tensor.FromBytes(dtype.F32, shape, data)
}

func parseHeader(h string) (tensor.Shape, error) {
	m := descrRe.FindStringSubmatch(h)
	if m == nil || m[1] != npyDescr {
		return nil, fmt.Errorf("%w: unsupported descr in header %q", ErrNPY, h)
	}
	if m = orderRe.FindStringSubmatch(h); m == nil || m[1] != "False" {
		return nil, fmt.Errorf("%w: fortran order is not supported", ErrNPY)
	}
	m = shapeRe.FindStringSubmatch(h)
	if m == nil {
		return nil, fmt.Errorf("%w: missing shape in header %q", ErrNPY, h)
	}

	shape := tensor.Shape{}
	for _, f := range strings.Split(m[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: invalid dimension %q", ErrNPY, f)
		}
		shape = append(shape, v)
	}
	return shape, nil
}
