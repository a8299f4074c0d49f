// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"
)

// AppendPreamble appends the encoded preamble of h to b.
func AppendPreamble(b []byte, h Header) []byte {
	b = binary.LittleEndian.AppendUint16(b, Magic)
	b = append(b, h.Major, h.Minor)
	return binary.LittleEndian.AppendUint64(b, uint64(h.TableOffset))
}

// AppendTable appends the encoded table of h to b, listing tensors in
// h.Names order.
func AppendTable(b []byte, h Header) ([]byte, error) {
	if uint64(len(h.Names)) > math.MaxUint32 {
		return nil, fmt.Errorf("too many tensors: %d", len(h.Names))
	}
	start := len(b)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(h.Names)))

	for _, name := range h.Names {
		t, ok := h.Tensors[name]
		if !ok {
			return nil, fmt.Errorf("names list refers to unknown tensor %q", name)
		}
		var err error
		if b, err = appendEntry(b, t, h.Major); err != nil {
			return nil, fmt.Errorf("failed to encode tensor %q: %w", name, err)
		}
	}

	if h.Major == VersionCompressed {
		b = binary.LittleEndian.AppendUint64(b, xxh3.Hash(b[start:]))
	}
	return b, nil
}

func appendEntry(b []byte, t Tensor, major uint8) ([]byte, error) {
	if len(t.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("name too long: %d bytes", len(t.Name))
	}
	if len(t.Shape) > math.MaxUint8 {
		return nil, fmt.Errorf("too many dimensions: %d", len(t.Shape))
	}
	if len(t.Layout) != len(t.Shape) {
		return nil, fmt.Errorf("layout %q does not match rank %d", t.Layout, len(t.Shape))
	}
	code := t.DType.Char()
	if code == 0 {
		return nil, t.DType.Validate()
	}

	b = binary.LittleEndian.AppendUint16(b, uint16(len(t.Name)))
	b = append(b, t.Name...)
	b = append(b, uint8(len(t.Shape)))
	for _, d := range t.Shape {
		if d < 0 || uint64(d) > math.MaxUint32 {
			return nil, fmt.Errorf("dimension %d out of range", d)
		}
		b = binary.LittleEndian.AppendUint32(b, uint32(d))
	}
	b = append(b, t.Layout...)
	b = append(b, code)
	b = binary.LittleEndian.AppendUint64(b, uint64(t.Block.Offset))

	if major == VersionCompressed {
		b = append(b, uint8(t.Codec))
		b = binary.LittleEndian.AppendUint64(b, uint64(t.Block.Length))
		b = binary.LittleEndian.AppendUint64(b, t.Checksum)
	}
	return b, nil
}
