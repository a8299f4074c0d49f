// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"sort"
)

// Validate checks whether the content of a Header is consistent with an
// archive of the given total size, returning an error if a problem is
// encountered, otherwise nil.
//
// The Header is checked against the following rules:
//
//   - TableOffset lies after the preamble and before the end of the archive
//   - each key in Tensors TensorMap must match the mapped Tensor.Name, and
//     Names lists exactly the keys of Tensors
//   - each Tensor has a valid data type and codec (version 2 only allows
//     CodecNone)
//   - each Tensor's Layout has one character per dimension
//   - each Tensor's Shape must not contain negative values
//   - each Block lies between the preamble and the table
//   - Blocks of any pair of tensors must not overlap
//
// Sizes of decoded data are not checked here: they can only be verified
// after decompression.
func (h Header) Validate(size int64) error {
	if h.TableOffset < PreambleSize || h.TableOffset >= size {
		return fmt.Errorf("table offset %d out of range [%d, %d)", h.TableOffset, PreambleSize, size)
	}
	if err := validateNames(h); err != nil {
		return err
	}

	ts := h.Tensors.TensorSlice()
	sort.Sort(TensorSliceByBlock{ts})

	prevEnd := int64(PreambleSize)
	prevName := ""
	for _, t := range ts {
		if err := validateTensor(t, h.Major, h.TableOffset); err != nil {
			return fmt.Errorf("invalid tensor %q: %w", t.Name, err)
		}
		if t.Block.Offset < prevEnd {
			return fmt.Errorf("blocks of tensors %q and %q overlap", prevName, t.Name)
		}
		if t.Block.Length > 0 {
			prevEnd, prevName = t.Block.End(), t.Name
		}
	}
	return nil
}

func validateNames(h Header) error {
	for k, t := range h.Tensors {
		if k != t.Name {
			return fmt.Errorf("tensor names mismatch: TensorMap key %q, Tensor.Name %q", k, t.Name)
		}
	}
	if len(h.Names) != len(h.Tensors) {
		return fmt.Errorf("names list has %d entries, expected %d", len(h.Names), len(h.Tensors))
	}
	for _, name := range h.Names {
		if _, ok := h.Tensors[name]; !ok {
			return fmt.Errorf("names list refers to unknown tensor %q", name)
		}
	}
	return nil
}

func validateTensor(t Tensor, major uint8, tableOffset int64) error {
	if err := t.DType.Validate(); err != nil {
		return err
	}
	if err := t.Codec.Validate(); err != nil {
		return err
	}
	if major == VersionPlain && t.Codec != CodecNone {
		return fmt.Errorf("codec %s is not allowed in version %d", t.Codec, major)
	}
	if len(t.Layout) != len(t.Shape) {
		return fmt.Errorf("layout %q does not match rank %d", t.Layout, len(t.Shape))
	}
	if _, err := t.Shape.CheckedNumElements(); err != nil {
		return err
	}
	if t.Block.Offset < PreambleSize || t.Block.Length < 0 {
		return fmt.Errorf("invalid block [%d, +%d)", t.Block.Offset, t.Block.Length)
	}
	if t.Block.End() > tableOffset {
		return fmt.Errorf("block [%d, %d) extends beyond table offset %d", t.Block.Offset, t.Block.End(), tableOffset)
	}
	return nil
}
