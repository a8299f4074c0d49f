// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

// Block describes the "[Offset, Offset+Length)" byte range where the
// stored (possibly compressed) data of a tensor lives. Offset is relative
// to the beginning of the whole archive.
type Block struct {
	Offset int64
	Length int64
}

// End is the upper bound byte index (excluded).
func (b Block) End() int64 {
	return b.Offset + b.Length
}

// Less reports whether Block "b" is ordered before Block "o".
func (b Block) Less(o Block) bool {
	return b.Offset < o.Offset || (b.Offset == o.Offset && b.Length < o.Length)
}
