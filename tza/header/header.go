// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package header reads, validates and encodes the preamble and the
// table of contents of TZA tensor archives.
//
// A TZA file is laid out as follows (all integers little-endian):
//
//	u16  magic 0x41D7
//	u8   major version
//	u8   minor version
//	u64  absolute offset of the table
//	...  tensor blocks
//	     table
//
// The table starts with the u32 number of records, followed by one entry
// per record:
//
//	u16 name length, name bytes
//	u8  number of dimensions, then one u32 per dimension
//	one layout byte per dimension (for example "oihw" or "x")
//	u8  data type code ('f' or 'h')
//	u64 absolute block offset
//
// Version 3 entries are followed by the u8 codec, the u64 stored block
// length and the u64 XXH3 hash of the stored block. A version 3 table ends
// with the u64 XXH3 hash of all the table bytes preceding it.
//
// The table must end exactly where the file ends.
package header

import "fmt"

// Format constants.
const (
	Magic uint16 = 0x41D7

	// VersionPlain stores uncompressed blocks without checksums.
	VersionPlain uint8 = 2
	// VersionCompressed stores optionally compressed, checksummed blocks.
	VersionCompressed uint8 = 3

	MinorVersion uint8 = 0

	// PreambleSize is the byte size of magic, versions and table offset.
	PreambleSize = 12
	// BlockAlignment is the alignment of blocks written by this package.
	BlockAlignment = 64
)

// Header provides the table of contents of a TZA archive.
type Header struct {
	Major uint8
	Minor uint8
	// TableOffset is the absolute position of the table.
	TableOffset int64
	// Tensors maps each record name to its table entry.
	Tensors TensorMap
	// Names lists record names in table order.
	Names []string
}

// Codec identifies how a tensor block is stored.
type Codec uint8

const (
	// CodecNone stores the raw tensor data.
	CodecNone Codec = iota
	// CodecZstd stores the tensor data compressed with Zstandard.
	CodecZstd
)

// Validate returns an error if the Codec is not valid, otherwise nil.
func (c Codec) Validate() error {
	if c > CodecZstd {
		return fmt.Errorf("invalid Codec(%d)", c)
	}
	return nil
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("invalid Codec(%d)", c)
	}
}
