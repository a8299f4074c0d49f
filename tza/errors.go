// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tza

import "errors"

// Errors returned while reading archives. Every error returned by Open,
// Decode, ReadTOC and Archive.Get wraps exactly one of them.
var (
	// ErrIO reports a failure of the underlying file or reader.
	ErrIO = errors.New("tza: I/O error")
	// ErrCorrupt reports a malformed preamble, table or block, including
	// checksum mismatches.
	ErrCorrupt = errors.New("tza: corrupt archive")
	// ErrSizeMismatch reports a decoded block whose length differs from
	// the size declared by shape and data type.
	ErrSizeMismatch = errors.New("tza: decoded size mismatch")
	// ErrKeyNotFound reports a request for a record the archive does not
	// contain.
	ErrKeyNotFound = errors.New("tza: key not found")
)
