// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denoiseconv

import (
	"errors"
	"fmt"
)

// State is the progress of the conversion of one archive.
type State uint8

const (
	// Unopened is the initial state.
	Unopened State = iota
	// Read means the archive was decoded.
	Read
	// Inferred means the network parameters were inferred.
	Inferred
	// Built means every weight was bound to the topology.
	Built
	// Serialized means the model buffer was produced and verified.
	Serialized
	// Validated means golden vectors were computed.
	Validated
	// Done means every output file was written.
	Done
	// Failed is the terminal state of a conversion that stopped on error.
	Failed
)

var stateNames = [...]string{
	Unopened:   "unopened",
	Read:       "read",
	Inferred:   "inferred",
	Built:      "built",
	Serialized: "serialized",
	Validated:  "validated",
	Done:       "done",
	Failed:     "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// FileError reports the failure of the conversion of one archive.
type FileError struct {
	Path string
	// State is the last state reached before the failure.
	State State
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: failed after state %s: %v", e.Path, e.State, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrDuplicateOutput is returned for archives whose outputs would
// overwrite the ones of a previous archive of the same batch.
var ErrDuplicateOutput = errors.New("duplicate output name")
