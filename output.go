// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denoiseconv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrOutput is wrapped by errors writing output files.
var ErrOutput = errors.New("output error")

type outputFile struct {
	name string
	data []byte
}

// writeOutputs writes every file to a temporary name in dir first, then
// renames them in place. On error, no file is left in dir.
func writeOutputs(dir string, files []outputFile) (_ []string, err error) {
	temps := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, t := range temps {
				_ = os.Remove(t)
			}
		}
	}()
	for _, f := range files {
		tmp, err := writeTemp(dir, f)
		if err != nil {
			return nil, err
		}
		temps = append(temps, tmp)
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		dst := filepath.Join(dir, f.name)
		if err = os.Rename(temps[i], dst); err != nil {
			for _, p := range paths {
				_ = os.Remove(p)
			}
			return nil, fmt.Errorf("%w: failed to move %s in place: %w", ErrOutput, f.name, err)
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func writeTemp(dir string, f outputFile) (_ string, err error) {
	tmp, err := os.CreateTemp(dir, "."+f.name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create %s: %w", ErrOutput, f.name, err)
	}
	defer func() {
		if cerr := tmp.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: failed to close %s: %w", ErrOutput, f.name, cerr)
		}
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(f.data); err != nil {
		return "", fmt.Errorf("%w: failed to write %s: %w", ErrOutput, f.name, err)
	}
	return tmp.Name(), nil
}
