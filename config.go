// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denoiseconv

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/nlpodyssey/denoiseconv/flatmodel"
	"github.com/nlpodyssey/denoiseconv/golden"
	"github.com/nlpodyssey/denoiseconv/nn"
)

// Config controls a Converter.
type Config struct {
	// OutputDir receives the model and fixture files. It must exist.
	OutputDir string
	// Workers limits the number of archives converted concurrently.
	// Zero or negative values select runtime.GOMAXPROCS.
	Workers int
	// Extent is the spatial size of golden inputs. Zero selects
	// golden.DefaultExtent.
	Extent int
	// Seed initializes golden input generation.
	Seed uint64
	// MaxSize limits the size of serialized models. Zero selects
	// flatmodel.DefaultMaxSize.
	MaxSize int64
	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a Config writing to the current directory.
func DefaultConfig() Config {
	return Config{
		OutputDir: ".",
		Workers:   runtime.GOMAXPROCS(0),
		Extent:    golden.DefaultExtent,
		MaxSize:   flatmodel.DefaultMaxSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.Extent == 0 {
		c.Extent = golden.DefaultExtent
	}
	if c.MaxSize <= 0 {
		c.MaxSize = flatmodel.DefaultMaxSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Validate reports configuration values that can never work.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is not set")
	}
	if c.Extent < 0 || c.Extent%nn.SpatialMultiple != 0 {
		return fmt.Errorf("extent %d is not a positive multiple of %d", c.Extent, nn.SpatialMultiple)
	}
	if c.MaxSize > flatmodel.DefaultMaxSize {
		return fmt.Errorf("max size %d exceeds the limit of %d", c.MaxSize, int64(flatmodel.DefaultMaxSize))
	}
	return nil
}
