// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package denoiseconv converts denoiser weight archives into serialized
// models for the inference runtime, together with golden vectors to
// check them against.
//
// Every archive goes through its own sequential pipeline:
//
//	Unopened → Read → Inferred → Built → Serialized → Validated → Done
//
// An error at any step moves the pipeline to Failed and aborts that archive
// only. Outputs are written once every step succeeded, so a failed archive
// leaves nothing behind.
package denoiseconv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/flatmodel"
	"github.com/nlpodyssey/denoiseconv/golden"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tza"
	"golang.org/x/sync/errgroup"
)

// Converter runs conversion pipelines. It holds no per-archive state and
// can be used concurrently.
type Converter struct {
	cfg Config
}

// NewConverter returns a Converter for a valid configuration whose output
// directory exists.
func NewConverter(cfg Config) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	fi, err := os.Stat(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrOutput, cfg.OutputDir)
	}
	return &Converter{cfg: cfg.withDefaults()}, nil
}

// Result is the outcome of the conversion of one archive.
type Result struct {
	Path  string
	State State
	// Outputs holds the paths of the model, the golden input and the
	// golden output, in this order. It is empty unless State is Done.
	Outputs []string
	// Err is a *FileError when State is Failed, nil otherwise.
	Err error
}

// BaseName returns the name outputs of the archive at path are derived
// from: its file name without extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ConvertFile converts the archive at path.
//
// The conversion does not start if ctx is already done; once started it
// runs to completion.
func (c *Converter) ConvertFile(ctx context.Context, path string) Result {
	log := c.cfg.Logger.With(slog.String("archive", path))
	r := Result{Path: path}
	if err := ctx.Err(); err != nil {
		return failed(r, err)
	}

	outputs, err := c.convert(path, &r.State, log)
	if err != nil {
		log.Error("conversion failed", slog.String("state", r.State.String()), slog.Any("error", err))
		return failed(r, err)
	}
	r.State = Done
	r.Outputs = outputs
	log.Info("conversion completed", slog.String("model", outputs[0]))
	return r
}

func failed(r Result, err error) Result {
	r.Err = &FileError{Path: r.Path, State: r.State, Err: err}
	r.State = Failed
	return r
}

func (c *Converter) convert(path string, state *State, log *slog.Logger) ([]string, error) {
	advance := func(s State, attrs ...any) {
		*state = s
		log.Debug("stage completed", append([]any{slog.String("state", s.String())}, attrs...)...)
	}

	ar, err := tza.Open(path)
	if err != nil {
		return nil, err
	}
	major, minor := ar.Version()
	advance(Read, slog.Int("tensors", ar.Len()), slog.String("version", fmt.Sprintf("%d.%d", major, minor)))

	params, err := arch.Infer(ar)
	if err != nil {
		return nil, fmt.Errorf("failed to infer architecture: %w", err)
	}
	advance(Inferred, slog.Int("in_channels", params.InChannels), slog.Int("out_channels", params.OutChannels))

	base := BaseName(path)
	inst, err := model.Build(base, params, ar)
	if err != nil {
		return nil, fmt.Errorf("failed to build model: %w", err)
	}
	advance(Built, slog.Int("stages", len(inst.Stages)))

	buf, err := flatmodel.Serialize(inst, flatmodel.Options{MaxSize: c.cfg.MaxSize})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize model: %w", err)
	}
	if err = flatmodel.Verify(buf); err != nil {
		return nil, fmt.Errorf("serialized model failed verification: %w", err)
	}
	advance(Serialized, slog.Int("bytes", len(buf)))

	vectors, err := golden.Generate(inst, golden.Options{Extent: c.cfg.Extent, Seed: c.cfg.Seed})
	if err != nil {
		return nil, fmt.Errorf("failed to generate golden vectors: %w", err)
	}
	var in, out bytes.Buffer
	if err = golden.WriteNPY(&in, vectors.Input); err != nil {
		return nil, fmt.Errorf("failed to encode golden input: %w", err)
	}
	if err = golden.WriteNPY(&out, vectors.Output); err != nil {
		return nil, fmt.Errorf("failed to encode golden output: %w", err)
	}
	advance(Validated, slog.Int("extent", vectors.Input.Shape[2]))

	inName, outName := golden.FileNames(base)
	return writeOutputs(c.cfg.OutputDir, []outputFile{
		{name: base + flatmodel.FileExtension, data: buf},
		{name: inName, data: in.Bytes()},
		{name: outName, data: out.Bytes()},
	})
}

// ConvertAll converts every archive, at most Config.Workers at a time.
//
// A failing archive does not affect the others. Results are returned in
// the order of paths. Once ctx is done, archives not yet started fail
// with the context error. An archive whose base name repeats an earlier
// one fails with ErrDuplicateOutput.
func (c *Converter) ConvertAll(ctx context.Context, paths []string) []Result {
	results := make([]Result, len(paths))
	seen := make(map[string]string, len(paths))

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, path := range paths {
		base := BaseName(path)
		if prev, ok := seen[base]; ok {
			results[i] = failed(Result{Path: path}, fmt.Errorf("%w: %q is also produced by %s", ErrDuplicateOutput, base, prev))
			continue
		}
		seen[base] = path

		if err := ctx.Err(); err != nil {
			results[i] = failed(Result{Path: path}, err)
			continue
		}
		g.Go(func() error {
			results[i] = c.ConvertFile(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Errors joins the errors of failed results, or returns nil if every
// conversion succeeded.
func Errors(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
