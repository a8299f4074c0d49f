// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package denoiseconv

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/flatmodel"
	"github.com/nlpodyssey/denoiseconv/golden"
	"github.com/nlpodyssey/denoiseconv/internal/synth"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/nlpodyssey/denoiseconv/tza"
	"github.com/nlpodyssey/denoiseconv/tza/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, dir, name string, records []tza.Record) string {
	t.Helper()
	data, err := synth.Archive(records, tza.WriteOptions{Codec: header.CodecZstd})
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func records(in, out int) []tza.Record {
	return synth.Records(synth.Params(in, out), dtype.F16, 3, 1)
}

func newConverter(t *testing.T, outDir string, logger *slog.Logger) *Converter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = outDir
	cfg.Extent = 16
	cfg.Workers = 2
	cfg.Logger = logger
	c, err := NewConverter(cfg)
	require.NoError(t, err)
	return c
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestConvertFile(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	path := writeArchive(t, inDir, "rt_ldr.tza", records(9, 3))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newConverter(t, outDir, logger).ConvertFile(context.Background(), path)

	require.NoError(t, r.Err)
	assert.Equal(t, Done, r.State)
	assert.Equal(t, path, r.Path)
	assert.Equal(t, []string{
		filepath.Join(outDir, "rt_ldr.dnzr"),
		filepath.Join(outDir, "in_rt_ldr.npy"),
		filepath.Join(outDir, "out_rt_ldr.npy"),
	}, r.Outputs)
	assert.ElementsMatch(t, []string{"rt_ldr.dnzr", "in_rt_ldr.npy", "out_rt_ldr.npy"}, dirNames(t, outDir))

	buf, err := os.ReadFile(r.Outputs[0])
	require.NoError(t, err)
	s, err := flatmodel.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, "rt_ldr", s.Name)
	assert.Equal(t, 9, s.InChannels)
	assert.Equal(t, 3, s.OutChannels)
	assert.Len(t, s.Layers, model.NumStages)

	for i, want := range []tensor.Shape{{1, 16, 16, 9}, {1, 16, 16, 3}} {
		f, err := os.Open(r.Outputs[i+1])
		require.NoError(t, err)
		d, err := golden.ReadNPY(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)
		assert.Equal(t, want, d.Shape)
	}

	for _, s := range []string{"archive=" + path, "state=read", "state=inferred", "in_channels=9", "state=built", "state=serialized", "state=validated", "conversion completed"} {
		assert.Contains(t, logs.String(), s)
	}
}

func TestConvertFile_IsDeterministic(t *testing.T) {
	inDir := t.TempDir()
	path := writeArchive(t, inDir, "a.tza", records(3, 3))

	var outputs [2][]byte
	for i := range outputs {
		outDir := t.TempDir()
		r := newConverter(t, outDir, nil).ConvertFile(context.Background(), path)
		require.NoError(t, r.Err)
		var err error
		outputs[i], err = os.ReadFile(r.Outputs[2])
		require.NoError(t, err)
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestConvertFile_Failure(t *testing.T) {
	inDir := t.TempDir()

	corrupt := filepath.Join(inDir, "corrupt.tza")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an archive at all"), 0o644))

	badShape := records(3, 3)
	for i, r := range badShape {
		if r.Name == "dec_conv2a.weight" {
			r.Shape = tensor.Shape{64, 95, 3, 3}
			r.Data = make([]byte, 64*95*9*2)
			badShape[i] = r
		}
	}

	testCases := []struct {
		name    string
		path    string
		state   State
		wantErr error
		substr  string
	}{
		{"missing file", filepath.Join(inDir, "missing.tza"), Unopened, tza.ErrIO, "missing.tza"},
		{"corrupt archive", corrupt, Unopened, tza.ErrCorrupt, ""},
		{"missing designated key", writeArchive(t, inDir, "nokey.tza", synth.Without(records(9, 3), "enc_conv0.weight")), Read, arch.ErrMissingKey, `"enc_conv0.weight"`},
		{"missing bias", writeArchive(t, inDir, "nobias.tza", synth.Without(records(9, 3), "dec_conv1b.bias")), Inferred, arch.ErrMissingKey, `"dec_conv1b.bias"`},
		{"incompatible shape", writeArchive(t, inDir, "shape.tza", badShape), Inferred, model.ErrIncompatibleShape, `"dec_conv2a.weight"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outDir := t.TempDir()
			r := newConverter(t, outDir, nil).ConvertFile(context.Background(), tc.path)

			assert.Equal(t, Failed, r.State)
			assert.Empty(t, r.Outputs)
			assert.ErrorIs(t, r.Err, tc.wantErr)
			assert.ErrorContains(t, r.Err, tc.substr)

			var fe *FileError
			require.ErrorAs(t, r.Err, &fe)
			assert.Equal(t, tc.path, fe.Path)
			assert.Equal(t, tc.state, fe.State)

			assert.Empty(t, dirNames(t, outDir))
		})
	}
}

func TestConvertFile_Overflow(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "big.tza", records(3, 3))
	outDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = outDir
	cfg.Extent = 16
	cfg.MaxSize = 4096
	c, err := NewConverter(cfg)
	require.NoError(t, err)

	r := c.ConvertFile(context.Background(), path)
	assert.ErrorIs(t, r.Err, flatmodel.ErrSerializationOverflow)
	var fe *FileError
	require.ErrorAs(t, r.Err, &fe)
	assert.Equal(t, Built, fe.State)
	assert.Empty(t, dirNames(t, outDir))
}

func TestConvertFile_Cancelled(t *testing.T) {
	path := writeArchive(t, t.TempDir(), "a.tza", records(3, 3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newConverter(t, t.TempDir(), nil).ConvertFile(ctx, path)
	assert.Equal(t, Failed, r.State)
	assert.ErrorIs(t, r.Err, context.Canceled)
}

func TestConvertAll(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	paths := []string{
		writeArchive(t, inDir, "first.tza", records(3, 3)),
		writeArchive(t, inDir, "broken.tza", synth.Without(records(3, 3), "enc_conv0.weight")),
		writeArchive(t, inDir, "second.tza", records(9, 3)),
		writeArchive(t, inDir, "third.tza", records(6, 6)),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(inDir, "other"), 0o755))
	paths = append(paths, writeArchive(t, filepath.Join(inDir, "other"), "first.tza", records(3, 3)))

	results := newConverter(t, outDir, nil).ConvertAll(context.Background(), paths)
	require.Len(t, results, len(paths))
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}

	assert.Equal(t, Done, results[0].State)
	assert.Equal(t, Failed, results[1].State)
	assert.ErrorIs(t, results[1].Err, arch.ErrMissingKey)
	assert.Equal(t, Done, results[2].State)
	assert.Equal(t, Done, results[3].State)
	assert.Equal(t, Failed, results[4].State)
	assert.ErrorIs(t, results[4].Err, ErrDuplicateOutput)

	assert.ElementsMatch(t, []string{
		"first.dnzr", "in_first.npy", "out_first.npy",
		"second.dnzr", "in_second.npy", "out_second.npy",
		"third.dnzr", "in_third.npy", "out_third.npy",
	}, dirNames(t, outDir))

	err := Errors(results)
	assert.ErrorIs(t, err, arch.ErrMissingKey)
	assert.ErrorIs(t, err, ErrDuplicateOutput)
	assert.NoError(t, Errors(results[2:4]))
}

func TestConvertAll_Cancelled(t *testing.T) {
	inDir := t.TempDir()
	paths := []string{
		writeArchive(t, inDir, "a.tza", records(3, 3)),
		writeArchive(t, inDir, "b.tza", records(3, 3)),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outDir := t.TempDir()
	for _, r := range newConverter(t, outDir, nil).ConvertAll(ctx, paths) {
		assert.Equal(t, Failed, r.State)
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
	assert.Empty(t, dirNames(t, outDir))
}

func TestNewConverter_Failure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	testCases := []struct {
		name   string
		modify func(*Config)
		substr string
	}{
		{"no output dir", func(c *Config) { c.OutputDir = "" }, "output directory is not set"},
		{"missing output dir", func(c *Config) { c.OutputDir = filepath.Join(file, "sub") }, "output error"},
		{"output is a file", func(c *Config) { c.OutputDir = file }, "is not a directory"},
		{"extent", func(c *Config) { c.Extent = 20 }, "extent 20 is not a positive multiple of 16"},
		{"max size", func(c *Config) { c.MaxSize = 1 << 40 }, "exceeds the limit"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.OutputDir = t.TempDir()
			tc.modify(&cfg)
			c, err := NewConverter(cfg)
			assert.Nil(t, c)
			assert.ErrorContains(t, err, tc.substr)
		})
	}
}

func TestWriteOutputs_Failure(t *testing.T) {
	dir := t.TempDir()
	// A directory in place of the second output makes its rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b", "x"), nil, 0o644))

	paths, err := writeOutputs(dir, []outputFile{
		{name: "a", data: []byte("a")},
		{name: "b", data: []byte("b")},
	})
	assert.Nil(t, paths)
	assert.ErrorIs(t, err, ErrOutput)
	assert.Equal(t, []string{"b"}, dirNames(t, dir))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "rt_hdr", BaseName("/weights/rt_hdr.tza"))
	assert.Equal(t, "rt.hdr", BaseName("rt.hdr.tza"))
	assert.Equal(t, "plain", BaseName("plain"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unopened", Unopened.String())
	assert.Equal(t, "validated", Validated.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestFileError(t *testing.T) {
	err := &FileError{Path: "x.tza", State: Built, Err: flatmodel.ErrSerializationOverflow}
	assert.EqualError(t, err, "x.tza: failed after state built: flatmodel: serialization overflow")
	assert.ErrorIs(t, err, flatmodel.ErrSerializationOverflow)
}
