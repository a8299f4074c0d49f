// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/nlpodyssey/denoiseconv/dtype"
	"github.com/nlpodyssey/denoiseconv/tensor"
	"github.com/nlpodyssey/denoiseconv/tza"
	"github.com/nlpodyssey/denoiseconv/tza/header"
	"github.com/urfave/cli/v3"
)

func compressCmd() *cli.Command {
	var (
		output string
		level  string
		plain  bool
		dt     string
	)

	return &cli.Command{
		Name:      "compress",
		Usage:     "Rewrite an archive with zstd-compressed, checksummed blocks",
		ArgsUsage: "<archive>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "path of the rewritten archive",
				Destination: &output,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "level",
				Usage:       "zstd level: fastest, default, better or best",
				Value:       "default",
				Destination: &level,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "write uncompressed version 2 blocks instead",
				Destination: &plain,
			},
			&cli.StringFlag{
				Name:        "dtype",
				Usage:       "re-encode every tensor as F16 or F32",
				Destination: &dt,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return cli.Exit("error: expected exactly one archive", 2)
			}
			opts, err := writeOptions(level, plain)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			target, err := parseDType(dt)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 2)
			}
			if err = rewrite(c.Args().First(), output, opts, target); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log := newLogger(c).With("path", output, "version", opts.Version, "codec", opts.Codec.String())
			if target != 0 {
				log = log.With("dtype", target)
			}
			log.Info("archive written")
			return nil
		},
	}
}

func writeOptions(level string, plain bool) (tza.WriteOptions, error) {
	if plain {
		return tza.WriteOptions{Version: header.VersionPlain, Codec: header.CodecNone}, nil
	}
	ok, lvl := zstd.EncoderLevelFromString(level)
	if !ok {
		return tza.WriteOptions{}, fmt.Errorf("unknown zstd level %q", level)
	}
	return tza.WriteOptions{Version: header.VersionCompressed, Codec: header.CodecZstd, Level: lvl}, nil
}

// parseDType parses the value of the dtype flag. An empty value yields 0,
// which keeps the stored data types.
func parseDType(s string) (dtype.DType, error) {
	var dt dtype.DType
	if s == "" {
		return dt, nil
	}
	if err := dt.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, err
	}
	return dt, nil
}

// rewrite decodes the archive at src and writes its records to dst,
// converted to dt unless dt is 0.
func rewrite(src, dst string, opts tza.WriteOptions, dt dtype.DType) (err error) {
	ar, err := tza.Open(src)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	records := make([]tza.Record, 0, ar.Len())
	for _, name := range ar.Names() {
		r, err := ar.Get(name)
		if err != nil {
			return err
		}
		if dt != 0 && r.DType != dt {
			if r, err = convertRecord(r, dt); err != nil {
				return err
			}
		}
		records = append(records, r)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()
	return tza.Serialize(f, records, opts)
}

func convertRecord(r tza.Record, dt dtype.DType) (tza.Record, error) {
	values, err := tensor.DecodeFloat32(r.DType, r.Data)
	if err != nil {
		return tza.Record{}, fmt.Errorf("tensor %q: %w", r.Name, err)
	}
	r.Data = tensor.EncodeFloat32(dt, values)
	r.DType = dt
	return r, nil
}
