// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nlpodyssey/denoiseconv"
	"github.com/urfave/cli/v3"
)

const archiveExt = ".tza"

func convertCmd() *cli.Command {
	cfg := denoiseconv.DefaultConfig()

	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert archives into models and golden vectors",
		ArgsUsage: "<archive or directory>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Value:       cfg.OutputDir,
				Destination: &cfg.OutputDir,
				Sources:     cli.EnvVars("DENOISECONV_OUTPUT"),
			},
			&cli.IntFlag{
				Name:        "workers",
				Aliases:     []string{"j"},
				Usage:       "archives converted concurrently",
				Value:       cfg.Workers,
				Destination: &cfg.Workers,
				Sources:     cli.EnvVars("DENOISECONV_WORKERS"),
			},
			&cli.IntFlag{
				Name:        "extent",
				Usage:       "height and width of golden inputs",
				Value:       cfg.Extent,
				Destination: &cfg.Extent,
				Sources:     cli.EnvVars("DENOISECONV_EXTENT"),
			},
			&cli.Uint64Flag{
				Name:        "seed",
				Usage:       "seed of golden inputs",
				Destination: &cfg.Seed,
				Sources:     cli.EnvVars("DENOISECONV_SEED"),
			},
			&cli.Int64Flag{
				Name:        "max-size",
				Usage:       "maximum size of a serialized model in bytes",
				Value:       cfg.MaxSize,
				Destination: &cfg.MaxSize,
				Sources:     cli.EnvVars("DENOISECONV_MAX_SIZE"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() == 0 {
				return cli.Exit("error: no archive given", 2)
			}
			paths, err := collectArchives(c.Args().Slice())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			cfg.Logger = newLogger(c)
			conv, err := denoiseconv.NewConverter(cfg)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			results := conv.ConvertAll(ctx, paths)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			cfg.Logger.Info("conversion finished", "archives", len(results), "failed", failed)
			if err = denoiseconv.Errors(results); err != nil {
				return cli.Exit(fmt.Sprintf("error: %d of %d archives failed", failed, len(results)), 1)
			}
			return nil
		},
	}
}

// collectArchives expands directories into the archives they contain,
// sorted by name. Other arguments are kept as given.
func collectArchives(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		fi, err := os.Stat(arg)
		if err != nil || !fi.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), archiveExt) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no %s archive in %s", archiveExt, arg)
		}
		slices.Sort(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
