// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/nlpodyssey/denoiseconv/arch"
	"github.com/nlpodyssey/denoiseconv/model"
	"github.com/nlpodyssey/denoiseconv/tza"
	"github.com/nlpodyssey/denoiseconv/tza/header"
	"github.com/urfave/cli/v3"
)

func inspectCmd() *cli.Command {
	var showTensors bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the table of contents of an archive and check it against the topology",
		ArgsUsage: "<archive>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tensors", Usage: "list every tensor", Destination: &showTensors},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return cli.Exit("error: expected exactly one archive", 2)
			}
			path := c.Args().First()

			f, err := os.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = f.Close() }()
			fi, err := f.Stat()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			h, err := tza.ReadTOC(f, fi.Size())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %s: %v", path, err), 1)
			}

			problems := inspect(os.Stdout, path, h, showTensors)
			if problems > 0 {
				return cli.Exit(fmt.Sprintf("error: %d problems found", problems), 1)
			}
			return nil
		},
	}
}

// inspect prints a report on h and returns the number of problems that
// would make a conversion fail.
func inspect(w io.Writer, path string, h header.Header, showTensors bool) int {
	fmt.Fprintf(w, "Archive: %s\n", path)
	fmt.Fprintf(w, "Version: %d.%d\n", h.Major, h.Minor)
	fmt.Fprintf(w, "Tensors: %d\n", len(h.Names))

	if showTensors {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDTYPE\tSHAPE\tLAYOUT\tCODEC\tSTORED")
		for _, name := range h.Names {
			t := h.Tensors[name]
			fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%d\n", t.Name, t.DType, t.Shape, t.Layout, t.Codec, t.Block.Length)
		}
		_ = tw.Flush()
	}

	src := tocSource(h)
	params, err := arch.Infer(src)
	if err != nil {
		fmt.Fprintf(w, "Architecture: %v\n", err)
		return 1
	}
	fmt.Fprintf(w, "Architecture: in_channels=%d out_channels=%d\n", params.InChannels, params.OutChannels)

	kernel := 3
	if s := h.Tensors[arch.Designations[0].Key].Shape; len(s) == 4 {
		kernel = s[2]
	}
	problems := 0
	for _, req := range model.RequiredTensors(params, kernel) {
		t, ok := h.Tensors[req.Key]
		switch {
		case !ok:
			fmt.Fprintf(w, "missing: %s %v\n", req.Key, req.Shape)
			problems++
		case !t.Shape.Equal(req.Shape):
			fmt.Fprintf(w, "shape: %s is %v, want %v\n", req.Key, t.Shape, req.Shape)
			problems++
		case t.Layout != req.Layout:
			fmt.Fprintf(w, "layout: %s is %q, want %q\n", req.Key, t.Layout, req.Layout)
			problems++
		}
	}
	if problems == 0 {
		fmt.Fprintln(w, "Topology: ok")
	}
	return problems
}

// tocSource serves records without data from a table of contents, which
// is all architecture inference needs.
type tocSource header.Header

func (s tocSource) Get(name string) (tza.Record, error) {
	t, ok := s.Tensors[name]
	if !ok {
		return tza.Record{}, fmt.Errorf("%w: %q", tza.ErrKeyNotFound, name)
	}
	return tza.Record{Name: t.Name, DType: t.DType, Shape: t.Shape, Layout: t.Layout}, nil
}
