// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tza

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// minDecoderMemory keeps the decoder window above the zstd minimum.
const minDecoderMemory = 1 << 20

// newDecoder returns a single-threaded zstd decoder refusing to produce
// more than maxSize bytes (at least minDecoderMemory) from a single block.
func newDecoder(maxSize int) (*zstd.Decoder, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(uint64(max(maxSize, minDecoderMemory))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec, nil
}

func newEncoder(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(level),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}
