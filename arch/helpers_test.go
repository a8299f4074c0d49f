// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import (
	"bytes"
	"testing"

	"github.com/nlpodyssey/denoiseconv/tza"
	"github.com/stretchr/testify/require"
)

func mustArchive(t *testing.T, records []tza.Record) *tza.Archive {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tza.Serialize(&buf, records, tza.WriteOptions{}))
	a, err := tza.Decode(buf.Bytes())
	require.NoError(t, err)
	return a
}
