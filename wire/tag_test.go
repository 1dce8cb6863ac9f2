/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagKeyStringRoundTrip(t *testing.T) {
	assert.Equal(t, "PRST", TagPRST.String())
	assert.Equal(t, "RNON", TagRNON.String())
	assert.Equal(t, TagRNON, NewTagKey("RNON"))
}

func TestQuicTagRoundTrip(t *testing.T) {
	tag := NewQuicTag(TagPRST)
	tag.Set(TagRNON, []byte{0x89, 0x67, 0x45, 0x23, 0x01, 0xEF, 0xCD, 0xAB})
	tag.Set(TagCADR, []byte{0x01, 0x02, 0x03})

	b := NewBuffer(make([]byte, 0, tag.ByteLen()))
	tag.EncodeTo(b)
	assert.Equal(t, tag.ByteLen(), b.Len())

	got, err := DecodeQuicTag(NewCursor(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, tag.Name, got.Name)
	assert.Equal(t, tag.Entries, got.Entries)
}

func TestQuicTagEmptyEntries(t *testing.T) {
	tag := NewQuicTag(TagPRST)
	tag.Set(TagRNON, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	b := NewBuffer(make([]byte, 0, tag.ByteLen()))
	tag.EncodeTo(b)
	got, err := DecodeQuicTag(NewCursor(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, len(got.Entries))
	v, ok := got.Get(TagRNON)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, v)
}

func TestDecodeQuicTagRejectsOutOfOrderKeys(t *testing.T) {
	// Build two entries manually with keys in descending order - CADR (C)
	// sorts before RNON (R) lexically-as-bytes, so swapping produces an
	// invalid ascending-key violation.
	tag := NewQuicTag(TagPRST)
	tag.Set(TagRNON, []byte{1, 2})
	tag.Set(TagCADR, []byte{3, 4})
	b := NewBuffer(make([]byte, 0, tag.ByteLen()))

	// Encode by hand with keys swapped into descending order.
	b.Write([]byte(TagPRST.String()))
	var countBuf [4]byte
	countBuf[0] = 2
	b.Write(countBuf[:])
	var entry [8]byte
	entry[0], entry[1], entry[2], entry[3] = 'R', 'N', 'O', 'N'
	entry[4] = 2
	b.Write(entry[:])
	entry[0], entry[1], entry[2], entry[3] = 'C', 'A', 'D', 'R'
	entry[4] = 4
	b.Write(entry[:])
	b.Write([]byte{1, 2, 3, 4})

	_, err := DecodeQuicTag(NewCursor(b.Bytes()))
	require.Error(t, err)
}

func TestDecodeQuicTagTruncated(t *testing.T) {
	_, err := DecodeQuicTag(NewCursor([]byte{1, 2, 3}))
	require.Error(t, err)
}
