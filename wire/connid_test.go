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

func TestConnectionIDRoundTrip(t *testing.T) {
	id, err := NewRandomConnectionID()
	require.NoError(t, err)

	b := NewBuffer(make([]byte, 0, ConnectionIDLen))
	id.EncodeTo(b)
	assert.Equal(t, ConnectionIDLen, b.Len())

	got, err := DecodeConnectionID(NewCursor(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestConnectionIDString(t *testing.T) {
	id := ConnectionID{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	assert.Equal(t, "0123456789abcdef", id.String())
}

func TestConnectionIDTwoRandomValuesDiffer(t *testing.T) {
	a, err := NewRandomConnectionID()
	require.NoError(t, err)
	b, err := NewRandomConnectionID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecodeConnectionIDTruncated(t *testing.T) {
	_, err := DecodeConnectionID(NewCursor([]byte{1, 2, 3}))
	require.Error(t, err)
}
