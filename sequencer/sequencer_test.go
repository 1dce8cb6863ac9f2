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

package sequencer

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInOrderPushAndRead(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(0, []byte("abc")))
	assert.Equal(t, []byte("abc"), s.Read())
	assert.Nil(t, s.Read())
}

func TestOutOfOrderPushReassembles(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(3, []byte("def")))
	require.NoError(t, s.Push(0, []byte("abc")))
	assert.Equal(t, []byte("abc"), s.Read())
	assert.Equal(t, []byte("def"), s.Read())
	assert.Nil(t, s.Read())
}

func TestOverlapIsRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(0, []byte("abcdef")))
	err := s.Push(3, []byte("xyz"))
	require.Error(t, err)
}

func TestOverlapWithConsumedIsRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(0, []byte("abc")))
	s.Read()
	err := s.Push(1, []byte("b"))
	require.Error(t, err)
}

func TestDuplicateOffsetIsRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(5, []byte("abc")))
	err := s.Push(5, []byte("abc"))
	require.Error(t, err)
}

func TestHasOffset(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(10, []byte("x")))
	assert.True(t, s.HasOffset(10))
	assert.False(t, s.HasOffset(11))

	s.Push(0, []byte(string(make([]byte, 10))))
	s.Read()
	assert.True(t, s.HasOffset(3))
}

func TestFinalOffsetAndIsFIN(t *testing.T) {
	s := New()
	s.SetFinalOffset(3)
	require.NoError(t, s.Push(0, []byte("abc")))
	assert.False(t, s.IsFIN())
	s.Read()
	assert.True(t, s.IsFIN())
}

func TestReset(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(0, []byte("abc")))
	s.SetFinalOffset(3)
	s.Reset()
	assert.Equal(t, uint64(0), s.ConsumedOffset())
	assert.False(t, s.IsFIN())
	assert.Equal(t, 0, s.ByteLen())
	assert.False(t, s.HasOffset(0))
}

// Sequencer correctness: any permutation of a set of non-overlapping
// frames covering [0, N) plus a FIN at N yields the original byte
// stream in order, and IsFIN becomes true exactly once it's all read.
func TestSequencerCorrectnessUnderPermutation(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog, twice.")
	chunkSize := 5

	type chunk struct {
		offset uint64
		data   []byte
	}
	var chunks []chunk
	for off := 0; off < len(want); off += chunkSize {
		end := off + chunkSize
		if end > len(want) {
			end = len(want)
		}
		chunks = append(chunks, chunk{offset: uint64(off), data: want[off:end]})
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		order := rng.Perm(len(chunks))
		s := New()
		s.SetFinalOffset(uint64(len(want)))
		for _, idx := range order {
			c := chunks[idx]
			require.NoError(t, s.Push(c.offset, c.data))
		}
		var got bytes.Buffer
		for {
			b := s.Read()
			if b == nil {
				break
			}
			got.Write(b)
		}
		assert.Equal(t, want, got.Bytes())
		assert.True(t, s.IsFIN())
	}
}
