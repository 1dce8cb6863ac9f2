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
)

func TestUFloat16SmallValuesAreVerbatim(t *testing.T) {
	for v := uint64(0); v < 1<<12; v += 37 {
		raw := WriteUFloat16(v)
		assert.Equal(t, v, uint64(raw))
		assert.Equal(t, v, ReadUFloat16(raw))
	}
}

func TestUFloat16RoundTripsAboveTwelveBits(t *testing.T) {
	// Above 2^12 the low (exponent) bits of v are truncated by the
	// mantissa's fixed width, so the round trip recovers v with its low
	// bits masked to zero rather than the exact input.
	for _, v := range []uint64{1 << 12, 1 << 20, 1 << 32} {
		raw := WriteUFloat16(v)
		got := ReadUFloat16(raw)
		mask := ^uint64(0)
		for exp := 0; (uint64(1) << (12 + exp)) <= v; exp++ {
			mask <<= 1
		}
		assert.Equal(t, v&mask, got, "v=%#x", v)
	}
}

func TestUFloat16ClampsAtMax(t *testing.T) {
	assert.Equal(t, UFloat16(0xFFFF), WriteUFloat16(Float16MaxValue))
	assert.Equal(t, UFloat16(0xFFFF), WriteUFloat16(Float16MaxValue+1))
	assert.Equal(t, UFloat16(0xFFFF), WriteUFloat16(1<<63))
}

func TestUFloat16MaxDecodesToFloat16MaxValue(t *testing.T) {
	assert.Equal(t, Float16MaxValue, ReadUFloat16(0xFFFF))
}

func TestUFloat16WorkedExample(t *testing.T) {
	// 4096 = 2^12: exponent 1, mantissa 2048 (0x800), raw = (1+1)<<11 | 0 = 0x1000.
	raw := WriteUFloat16(4096)
	assert.Equal(t, UFloat16(0x1000), raw)
	assert.Equal(t, uint64(4096), ReadUFloat16(raw))
}
