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
	"encoding/binary"
	"fmt"
	"sort"
)

// TagKey is a four-byte ASCII tag name (e.g. "RNON", "RSEQ", "CADR"),
// packed big-endian into a uint32 so tag maps can be sorted and compared
// numerically as the wire format requires.
type TagKey uint32

// NewTagKey packs a 4-character ASCII tag name into a TagKey.
func NewTagKey(name string) TagKey {
	if len(name) != 4 {
		panic(fmt.Sprintf("wire: tag name %q is not 4 characters", name))
	}
	return TagKey(binary.BigEndian.Uint32([]byte(name)))
}

// String renders the TagKey back to its 4-character ASCII form.
func (k TagKey) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k))
	return string(b)
}

// Well-known tags used by Public Reset and version negotiation.
var (
	TagPRST = NewTagKey("PRST")
	TagRNON = NewTagKey("RNON")
	TagRSEQ = NewTagKey("RSEQ")
	TagCADR = NewTagKey("CADR")
)

const tagHeaderSize = 8 // tag(4) + count(2 LE) + 2 pad

// QuicTag is gQUIC's tag-map serialization: a four-byte message tag plus
// an ordered mapping from four-byte tag keys to opaque byte values.
type QuicTag struct {
	Name    TagKey
	Entries map[TagKey][]byte
}

// NewQuicTag creates an empty QuicTag named name.
func NewQuicTag(name TagKey) *QuicTag {
	return &QuicTag{Name: name, Entries: make(map[TagKey][]byte)}
}

// Get returns an entry's value and whether it was present.
func (t *QuicTag) Get(key TagKey) ([]byte, bool) {
	v, ok := t.Entries[key]
	return v, ok
}

// Set stores an entry value under key.
func (t *QuicTag) Set(key TagKey, value []byte) {
	if t.Entries == nil {
		t.Entries = make(map[TagKey][]byte)
	}
	t.Entries[key] = value
}

// sortedKeys returns the tag's keys in ascending numeric order, as the
// wire format requires.
func (t *QuicTag) sortedKeys() []TagKey {
	keys := make([]TagKey, 0, len(t.Entries))
	for k := range t.Entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ByteLen returns the total encoded size of t.
func (t *QuicTag) ByteLen() int {
	n := tagHeaderSize
	for _, v := range t.Entries {
		n += 8 + len(v) // key(4) + end-offset(4) + eventual value bytes
	}
	return n
}

// EncodeTo writes: tag(4), count(2 LE)+2 pad, count*(key:4,
// cumulative-end-offset:4 LE), then the concatenated values.
func (t *QuicTag) EncodeTo(b *Buffer) {
	keys := t.sortedKeys()

	var nameBuf [4]byte
	binary.BigEndian.PutUint32(nameBuf[:], uint32(t.Name))
	b.Write(nameBuf[:])

	var countBuf [4]byte
	binary.LittleEndian.PutUint16(countBuf[:2], uint16(len(keys)))
	b.Write(countBuf[:])

	var end uint32
	for _, k := range keys {
		end += uint32(len(t.Entries[k]))
		var entry [8]byte
		binary.BigEndian.PutUint32(entry[0:4], uint32(k))
		binary.LittleEndian.PutUint32(entry[4:8], end)
		b.Write(entry[:])
	}
	for _, k := range keys {
		b.Write(t.Entries[k])
	}
}

// DecodeQuicTag reads a QuicTag. Keys must appear in ascending numeric
// order; a value's length is its cumulative end-offset minus the
// previous entry's end-offset.
func DecodeQuicTag(c *Cursor) (*QuicTag, error) {
	head, err := c.ReadN(tagHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("wire: decoding tag header: %w", err)
	}
	name := TagKey(binary.BigEndian.Uint32(head[0:4]))
	count := binary.LittleEndian.Uint16(head[4:6])

	type rawEntry struct {
		key TagKey
		end uint32
	}
	entries := make([]rawEntry, count)
	for i := range entries {
		raw, err := c.ReadN(8)
		if err != nil {
			return nil, fmt.Errorf("wire: decoding tag entry %d: %w", i, err)
		}
		entries[i] = rawEntry{
			key: TagKey(binary.BigEndian.Uint32(raw[0:4])),
			end: binary.LittleEndian.Uint32(raw[4:8]),
		}
		if i > 0 && entries[i].key <= entries[i-1].key {
			return nil, fmt.Errorf("wire: tag keys out of order: %s <= %s", entries[i].key, entries[i-1].key)
		}
	}

	tag := NewQuicTag(name)
	var prevEnd uint32
	for _, e := range entries {
		if e.end < prevEnd {
			return nil, fmt.Errorf("wire: tag entry %s has decreasing end offset", e.key)
		}
		length := e.end - prevEnd
		value, err := c.ReadN(int(length))
		if err != nil {
			return nil, fmt.Errorf("wire: decoding tag value %s: %w", e.key, err)
		}
		buf := make([]byte, length)
		copy(buf, value)
		tag.Entries[e.key] = buf
		prevEnd = e.end
	}
	return tag, nil
}
