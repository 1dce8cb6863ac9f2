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
	"github.com/facebook/gquic/quicerr"
)

// entry is one pending, not-yet-consumed STREAM frame payload.
type entry struct {
	offset uint64
	data   []byte
}

func (e entry) end() uint64 { return e.offset + uint64(len(e.data)) }

// noFinalOffset is the sentinel finalOffset holds until a FIN is observed.
const noFinalOffset = ^uint64(0)

// Sequencer reassembles a single stream's STREAM frames, arriving in
// arbitrary offset order, into the contiguous byte prefix the
// application is allowed to read.
type Sequencer struct {
	pending        []entry
	pendingOffsets map[uint64]struct{}
	consumedOffset uint64
	finalOffset    uint64
	byteLen        int
}

// New returns an empty sequencer.
func New() *Sequencer {
	return &Sequencer{
		pendingOffsets: make(map[uint64]struct{}),
		finalOffset:    noFinalOffset,
	}
}

// Push inserts a frame's payload at offset, insertion-sorted into the
// pending list. It returns QUIC_OVERLAPPING_STREAM_DATA if the range
// [offset, offset+len(data)) overlaps anything already buffered or
// already consumed.
func (s *Sequencer) Push(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := offset + uint64(len(data))
	if offset < s.consumedOffset {
		return quicerr.New(quicerr.OverlappingStreamData, "frame offset precedes consumed offset")
	}
	if _, dup := s.pendingOffsets[offset]; dup {
		return quicerr.New(quicerr.OverlappingStreamData, "duplicate frame offset")
	}

	i := 0
	for ; i < len(s.pending); i++ {
		if s.pending[i].offset >= end {
			break
		}
	}
	// i is the first entry whose offset is >= end: check it and its
	// predecessor for overlap with [offset, end).
	if i < len(s.pending) && s.pending[i].offset < end {
		return quicerr.New(quicerr.OverlappingStreamData, "frame overlaps a pending frame")
	}
	if i > 0 && s.pending[i-1].end() > offset {
		return quicerr.New(quicerr.OverlappingStreamData, "frame overlaps a pending frame")
	}

	s.pending = append(s.pending, entry{})
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = entry{offset: offset, data: data}
	s.pendingOffsets[offset] = struct{}{}
	s.byteLen += len(data)
	return nil
}

// HasOffset reports whether offset has already been consumed or is
// already buffered, the duplicate-frame check a caller runs before Push.
func (s *Sequencer) HasOffset(offset uint64) bool {
	if offset < s.consumedOffset {
		return true
	}
	_, ok := s.pendingOffsets[offset]
	return ok
}

// Read pops the head entry if it is contiguous with consumedOffset and
// returns its bytes, advancing consumedOffset by its length. It returns
// nil if the next byte in sequence hasn't arrived yet.
func (s *Sequencer) Read() []byte {
	if len(s.pending) == 0 {
		return nil
	}
	head := s.pending[0]
	if head.offset != s.consumedOffset {
		return nil
	}
	s.pending = s.pending[1:]
	delete(s.pendingOffsets, head.offset)
	s.consumedOffset += uint64(len(head.data))
	s.byteLen -= len(head.data)
	return head.data
}

// SetFinalOffset records the stream's final length, as conveyed by a FIN
// bit or an RST_STREAM frame.
func (s *Sequencer) SetFinalOffset(offset uint64) {
	s.finalOffset = offset
}

// IsFIN reports whether every byte up to the final offset has been consumed.
func (s *Sequencer) IsFIN() bool {
	return s.finalOffset != noFinalOffset && s.consumedOffset == s.finalOffset
}

// ConsumedOffset returns the next offset the reader expects.
func (s *Sequencer) ConsumedOffset() uint64 { return s.consumedOffset }

// ByteLen returns the total bytes currently buffered, pending in-order delivery.
func (s *Sequencer) ByteLen() int { return s.byteLen }

// Reset clears all buffered state and forgets any final offset;
// Stream.Destroy calls it when a stream is torn down.
func (s *Sequencer) Reset() {
	s.pending = s.pending[:0]
	for k := range s.pendingOffsets {
		delete(s.pendingOffsets, k)
	}
	s.consumedOffset = 0
	s.finalOffset = noFinalOffset
	s.byteLen = 0
}
