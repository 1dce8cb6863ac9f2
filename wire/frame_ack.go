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
)

// AckRange is an inclusive, closed [First, Last] run of acknowledged
// packet numbers.
type AckRange struct {
	First PacketNumber
	Last  PacketNumber
}

// AckTimestamp is one entry of an ACK frame's optional timestamp list.
// Its semantic interpretation (as a send-time estimate) is optional per
// the wire format; the decoder still consumes it exactly so later frames
// in the packet stay aligned.
type AckTimestamp struct {
	DeltaLargestAcked uint8
	Time              uint32 // microseconds; absolute for the first entry, delta for the rest
}

// AckFrame acknowledges received packets. First byte 01nullmmB: n marks
// whether ack ranges beyond the first follow, ll/mm select the
// largest-acked and missing-number-delta wire widths.
type AckFrame struct {
	LargestAcked PacketNumber
	DelayTime    UFloat16
	// Ranges lists acknowledged packet-number runs, largest-first,
	// strictly descending and non-overlapping.
	Ranges     []AckRange
	Timestamps []AckTimestamp
}

// LowestAcked returns the smallest acknowledged packet number, derived
// from the final (oldest) range.
func (f *AckFrame) LowestAcked() PacketNumber {
	if len(f.Ranges) == 0 {
		return f.LargestAcked
	}
	return f.Ranges[len(f.Ranges)-1].First
}

// HasMissingRanges reports whether the ACK covers more than one
// contiguous run, i.e. whether it must encode ack blocks.
func (f *AckFrame) HasMissingRanges() bool {
	return len(f.Ranges) > 1
}

func (f *AckFrame) Type() FrameType { return frameACKBase }

func (f *AckFrame) largestAckedWidth() int { return f.LargestAcked.ByteLen() }

func (f *AckFrame) missingWidth() int {
	width := 0
	for _, r := range f.Ranges {
		if w := (r.Last).ByteLen(); w > width {
			width = w
		}
	}
	if width == 0 {
		width = 1
	}
	return width
}

// encodedBlocks expands f.Ranges into the wire's gap-run representation:
// gaps of 256+ missing packets are split into zero-length synthetic
// blocks (block length 0) followed by a final block carrying the
// residual length.
func (f *AckFrame) encodedBlocks() []ackBlock {
	if len(f.Ranges) == 0 {
		return nil
	}
	blocks := make([]ackBlock, 0, len(f.Ranges))
	blocks = append(blocks, ackBlock{gap: 0, length: rangeLen(f.Ranges[0])})
	for i := 1; i < len(f.Ranges); i++ {
		prevFirst := f.Ranges[i-1].First
		cur := f.Ranges[i]
		gap := uint64(prevFirst) - uint64(cur.Last) - 1
		for gap >= 256 {
			blocks = append(blocks, ackBlock{gap: 255, length: 0})
			gap -= 255
		}
		blocks = append(blocks, ackBlock{gap: uint8(gap), length: rangeLen(cur)})
	}
	return blocks
}

type ackBlock struct {
	gap    uint8
	length uint64
}

func rangeLen(r AckRange) uint64 {
	return uint64(r.Last-r.First) + 1
}

func (f *AckFrame) ByteLen(int) int {
	n := 1 + f.largestAckedWidth() + 2 // type + largest acked + delay
	hasRanges := f.HasMissingRanges()
	missingWidth := f.missingWidth()
	if hasRanges {
		blocks := f.encodedBlocks()
		n += 1                    // num-blocks - 1
		n += missingWidth          // first block length
		n += (len(blocks) - 1) * (1 + missingWidth)
	} else {
		n += missingWidth // first block length when no extra ranges
	}
	n += 1 // num-timestamps
	if len(f.Timestamps) > 0 {
		n += 1 + 4 // first timestamp: delta(1) + time(4)
		n += (len(f.Timestamps) - 1) * (1 + 2)
	}
	return n
}

func (f *AckFrame) EncodeTo(b *Buffer, _ int) error {
	if len(f.Ranges) == 0 {
		return fmt.Errorf("wire: ACK frame has no ranges")
	}
	laWidth := f.largestAckedWidth()
	missingWidth := f.missingWidth()
	hasRanges := f.HasMissingRanges()

	typeByte := byte(frameACKBase)
	if hasRanges {
		typeByte |= 1 << 5
	}
	typeByte |= PacketNumberByteLenToFlag(laWidth) << 2
	typeByte |= PacketNumberByteLenToFlag(missingWidth)
	b.WriteByte(typeByte)

	f.LargestAcked.EncodeTo(b, laWidth)

	var delayBuf [2]byte
	binary.BigEndian.PutUint16(delayBuf[:], uint16(f.DelayTime))
	b.Write(delayBuf[:])

	blocks := f.encodedBlocks()
	if hasRanges {
		b.WriteByte(byte(len(blocks) - 1))
	}
	firstLenBuf := make([]byte, missingWidth)
	putUint(firstLenBuf, missingWidth, blocks[0].length)
	b.Write(firstLenBuf)
	if hasRanges {
		for _, blk := range blocks[1:] {
			b.WriteByte(blk.gap)
			tmp := make([]byte, missingWidth)
			putUint(tmp, missingWidth, blk.length)
			b.Write(tmp)
		}
	}

	b.WriteByte(byte(len(f.Timestamps)))
	for i, ts := range f.Timestamps {
		b.WriteByte(ts.DeltaLargestAcked)
		if i == 0 {
			var tbuf [4]byte
			binary.LittleEndian.PutUint32(tbuf[:], ts.Time)
			b.Write(tbuf[:])
		} else {
			uf := WriteUFloat16(uint64(ts.Time))
			var tbuf [2]byte
			binary.BigEndian.PutUint16(tbuf[:], uint16(uf))
			b.Write(tbuf[:])
		}
	}
	return nil
}

func decodeAckFrame(c *Cursor, typeByte byte) (*AckFrame, error) {
	hasRanges := typeByte&(1<<5) != 0
	laFlag := (typeByte >> 2) & 0x03
	missingFlag := typeByte & 0x03

	laWidth, err := PacketNumberFlagToByteLen(laFlag)
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: %w", err)
	}
	missingWidth, err := PacketNumberFlagToByteLen(missingFlag)
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: %w", err)
	}

	largestAcked, err := DecodePacketNumber(c, laWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: %w", err)
	}

	delayRaw, err := c.ReadN(2)
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: decoding delay: %w", err)
	}
	delay := UFloat16(binary.BigEndian.Uint16(delayRaw))

	var numBlocks int
	if hasRanges {
		nb, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: ACK: decoding num blocks: %w", err)
		}
		numBlocks = int(nb) + 1
	} else {
		numBlocks = 1
	}

	firstLenRaw, err := c.ReadN(missingWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: decoding first block length: %w", err)
	}
	firstLen := readUint(firstLenRaw, missingWidth)

	ranges := make([]AckRange, 0, numBlocks)
	last := largestAcked
	first := last - PacketNumber(firstLen) + 1
	ranges = append(ranges, AckRange{First: first, Last: last})

	// Consecutive zero-length blocks are synthetic: a single logical gap
	// >=256 is split across several (gap:255, length:0) blocks followed
	// by the real (gap:remainder, length:n) block, so their gaps must be
	// summed before they can be applied against prevFirst.
	prevFirst := first
	gapAccum := uint64(0)
	for i := 1; i < numBlocks; i++ {
		gap, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: ACK: decoding gap %d: %w", i, err)
		}
		lenRaw, err := c.ReadN(missingWidth)
		if err != nil {
			return nil, fmt.Errorf("wire: ACK: decoding block length %d: %w", i, err)
		}
		length := readUint(lenRaw, missingWidth)
		gapAccum += uint64(gap)
		if length == 0 {
			// Synthetic full-gap block: no ack range here, just extends the gap.
			continue
		}
		blockLast := prevFirst - PacketNumber(gapAccum) - 1
		blockFirst := blockLast - PacketNumber(length) + 1
		if blockFirst > blockLast || blockLast >= prevFirst {
			return nil, fmt.Errorf("wire: ACK: range %d is not strictly descending", i)
		}
		ranges = append(ranges, AckRange{First: blockFirst, Last: blockLast})
		prevFirst = blockFirst
		gapAccum = 0
	}

	numTimestamps, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: ACK: decoding num timestamps: %w", err)
	}
	timestamps := make([]AckTimestamp, 0, numTimestamps)
	for i := 0; i < int(numTimestamps); i++ {
		delta, err := c.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("wire: ACK: decoding timestamp %d delta: %w", i, err)
		}
		if i == 0 {
			raw, err := c.ReadN(4)
			if err != nil {
				return nil, fmt.Errorf("wire: ACK: decoding timestamp %d time: %w", i, err)
			}
			timestamps = append(timestamps, AckTimestamp{DeltaLargestAcked: delta, Time: binary.LittleEndian.Uint32(raw)})
		} else {
			raw, err := c.ReadN(2)
			if err != nil {
				return nil, fmt.Errorf("wire: ACK: decoding timestamp %d time: %w", i, err)
			}
			timestamps = append(timestamps, AckTimestamp{DeltaLargestAcked: delta, Time: uint32(ReadUFloat16(UFloat16(binary.BigEndian.Uint16(raw))))})
		}
	}

	return &AckFrame{
		LargestAcked: largestAcked,
		DelayTime:    delay,
		Ranges:       ranges,
		Timestamps:   timestamps,
	}, nil
}
