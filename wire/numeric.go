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

import "fmt"

// readUint decodes a big-endian unsigned integer of the given byte width
// (0..8) from the front of buf.
func readUint(buf []byte, width int) uint64 {
	var v uint64
	for _, b := range buf[:width] {
		v = v<<8 | uint64(b)
	}
	return v
}

// putUint encodes v as a big-endian unsigned integer into the first width
// bytes of buf.
func putUint(buf []byte, width int, v uint64) {
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

// PacketNumber is a per-session, monotonically increasing packet
// identifier in [1, 2^48-1]. It is serialized big-endian in 1, 2, 4 or 6
// bytes, chosen by magnitude.
type PacketNumber uint64

// MaxPacketNumber is the largest representable packet number (2^48-1).
// A session that reaches it must close with CONNECTION_CLOSE rather than
// assign another packet number.
const MaxPacketNumber PacketNumber = 1<<48 - 1

var packetNumberFlagLens = [4]int{1, 2, 4, 6}

// IsLimitReached reports whether p has hit the 2^48-1 ceiling.
func (p PacketNumber) IsLimitReached() bool {
	return p >= MaxPacketNumber
}

// ByteLen returns the wire width (1, 2, 4 or 6) needed for p.
func (p PacketNumber) ByteLen() int {
	switch {
	case p <= 0xff:
		return 1
	case p <= 0xffff:
		return 2
	case p <= 0xffffffff:
		return 4
	default:
		return 6
	}
}

// PacketNumberFlagToByteLen maps the 2-bit public-header / ACK-frame flag value
// {00,01,10,11} to its byte width {1,2,4,6}.
func PacketNumberFlagToByteLen(flag uint8) (int, error) {
	if flag > 3 {
		return 0, fmt.Errorf("wire: invalid packet number flag %#x", flag)
	}
	return packetNumberFlagLens[flag], nil
}

// PacketNumberByteLenToFlag is the inverse of PacketNumberFlagToByteLen:
// width 1/2/4/6 -> flag
// 0/1/2/3. Any other width is an encoder bug.
func PacketNumberByteLenToFlag(width int) uint8 {
	switch width {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 6:
		return 3
	default:
		panic(fmt.Sprintf("wire: invalid packet number width %d", width))
	}
}

// EncodeTo writes p using exactly width bytes (caller chose width via
// ByteLen or a value forced by the enclosing header).
func (p PacketNumber) EncodeTo(b *Buffer, width int) {
	tmp := make([]byte, width)
	putUint(tmp, width, uint64(p))
	b.Write(tmp)
}

// DecodePacketNumber reads a PacketNumber of the given byte width.
func DecodePacketNumber(c *Cursor, width int) (PacketNumber, error) {
	raw, err := c.ReadN(width)
	if err != nil {
		return 0, fmt.Errorf("wire: decoding packet number: %w", err)
	}
	return PacketNumber(readUint(raw, width)), nil
}

// StreamID identifies a stream within a session, in [0, 2^32-1]. Stream 0
// is reserved for connection-level WINDOW_UPDATE, stream 1 for the crypto
// handshake. Client-initiated streams are odd, server-initiated even.
type StreamID uint32

var streamIDFlagLens = [4]int{1, 2, 3, 4}

// ByteLen returns the wire width (1..4) needed for s.
func (s StreamID) ByteLen() int {
	switch {
	case s <= 0xff:
		return 1
	case s <= 0xffff:
		return 2
	case s <= 0xffffff:
		return 3
	default:
		return 4
	}
}

// StreamIDFlagToByteLen maps the 2-bit "ss" flag {00..11} to byte width
// {1,2,3,4}.
func StreamIDFlagToByteLen(flag uint8) (int, error) {
	if flag > 3 {
		return 0, fmt.Errorf("wire: invalid stream id flag %#x", flag)
	}
	return streamIDFlagLens[flag], nil
}

// StreamIDByteLenToFlag is the inverse of StreamIDFlagToByteLen.
func StreamIDByteLenToFlag(width int) uint8 {
	if width < 1 || width > 4 {
		panic(fmt.Sprintf("wire: invalid stream id width %d", width))
	}
	return uint8(width - 1)
}

// EncodeTo writes s using exactly width bytes.
func (s StreamID) EncodeTo(b *Buffer, width int) {
	tmp := make([]byte, width)
	putUint(tmp, width, uint64(s))
	b.Write(tmp)
}

// DecodeStreamID reads a StreamID of the given byte width.
func DecodeStreamID(c *Cursor, width int) (StreamID, error) {
	raw, err := c.ReadN(width)
	if err != nil {
		return 0, fmt.Errorf("wire: decoding stream id: %w", err)
	}
	return StreamID(readUint(raw, width)), nil
}

// NextClientStreamID and NextServerStreamID advance a locally-tracked
// "next id" by +2, wrapping modulo 2^32 while always skipping 0.
func NextClientStreamID(prev StreamID) StreamID {
	return nextStreamID(prev, 1)
}

func NextServerStreamID(prev StreamID) StreamID {
	return nextStreamID(prev, 2)
}

func nextStreamID(prev StreamID, first StreamID) StreamID {
	if prev == 0 {
		return first
	}
	next := prev + 2
	if next < prev { // wrapped past 2^32-1
		next = first
	}
	return next
}

// Offset is a byte offset within a stream's send or receive sequence, in
// [0, 2^53-1]. It is serialized big-endian in 0, 2, 3, 4, 5, 6, 7 or 8
// bytes; the value 0 elides to zero bytes on the wire.
type Offset uint64

// MaxOffset is the largest representable Offset (2^53-1, the JS
// safe-integer bound the original implementation was constrained to).
const MaxOffset Offset = 1<<53 - 1

var offsetFlagLens = [8]int{0, 2, 3, 4, 5, 6, 7, 8}

// ByteLen returns the wire width (0, 2..8) needed for o.
func (o Offset) ByteLen() int {
	switch {
	case o == 0:
		return 0
	case o <= 0xffff:
		return 2
	case o <= 0xffffff:
		return 3
	case o <= 0xffffffff:
		return 4
	case o <= 0xffffffffff:
		return 5
	case o <= 0xffffffffffff:
		return 6
	case o <= 0xffffffffffffff:
		return 7
	default:
		return 8
	}
}

// OffsetFlagToByteLen maps the 3-bit "ooo" flag {000..111} to byte width
// {0,2,3,4,5,6,7,8}.
func OffsetFlagToByteLen(flag uint8) (int, error) {
	if flag > 7 {
		return 0, fmt.Errorf("wire: invalid offset flag %#x", flag)
	}
	return offsetFlagLens[flag], nil
}

// OffsetByteLenToFlag is the inverse of OffsetFlagToByteLen.
func OffsetByteLenToFlag(width int) uint8 {
	for flag, w := range offsetFlagLens {
		if w == width {
			return uint8(flag)
		}
	}
	panic(fmt.Sprintf("wire: invalid offset width %d", width))
}

// EncodeTo writes o using exactly width bytes (width==0 writes nothing).
func (o Offset) EncodeTo(b *Buffer, width int) {
	if width == 0 {
		return
	}
	tmp := make([]byte, width)
	putUint(tmp, width, uint64(o))
	b.Write(tmp)
}

// DecodeOffset reads an Offset of the given byte width (width==0 yields 0
// without consuming any bytes).
func DecodeOffset(c *Cursor, width int) (Offset, error) {
	if width == 0 {
		return 0, nil
	}
	raw, err := c.ReadN(width)
	if err != nil {
		return 0, fmt.Errorf("wire: decoding offset: %w", err)
	}
	return Offset(readUint(raw, width)), nil
}
