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

// StreamFrame carries application bytes for one stream. Wire layout:
// first byte 1fdooossB, then the stream id (ss+1 bytes), then the offset
// (ooo==0 ? 0 : ooo+1 bytes), then an optional 2-byte BE data length (if
// the d-bit is set) followed by the data - or, if d is clear, data
// extending to the end of the packet.
type StreamFrame struct {
	StreamID StreamID
	Offset   Offset
	Fin      bool
	Data     []byte
	// LengthPresent controls whether a data-length prefix is written.
	// When false, Data must be the frame's sole remaining payload in its
	// packet (it will be read as "to end of packet" on decode).
	LengthPresent bool
}

func (f *StreamFrame) Type() FrameType { return frameStreamBase }

func (f *StreamFrame) ByteLen(int) int {
	n := 1 + f.StreamID.ByteLen() + f.Offset.ByteLen()
	if f.LengthPresent {
		n += 2
	}
	return n + len(f.Data)
}

func (f *StreamFrame) EncodeTo(b *Buffer, _ int) error {
	if len(f.Data) == 0 && !f.Fin {
		return fmt.Errorf("wire: STREAM frame has neither data nor FIN")
	}
	sidWidth := f.StreamID.ByteLen()
	offWidth := f.Offset.ByteLen()

	typeByte := byte(frameStreamBase)
	if f.Fin {
		typeByte |= 1 << 6
	}
	if f.LengthPresent {
		typeByte |= 1 << 5
	}
	typeByte |= StreamIDByteLenToFlag(sidWidth) // ss bits, positions 0-1
	typeByte |= OffsetFlagToByteLen3(offWidth) << 2

	b.WriteByte(typeByte)
	f.StreamID.EncodeTo(b, sidWidth)
	f.Offset.EncodeTo(b, offWidth)
	if f.LengthPresent {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.Data)))
		b.Write(lenBuf[:])
	}
	b.Write(f.Data)
	return nil
}

// OffsetFlagToByteLen3 is the inverse of OffsetFlagToByteLen, returning
// the 3-bit "ooo" flag for a given offset byte width.
func OffsetFlagToByteLen3(width int) byte {
	return byte(OffsetByteLenToFlag(width))
}

func decodeStreamFrame(c *Cursor, typeByte byte) (*StreamFrame, error) {
	fin := typeByte&(1<<6) != 0
	lengthPresent := typeByte&(1<<5) != 0
	offsetFlag := (typeByte >> 2) & 0x07
	sidFlag := typeByte & 0x03

	sidWidth, err := StreamIDFlagToByteLen(sidFlag)
	if err != nil {
		return nil, fmt.Errorf("wire: STREAM: %w", err)
	}
	offWidth, err := OffsetFlagToByteLen(offsetFlag)
	if err != nil {
		return nil, fmt.Errorf("wire: STREAM: %w", err)
	}

	sid, err := DecodeStreamID(c, sidWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: STREAM: %w", err)
	}
	off, err := DecodeOffset(c, offWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: STREAM: %w", err)
	}

	var data []byte
	if lengthPresent {
		lenRaw, err := c.ReadN(2)
		if err != nil {
			return nil, fmt.Errorf("wire: STREAM: decoding data length: %w", err)
		}
		n := binary.BigEndian.Uint16(lenRaw)
		if c.Len() < int(n) {
			return nil, fmt.Errorf("wire: STREAM: declared length %d exceeds remaining %d bytes", n, c.Len())
		}
		raw, err := c.ReadN(int(n))
		if err != nil {
			return nil, fmt.Errorf("wire: STREAM: %w", err)
		}
		data = append([]byte(nil), raw...)
	} else {
		raw, err := c.ReadN(c.Len())
		if err != nil {
			return nil, fmt.Errorf("wire: STREAM: %w", err)
		}
		data = append([]byte(nil), raw...)
	}

	if len(data) == 0 && !fin {
		return nil, fmt.Errorf("wire: STREAM frame has neither data nor FIN")
	}

	return &StreamFrame{
		StreamID:      sid,
		Offset:        off,
		Fin:           fin,
		Data:          data,
		LengthPresent: lengthPresent,
	}, nil
}
