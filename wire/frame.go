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

	"github.com/facebook/gquic/quicerr"
)

// FrameType is the discriminator read from the first byte of a frame.
// Special frame classes (ACK and STREAM) pack additional flag bits
// alongside their type prefix, so Type() of those frames returns the
// canonical prefix rather than the raw wire byte.
type FrameType byte

// Frame type bytes, as tabulated in the wire format's frame table.
const (
	FramePadding            FrameType = 0x00
	FrameRstStream          FrameType = 0x01
	FrameConnectionClose    FrameType = 0x02
	FrameGoAway             FrameType = 0x03
	FrameWindowUpdate       FrameType = 0x04
	FrameBlocked            FrameType = 0x05
	FrameStopWaiting        FrameType = 0x06
	FramePing               FrameType = 0x07
	frameCongestionFeedback FrameType = 0x20 // 001xxxxx, reserved
	frameACKBase            FrameType = 0x40 // 01nullmm
	frameStreamBase         FrameType = 0x80 // 1fdooss
)

// Frame is implemented by every decoded frame value.
type Frame interface {
	// Type returns the frame's canonical type discriminator.
	Type() FrameType
	// EncodeTo appends the frame's wire encoding to b. pnWidth is the
	// enclosing packet's packet-number width, needed only by
	// STOP_WAITING.
	EncodeTo(b *Buffer, pnWidth int) error
	// ByteLen returns the exact number of bytes EncodeTo will write.
	ByteLen(pnWidth int) int
}

// PaddingFrame extends to the end of the packet; Length is informational
// (the number of 0x00 bytes it occupies).
type PaddingFrame struct {
	Length int
}

func (f *PaddingFrame) Type() FrameType { return FramePadding }

func (f *PaddingFrame) ByteLen(int) int { return f.Length }

func (f *PaddingFrame) EncodeTo(b *Buffer, _ int) error {
	for i := 0; i < f.Length; i++ {
		b.WriteByte(0x00)
	}
	return nil
}

// PingFrame carries no payload; it exists only to elicit an ACK.
type PingFrame struct{}

func (f *PingFrame) Type() FrameType           { return FramePing }
func (f *PingFrame) ByteLen(int) int           { return 1 }
func (f *PingFrame) EncodeTo(b *Buffer, _ int) error { b.WriteByte(byte(FramePing)); return nil }

// RstStreamFrame aborts a stream: stream id (4), offset (8), error code
// (4, little-endian).
type RstStreamFrame struct {
	StreamID StreamID
	Offset   Offset
	Code     quicerr.StreamCode
}

func (f *RstStreamFrame) Type() FrameType { return FrameRstStream }
func (f *RstStreamFrame) ByteLen(int) int { return 1 + 4 + 8 + 4 }

func (f *RstStreamFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(FrameRstStream))
	f.StreamID.EncodeTo(b, 4)
	f.Offset.EncodeTo(b, 8)
	var codeBuf [4]byte
	binary.LittleEndian.PutUint32(codeBuf[:], uint32(f.Code))
	b.Write(codeBuf[:])
	return nil
}

func decodeRstStreamFrame(c *Cursor) (*RstStreamFrame, error) {
	sid, err := DecodeStreamID(c, 4)
	if err != nil {
		return nil, fmt.Errorf("wire: RST_STREAM: %w", err)
	}
	off, err := DecodeOffset(c, 8)
	if err != nil {
		return nil, fmt.Errorf("wire: RST_STREAM: %w", err)
	}
	codeRaw, err := c.ReadN(4)
	if err != nil {
		return nil, fmt.Errorf("wire: RST_STREAM: %w", err)
	}
	return &RstStreamFrame{
		StreamID: sid,
		Offset:   off,
		Code:     quicerr.StreamCode(binary.LittleEndian.Uint32(codeRaw)),
	}, nil
}

// ConnectionCloseFrame tears the whole session down: error code (4 LE),
// reason-len (2 BE), reason (UTF-8).
type ConnectionCloseFrame struct {
	Code   quicerr.Code
	Reason string
}

func (f *ConnectionCloseFrame) Type() FrameType { return FrameConnectionClose }
func (f *ConnectionCloseFrame) ByteLen(int) int { return 1 + 4 + 2 + len(f.Reason) }

func (f *ConnectionCloseFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(FrameConnectionClose))
	var codeBuf [4]byte
	binary.LittleEndian.PutUint32(codeBuf[:], uint32(f.Code))
	b.Write(codeBuf[:])
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.Reason)))
	b.Write(lenBuf[:])
	b.Write([]byte(f.Reason))
	return nil
}

func decodeConnectionCloseFrame(c *Cursor) (*ConnectionCloseFrame, error) {
	codeRaw, err := c.ReadN(4)
	if err != nil {
		return nil, fmt.Errorf("wire: CONNECTION_CLOSE: %w", err)
	}
	reason, err := decodeReasonPhrase(c)
	if err != nil {
		return nil, fmt.Errorf("wire: CONNECTION_CLOSE: %w", err)
	}
	return &ConnectionCloseFrame{Code: quicerr.Code(binary.LittleEndian.Uint32(codeRaw)), Reason: reason}, nil
}

// GoAwayFrame announces the session is winding down: error code (4 LE),
// last-good stream id (4), reason-len (2 BE), reason.
type GoAwayFrame struct {
	Code              quicerr.Code
	LastGoodStreamID  StreamID
	Reason            string
}

func (f *GoAwayFrame) Type() FrameType { return FrameGoAway }
func (f *GoAwayFrame) ByteLen(int) int { return 1 + 4 + 4 + 2 + len(f.Reason) }

func (f *GoAwayFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(FrameGoAway))
	var codeBuf [4]byte
	binary.LittleEndian.PutUint32(codeBuf[:], uint32(f.Code))
	b.Write(codeBuf[:])
	f.LastGoodStreamID.EncodeTo(b, 4)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(f.Reason)))
	b.Write(lenBuf[:])
	b.Write([]byte(f.Reason))
	return nil
}

func decodeGoAwayFrame(c *Cursor) (*GoAwayFrame, error) {
	codeRaw, err := c.ReadN(4)
	if err != nil {
		return nil, fmt.Errorf("wire: GOAWAY: %w", err)
	}
	sid, err := DecodeStreamID(c, 4)
	if err != nil {
		return nil, fmt.Errorf("wire: GOAWAY: %w", err)
	}
	reason, err := decodeReasonPhrase(c)
	if err != nil {
		return nil, fmt.Errorf("wire: GOAWAY: %w", err)
	}
	return &GoAwayFrame{Code: quicerr.Code(binary.LittleEndian.Uint32(codeRaw)), LastGoodStreamID: sid, Reason: reason}, nil
}

func decodeReasonPhrase(c *Cursor) (string, error) {
	lenRaw, err := c.ReadN(2)
	if err != nil {
		return "", fmt.Errorf("decoding reason length: %w", err)
	}
	n := binary.BigEndian.Uint16(lenRaw)
	raw, err := c.ReadN(int(n))
	if err != nil {
		return "", fmt.Errorf("decoding reason phrase: %w", err)
	}
	return string(raw), nil
}

// WindowUpdateFrame grants additional send credit: stream id (4), byte
// offset (8). Stream id 0 addresses the connection-level controller.
type WindowUpdateFrame struct {
	StreamID     StreamID
	ByteOffset   Offset
}

func (f *WindowUpdateFrame) Type() FrameType { return FrameWindowUpdate }
func (f *WindowUpdateFrame) ByteLen(int) int { return 1 + 4 + 8 }

func (f *WindowUpdateFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(FrameWindowUpdate))
	f.StreamID.EncodeTo(b, 4)
	f.ByteOffset.EncodeTo(b, 8)
	return nil
}

func decodeWindowUpdateFrame(c *Cursor) (*WindowUpdateFrame, error) {
	sid, err := DecodeStreamID(c, 4)
	if err != nil {
		return nil, fmt.Errorf("wire: WINDOW_UPDATE: %w", err)
	}
	off, err := DecodeOffset(c, 8)
	if err != nil {
		return nil, fmt.Errorf("wire: WINDOW_UPDATE: %w", err)
	}
	return &WindowUpdateFrame{StreamID: sid, ByteOffset: off}, nil
}

// BlockedFrame signals the sender has data to send but no credit for
// stream id (0 means the whole connection).
type BlockedFrame struct {
	StreamID StreamID
}

func (f *BlockedFrame) Type() FrameType { return FrameBlocked }
func (f *BlockedFrame) ByteLen(int) int { return 1 + 4 }

func (f *BlockedFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(FrameBlocked))
	f.StreamID.EncodeTo(b, 4)
	return nil
}

func decodeBlockedFrame(c *Cursor) (*BlockedFrame, error) {
	sid, err := DecodeStreamID(c, 4)
	if err != nil {
		return nil, fmt.Errorf("wire: BLOCKED: %w", err)
	}
	return &BlockedFrame{StreamID: sid}, nil
}

// StopWaitingFrame tells the peer not to wait for packets below
// least-unacked. On the wire it carries only the delta from the
// enclosing packet's packet number, at the same byte width as that
// packet number.
type StopWaitingFrame struct {
	LeastUnacked PacketNumber
}

func (f *StopWaitingFrame) Type() FrameType { return FrameStopWaiting }
func (f *StopWaitingFrame) ByteLen(pnWidth int) int { return 1 + pnWidth }

func (f *StopWaitingFrame) EncodeTo(b *Buffer, pnWidth int) error {
	return fmt.Errorf("wire: STOP_WAITING requires the header packet number; use EncodeStopWaiting")
}

// EncodeStopWaiting writes a STOP_WAITING frame given the enclosing
// packet's header packet number and width.
func EncodeStopWaiting(b *Buffer, f *StopWaitingFrame, headerPN PacketNumber, pnWidth int) {
	b.WriteByte(byte(FrameStopWaiting))
	delta := PacketNumber(uint64(headerPN) - uint64(f.LeastUnacked))
	delta.EncodeTo(b, pnWidth)
}

func decodeStopWaitingFrame(c *Cursor, headerPN PacketNumber, pnWidth int) (*StopWaitingFrame, error) {
	delta, err := DecodePacketNumber(c, pnWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: STOP_WAITING: %w", err)
	}
	return &StopWaitingFrame{LeastUnacked: PacketNumber(uint64(headerPN) - uint64(delta))}, nil
}

// CongestionFeedbackFrame is a reserved frame class (001xxxxx); its body
// is opaque and never interpreted.
type CongestionFeedbackFrame struct {
	Raw []byte
}

func (f *CongestionFeedbackFrame) Type() FrameType { return frameCongestionFeedback }
func (f *CongestionFeedbackFrame) ByteLen(int) int  { return 1 + len(f.Raw) }

func (f *CongestionFeedbackFrame) EncodeTo(b *Buffer, _ int) error {
	b.WriteByte(byte(frameCongestionFeedback))
	b.Write(f.Raw)
	return nil
}
