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
	"fmt"
)

// Public header flag bits (first byte of every packet).
const (
	flagVersion      byte = 0x01
	flagReset        byte = 0x02
	flagNonce        byte = 0x04
	flagConnectionID byte = 0x08
	flagPacketNumLen byte = 0x30 // bits 4-5
	flagMultipath    byte = 0x40 // reserved
	flagReserved     byte = 0x80 // MUST be zero
)

// DiversificationNonceLen is the fixed length of a Regular packet's
// optional server-only nonce.
const DiversificationNonceLen = 32

// Outbound packet size ceilings and the inbound truncation bound, per
// the external interface's UDP transport constraints.
const (
	MaxPacketSizeIPv4     = 1252
	MaxPacketSizeIPv6     = 1232
	MaxReceivePacketSize  = 1452
)

// Version is a negotiated wire version, packed as its 4 ASCII bytes.
type Version string

// SupportedVersion is the only wire version this implementation speaks.
const SupportedVersion Version = "Q039"

// SupportedVersions lists every version this endpoint will negotiate,
// highest-preference first.
var SupportedVersions = []Version{SupportedVersion}

// IsSupportedVersion reports whether v is in SupportedVersions.
func IsSupportedVersion(v Version) bool {
	for _, sv := range SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// ChooseVersion picks the highest-preference entry of SupportedVersions
// that also appears in offered, or "" if there is no overlap.
func ChooseVersion(offered []Version) Version {
	for _, sv := range SupportedVersions {
		for _, ov := range offered {
			if sv == ov {
				return sv
			}
		}
	}
	return ""
}

func encodeVersion(b *Buffer, v Version) error {
	if len(v) != 4 {
		return fmt.Errorf("wire: version %q is not 4 characters", v)
	}
	b.Write([]byte(v))
	return nil
}

func decodeVersion(c *Cursor) (Version, error) {
	raw, err := c.ReadN(4)
	if err != nil {
		return "", fmt.Errorf("wire: decoding version: %w", err)
	}
	return Version(raw), nil
}

// ResetPacket is gQUIC's Public Reset: a "PRST" tag carrying a random
// nonce proof and, optionally, the rejected packet number and the
// client's address as last seen by the sender.
type ResetPacket struct {
	ConnectionID ConnectionID
	Nonce        uint64
	RejectedSeq  *PacketNumber
	ClientAddr   *SocketAddress
}

// EncodeTo writes the public flag byte, connection id, and PRST tag.
func (p *ResetPacket) EncodeTo(b *Buffer) error {
	b.WriteByte(flagConnectionID | flagReset)
	p.ConnectionID.EncodeTo(b)

	tag := NewQuicTag(TagPRST)
	var nonceBuf [8]byte
	putUint(nonceBuf[:], 8, p.Nonce)
	tag.Set(TagRNON, nonceBuf[:])
	if p.RejectedSeq != nil {
		var seqBuf [8]byte
		putUint(seqBuf[:], 8, uint64(*p.RejectedSeq))
		tag.Set(TagRSEQ, seqBuf[:])
	}
	if p.ClientAddr != nil {
		addrBuf := NewBuffer(make([]byte, 0, p.ClientAddr.ByteLen()))
		if err := p.ClientAddr.EncodeTo(addrBuf); err != nil {
			return fmt.Errorf("wire: PRST: %w", err)
		}
		tag.Set(TagCADR, addrBuf.Bytes())
	}
	tag.EncodeTo(b)
	return nil
}

// decodeResetPacket parses the PRST tag following a connection id already
// consumed by the caller.
func decodeResetPacket(c *Cursor, connID ConnectionID) (*ResetPacket, error) {
	tag, err := DecodeQuicTag(c)
	if err != nil {
		return nil, fmt.Errorf("wire: PRST: %w", err)
	}
	if tag.Name != TagPRST {
		return nil, fmt.Errorf("wire: PRST: unexpected tag name %s", tag.Name)
	}
	nonceRaw, ok := tag.Get(TagRNON)
	if !ok {
		return nil, fmt.Errorf("wire: PRST: missing required RNON")
	}
	if len(nonceRaw) != 8 {
		return nil, fmt.Errorf("wire: PRST: RNON has length %d, want 8", len(nonceRaw))
	}
	p := &ResetPacket{
		ConnectionID: connID,
		Nonce:        readUint(nonceRaw, 8),
	}
	if seqRaw, ok := tag.Get(TagRSEQ); ok {
		if len(seqRaw) != 8 {
			return nil, fmt.Errorf("wire: PRST: RSEQ has length %d, want 8", len(seqRaw))
		}
		seq := PacketNumber(readUint(seqRaw, 8))
		p.RejectedSeq = &seq
	}
	if addrRaw, ok := tag.Get(TagCADR); ok {
		addr, err := DecodeSocketAddress(NewCursor(addrRaw))
		if err != nil {
			return nil, fmt.Errorf("wire: PRST: CADR: %w", err)
		}
		p.ClientAddr = &addr
	}
	return p, nil
}

// NegotiationPacket is the server-only reply offering its supported
// version set when a client's proposed version is not recognized.
type NegotiationPacket struct {
	ConnectionID ConnectionID
	Versions     []Version
}

// EncodeTo writes the public flag byte, connection id, and the version
// list.
func (p *NegotiationPacket) EncodeTo(b *Buffer) error {
	b.WriteByte(flagConnectionID | flagVersion)
	p.ConnectionID.EncodeTo(b)
	for _, v := range p.Versions {
		if err := encodeVersion(b, v); err != nil {
			return fmt.Errorf("wire: negotiation packet: %w", err)
		}
	}
	return nil
}

func decodeNegotiationPacket(c *Cursor, connID ConnectionID) (*NegotiationPacket, error) {
	var versions []Version
	for c.Len() > 0 {
		v, err := decodeVersion(c)
		if err != nil {
			return nil, fmt.Errorf("wire: negotiation packet: %w", err)
		}
		versions = append(versions, v)
	}
	return &NegotiationPacket{ConnectionID: connID, Versions: versions}, nil
}

// RegularPacket carries an optional version (client's first flight only),
// an optional server diversification nonce, a packet number, and the
// frames that make up the packet's payload.
type RegularPacket struct {
	ConnectionID ConnectionID
	Version      Version // "" if the version flag is clear
	Nonce        []byte  // nil unless the nonce flag is set; DiversificationNonceLen bytes
	PacketNumber PacketNumber
	Frames       []Frame
	// MinPacketNumberWidth forces a wider-than-minimal packet-number
	// encoding, e.g. the 6-byte width a session's very first packet uses
	// to establish framing width regardless of how small its number is.
	MinPacketNumberWidth int
}

// packetNumberWidth returns the wire width this packet will use, derived
// from the packet number's magnitude but never narrower than
// MinPacketNumberWidth.
func (p *RegularPacket) packetNumberWidth() int {
	w := p.PacketNumber.ByteLen()
	if p.MinPacketNumberWidth > w {
		return p.MinPacketNumberWidth
	}
	return w
}

// ByteLen returns the exact size EncodeTo will produce.
func (p *RegularPacket) ByteLen() int {
	pnWidth := p.packetNumberWidth()
	n := 1 + ConnectionIDLen
	if p.Version != "" {
		n += 4
	}
	if p.Nonce != nil {
		n += DiversificationNonceLen
	}
	n += pnWidth
	for _, f := range p.Frames {
		n += frameByteLen(f, pnWidth, p.PacketNumber)
	}
	return n
}

func frameByteLen(f Frame, pnWidth int, headerPN PacketNumber) int {
	if sw, ok := f.(*StopWaitingFrame); ok {
		return sw.ByteLen(pnWidth)
	}
	return f.ByteLen(pnWidth)
}

// EncodeTo writes the public flag byte, connection id, optional version,
// optional nonce, packet number, then each frame in order.
func (p *RegularPacket) EncodeTo(b *Buffer) error {
	if p.Nonce != nil && len(p.Nonce) != DiversificationNonceLen {
		return fmt.Errorf("wire: regular packet: nonce has length %d, want %d", len(p.Nonce), DiversificationNonceLen)
	}
	pnWidth := p.packetNumberWidth()

	flag := flagConnectionID
	if p.Version != "" {
		flag |= flagVersion
	}
	if p.Nonce != nil {
		flag |= flagNonce
	}
	flag |= packetNumberByteLenToFlagBits(pnWidth)
	b.WriteByte(flag)

	p.ConnectionID.EncodeTo(b)
	if p.Version != "" {
		if err := encodeVersion(b, p.Version); err != nil {
			return fmt.Errorf("wire: regular packet: %w", err)
		}
	}
	if p.Nonce != nil {
		b.Write(p.Nonce)
	}
	p.PacketNumber.EncodeTo(b, pnWidth)

	for _, f := range p.Frames {
		if sw, ok := f.(*StopWaitingFrame); ok {
			EncodeStopWaiting(b, sw, p.PacketNumber, pnWidth)
			continue
		}
		if err := f.EncodeTo(b, pnWidth); err != nil {
			return fmt.Errorf("wire: regular packet: encoding %T: %w", f, err)
		}
	}
	return nil
}

// packetNumberByteLenToFlagBits maps width {1,2,4,6} to the already
// bit-shifted 0x30-mask flag value.
func packetNumberByteLenToFlagBits(width int) byte {
	return PacketNumberByteLenToFlag(width) << 4
}

func decodeRegularPacket(c *Cursor, connID ConnectionID, flag byte) (*RegularPacket, error) {
	p := &RegularPacket{ConnectionID: connID}

	if flag&flagVersion != 0 {
		v, err := decodeVersion(c)
		if err != nil {
			return nil, fmt.Errorf("wire: regular packet: %w", err)
		}
		p.Version = v
	}
	if flag&flagNonce != 0 {
		nonce, err := c.ReadN(DiversificationNonceLen)
		if err != nil {
			return nil, fmt.Errorf("wire: regular packet: decoding nonce: %w", err)
		}
		p.Nonce = append([]byte(nil), nonce...)
	}

	pnWidth, err := PacketNumberFlagToByteLen((flag & flagPacketNumLen) >> 4)
	if err != nil {
		return nil, fmt.Errorf("wire: regular packet: %w", err)
	}
	pn, err := DecodePacketNumber(c, pnWidth)
	if err != nil {
		return nil, fmt.Errorf("wire: regular packet: %w", err)
	}
	p.PacketNumber = pn

	for c.Len() > 0 {
		f, err := decodeFrame(c, pn, pnWidth)
		if err != nil {
			return nil, fmt.Errorf("wire: regular packet: %w", err)
		}
		p.Frames = append(p.Frames, f)
	}
	return p, nil
}

// decodeFrame reads one frame-type discriminator byte and dispatches to
// the matching frame decoder. headerPN and pnWidth are only consumed by
// STOP_WAITING, which has no type-prefixed length of its own.
func decodeFrame(c *Cursor, headerPN PacketNumber, pnWidth int) (Frame, error) {
	typeByte, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decoding frame type: %w", err)
	}

	switch {
	case typeByte&byte(frameStreamBase) != 0:
		return decodeStreamFrame(c, typeByte)
	case typeByte&byte(frameACKBase) != 0:
		return decodeAckFrame(c, typeByte)
	case typeByte&0xE0 == byte(frameCongestionFeedback):
		raw, err := c.ReadN(c.Len())
		if err != nil {
			return nil, fmt.Errorf("decoding CONGESTION_FEEDBACK: %w", err)
		}
		return &CongestionFeedbackFrame{Raw: append([]byte(nil), raw...)}, nil
	}

	switch FrameType(typeByte) {
	case FramePadding:
		raw := c.Rest()
		if _, err := c.ReadN(len(raw)); err != nil {
			return nil, fmt.Errorf("decoding PADDING: %w", err)
		}
		return &PaddingFrame{Length: len(raw) + 1}, nil
	case FrameRstStream:
		return decodeRstStreamFrame(c)
	case FrameConnectionClose:
		return decodeConnectionCloseFrame(c)
	case FrameGoAway:
		return decodeGoAwayFrame(c)
	case FrameWindowUpdate:
		return decodeWindowUpdateFrame(c)
	case FrameBlocked:
		return decodeBlockedFrame(c)
	case FrameStopWaiting:
		return decodeStopWaitingFrame(c, headerPN, pnWidth)
	case FramePing:
		return &PingFrame{}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %#x", typeByte)
	}
}

// DecodePublicHeader reads the public flag byte of buf and routes to the
// matching packet decoder: Reset, Negotiation, or Regular. The version
// bit alone does not disambiguate Negotiation from a client's first
// Regular flight - only the server ever sends Negotiation - so fromServer
// must report whether buf arrived from the session's peer acting as a
// server.
func DecodePublicHeader(buf []byte, fromServer bool) (any, error) {
	c := NewCursor(buf)
	flag, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("wire: decoding public flag: %w", err)
	}
	if flag&flagReserved != 0 {
		return nil, fmt.Errorf("wire: reserved public flag bit set: %#x", flag)
	}
	if flag&flagConnectionID == 0 {
		return nil, fmt.Errorf("wire: public header missing mandatory connection id")
	}
	connID, err := DecodeConnectionID(c)
	if err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}

	switch {
	case flag&flagReset != 0:
		return decodeResetPacket(c, connID)
	case flag&flagVersion != 0 && fromServer:
		return decodeNegotiationPacket(c, connID)
	default:
		return decodeRegularPacket(c, connID, flag)
	}
}
