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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetPacketRoundTrip(t *testing.T) {
	connID := ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}
	seq := PacketNumber(0x123456789ABC)
	addr, err := NewSocketAddress(net.IPv4(4, 31, 198, 44), 0x1234)
	require.NoError(t, err)

	p := &ResetPacket{
		ConnectionID: connID,
		Nonce:        0x8967452301EFCDAB,
		RejectedSeq:  &seq,
		ClientAddr:   &addr,
	}

	b := NewBuffer(nil)
	require.NoError(t, p.EncodeTo(b))
	raw := b.Bytes()
	assert.NotZero(t, raw[0]&0x02, "reset flag must be set")
	assert.NotZero(t, raw[0]&0x08, "connection id flag must be set")

	decoded, err := DecodePublicHeader(raw, false)
	require.NoError(t, err)
	got, ok := decoded.(*ResetPacket)
	require.True(t, ok)
	assert.Equal(t, connID, got.ConnectionID)
	assert.Equal(t, p.Nonce, got.Nonce)
	require.NotNil(t, got.RejectedSeq)
	assert.Equal(t, seq, *got.RejectedSeq)
	require.NotNil(t, got.ClientAddr)
	assert.Equal(t, addr.Family, got.ClientAddr.Family)
	assert.True(t, addr.Address.Equal(got.ClientAddr.Address))
	assert.Equal(t, addr.Port, got.ClientAddr.Port)
}

func TestResetPacketWithoutOptionalFields(t *testing.T) {
	p := &ResetPacket{
		ConnectionID: ConnectionID{1, 1, 1, 1, 1, 1, 1, 1},
		Nonce:        42,
	}
	b := NewBuffer(nil)
	require.NoError(t, p.EncodeTo(b))

	decoded, err := DecodePublicHeader(b.Bytes(), false)
	require.NoError(t, err)
	got := decoded.(*ResetPacket)
	assert.Nil(t, got.RejectedSeq)
	assert.Nil(t, got.ClientAddr)
}

func TestNegotiationPacketRoundTrip(t *testing.T) {
	connID := ConnectionID{9, 9, 9, 9, 9, 9, 9, 9}
	p := &NegotiationPacket{
		ConnectionID: connID,
		Versions:     []Version{"Q040", "Q039"},
	}
	b := NewBuffer(nil)
	require.NoError(t, p.EncodeTo(b))

	decoded, err := DecodePublicHeader(b.Bytes(), true)
	require.NoError(t, err)
	got, ok := decoded.(*NegotiationPacket)
	require.True(t, ok)
	assert.Equal(t, connID, got.ConnectionID)
	assert.Equal(t, p.Versions, got.Versions)
}

func TestChooseVersion(t *testing.T) {
	assert.Equal(t, SupportedVersion, ChooseVersion([]Version{"Q040", "Q039"}))
	assert.Equal(t, Version(""), ChooseVersion([]Version{"Q040"}))
}

func TestRegularPacketRoundTripNoFramesFields(t *testing.T) {
	connID := ConnectionID{1, 2, 3, 4, 5, 6, 7, 8}
	p := &RegularPacket{
		ConnectionID: connID,
		Version:      SupportedVersion,
		PacketNumber: 7,
		Frames:       []Frame{&PingFrame{}},
	}
	b := NewBuffer(nil)
	require.NoError(t, p.EncodeTo(b))
	assert.Equal(t, p.ByteLen(), b.Len())

	decoded, err := DecodePublicHeader(b.Bytes(), false)
	require.NoError(t, err)
	got, ok := decoded.(*RegularPacket)
	require.True(t, ok)
	assert.Equal(t, connID, got.ConnectionID)
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.PacketNumber, got.PacketNumber)
	require.Len(t, got.Frames, 1)
	assert.IsType(t, &PingFrame{}, got.Frames[0])
}

func TestRegularPacketRoundTripWithNonceAndMultipleFrames(t *testing.T) {
	connID := ConnectionID{8, 7, 6, 5, 4, 3, 2, 1}
	nonce := make([]byte, DiversificationNonceLen)
	for i := range nonce {
		nonce[i] = byte(i)
	}
	p := &RegularPacket{
		ConnectionID: connID,
		Nonce:        nonce,
		PacketNumber: 300,
		Frames: []Frame{
			&StreamFrame{StreamID: 5, Offset: 0, Fin: false, Data: []byte("abc"), LengthPresent: true},
			&PingFrame{},
			&StopWaitingFrame{LeastUnacked: 250},
		},
	}
	b := NewBuffer(nil)
	require.NoError(t, p.EncodeTo(b))
	assert.Equal(t, p.ByteLen(), b.Len())

	decoded, err := DecodePublicHeader(b.Bytes(), false)
	require.NoError(t, err)
	got, ok := decoded.(*RegularPacket)
	require.True(t, ok)
	assert.Equal(t, nonce, got.Nonce)
	require.Len(t, got.Frames, 3)
	assert.IsType(t, &StreamFrame{}, got.Frames[0])
	assert.IsType(t, &PingFrame{}, got.Frames[1])
	sw, ok := got.Frames[2].(*StopWaitingFrame)
	require.True(t, ok)
	assert.Equal(t, PacketNumber(250), sw.LeastUnacked)
}

func TestDecodePublicHeaderRejectsReservedBit(t *testing.T) {
	_, err := DecodePublicHeader([]byte{0x80 | flagConnectionID, 0, 0, 0, 0, 0, 0, 0, 0}, false)
	require.Error(t, err)
}

func TestDecodePublicHeaderRequiresConnectionIDBit(t *testing.T) {
	_, err := DecodePublicHeader([]byte{0x00}, false)
	require.Error(t, err)
}

func TestDecodePublicHeaderTruncated(t *testing.T) {
	_, err := DecodePublicHeader([]byte{flagConnectionID, 1, 2, 3}, false)
	require.Error(t, err)
}
