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

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/quicstream"
	"github.com/facebook/gquic/wire"
)

// captureWriter records every datagram handed to it, playing the role of
// the UDP socket quicnet would otherwise provide.
type captureWriter struct {
	packets [][]byte
}

func (c *captureWriter) WritePacket(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	c.packets = append(c.packets, cp)
	return nil
}

func testConnID(t *testing.T) wire.ConnectionID {
	t.Helper()
	id, err := wire.NewRandomConnectionID()
	require.NoError(t, err)
	return id
}

func TestSendFirstFlightForcesSixByteWidth(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewClientSession(testConnID(t), w, now)

	err := s.SendFirstFlight([]wire.Frame{&wire.PingFrame{}})
	require.NoError(t, err)
	assert.Equal(t, StateVersionNegotiating, s.State())
	require.Len(t, w.packets, 1)

	pkt, err := wire.DecodePublicHeader(w.packets[0], false)
	require.NoError(t, err)
	reg, ok := pkt.(*wire.RegularPacket)
	require.True(t, ok)
	assert.Equal(t, wire.PacketNumber(1), reg.PacketNumber)
	assert.Equal(t, wire.SupportedVersion, reg.Version)
	assert.Equal(t, byte(0x30), w.packets[0][0]&0x30, "packet number length bits select the 6-byte width")
}

func TestServerOpensOnSupportedVersion(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)

	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))
	assert.Equal(t, StateOpen, s.State())
	assert.Empty(t, w.packets)
}

func TestServerSendsNegotiationOnUnsupportedVersion(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)

	require.NoError(t, s.HandleFirstFlightAsServer(wire.Version("Q038")))
	assert.Equal(t, StateInitial, s.State())
	require.Len(t, w.packets, 1)

	pkt, err := wire.DecodePublicHeader(w.packets[0], true)
	require.NoError(t, err)
	neg, ok := pkt.(*wire.NegotiationPacket)
	require.True(t, ok)
	assert.Equal(t, wire.SupportedVersions, neg.Versions)
}

func TestHandleNegotiationPacketResendsPendingPackets(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewClientSession(testConnID(t), w, now)
	require.NoError(t, s.SendFirstFlight([]wire.Frame{&wire.PingFrame{}}))
	require.Len(t, w.packets, 1)

	err := s.HandleNegotiationPacket(&wire.NegotiationPacket{
		ConnectionID: s.ConnectionID,
		Versions:     []wire.Version{wire.SupportedVersion},
	})
	require.NoError(t, err)
	assert.Equal(t, wire.SupportedVersion, s.Version())
	assert.Len(t, w.packets, 2, "the pending first flight should have been resent")
}

func TestHandleNegotiationPacketWithNoOverlapDestroys(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewClientSession(testConnID(t), w, now)
	require.NoError(t, s.SendFirstFlight([]wire.Frame{&wire.PingFrame{}}))

	err := s.HandleNegotiationPacket(&wire.NegotiationPacket{
		ConnectionID: s.ConnectionID,
		Versions:     []wire.Version{"Q038"},
	})
	require.Error(t, err)
	assert.Equal(t, StateClosed, s.State())
}

func TestRecordReceivedMergesOutOfOrderRanges(t *testing.T) {
	now := time.Now()
	s := NewServerSession(testConnID(t), &captureWriter{}, now)

	assert.True(t, s.recordReceived(5))
	assert.True(t, s.recordReceived(3))
	assert.True(t, s.recordReceived(4))
	assert.False(t, s.recordReceived(4), "duplicate packet numbers are not new")

	require.Len(t, s.recvRanges, 1)
	assert.Equal(t, wire.PacketNumber(3), s.recvRanges[0].First)
	assert.Equal(t, wire.PacketNumber(5), s.recvRanges[0].Last)

	assert.True(t, s.recordReceived(10))
	require.Len(t, s.recvRanges, 2)
	assert.Equal(t, wire.PacketNumber(10), s.recvRanges[0].First)
	assert.Equal(t, wire.PacketNumber(10), s.recvRanges[0].Last)
}

func TestPendingAckBuildsFrameFromMergedRanges(t *testing.T) {
	now := time.Now()
	s := NewServerSession(testConnID(t), &captureWriter{}, now)
	s.recordReceived(1)
	s.recordReceived(2)
	s.ackPending = true

	ack := s.pendingAck(now.Add(5 * time.Millisecond))
	require.NotNil(t, ack)
	assert.Equal(t, wire.PacketNumber(2), ack.LargestAcked)
	assert.False(t, s.ackPending, "pendingAck clears the pending flag")

	assert.Nil(t, s.pendingAck(now), "a second call with nothing new returns nil")
}

func TestProcessAckRemovesCoveredAndRetransmitsGaps(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)

	ping := &wire.PingFrame{}
	s.unacked[1] = &sentPacket{sentTime: now, frames: []wire.Frame{ping}}
	s.unacked[2] = &sentPacket{sentTime: now, frames: []wire.Frame{ping}}
	s.unacked[3] = &sentPacket{sentTime: now, frames: []wire.Frame{ping}}

	ack := &wire.AckFrame{
		LargestAcked: 3,
		Ranges: []wire.AckRange{
			{First: 3, Last: 3},
			{First: 1, Last: 1},
		},
	}
	retransmit, err := s.ProcessAck(ack, now.Add(10*time.Millisecond))
	require.NoError(t, err)
	assert.Len(t, retransmit, 1, "packet 2 fell in the gap between the two acked ranges")
	_, stillUnacked := s.unacked[2]
	assert.False(t, stillUnacked)
	_, acked1 := s.unacked[1]
	assert.False(t, acked1)
	_, acked3 := s.unacked[3]
	assert.False(t, acked3)
}

func TestCheckTimersClosesOnHandshakeTimeout(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewClientSession(testConnID(t), w, now)
	require.NoError(t, s.SendFirstFlight([]wire.Frame{&wire.PingFrame{}}))

	s.CheckTimers(now.Add(defaultHandshakeTimeout + time.Second))
	assert.Equal(t, StateClosed, s.State())
}

func TestCheckTimersClosesOnIdleTimeout(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)
	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))

	s.CheckTimers(now.Add(s.idleTimeout + time.Second))
	assert.Equal(t, StateClosed, s.State())
}

func TestCheckTimersSendsKeepAlivePing(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)
	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))
	s.EnableKeepAlive()

	later := now.Add(keepAliveQuiescence + time.Second)
	s.CheckTimers(later)
	require.Len(t, w.packets, 1)

	pkt, err := wire.DecodePublicHeader(w.packets[0], true)
	require.NoError(t, err)
	reg := pkt.(*wire.RegularPacket)
	require.Len(t, reg.Frames, 1)
	_, isPing := reg.Frames[0].(*wire.PingFrame)
	assert.True(t, isPing)

	s.CheckTimers(later.Add(time.Millisecond))
	assert.Len(t, w.packets, 1, "only one keep-alive ping is sent per quiescent period")
}

func TestCloseSendsConnectionCloseAndDestroys(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)
	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))

	require.NoError(t, s.Close(quicerr.PeerGoingAway, "bye"))
	assert.Equal(t, StateClosed, s.State())
	require.Len(t, w.packets, 1)

	pkt, err := wire.DecodePublicHeader(w.packets[0], true)
	require.NoError(t, err)
	reg := pkt.(*wire.RegularPacket)
	cc, ok := reg.Frames[0].(*wire.ConnectionCloseFrame)
	require.True(t, ok)
	assert.Equal(t, quicerr.PeerGoingAway, cc.Code)

	require.NoError(t, s.Close(quicerr.PeerGoingAway, "bye again"), "Close is idempotent")
	assert.Len(t, w.packets, 1)
}

func TestResetSendsPRSTAndDestroys(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)
	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))

	require.NoError(t, s.Reset())
	assert.Equal(t, StateClosed, s.State())
	require.Len(t, w.packets, 1)

	pkt, err := wire.DecodePublicHeader(w.packets[0], true)
	require.NoError(t, err)
	_, ok := pkt.(*wire.ResetPacket)
	assert.True(t, ok)
}

func TestOnOpenFiresExactlyOnceOnServer(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)

	opens := 0
	s.Handlers.OnOpen = func() { opens++ }

	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))
	assert.Equal(t, 1, opens)

	s.markOpenAsClient()
	assert.Equal(t, 1, opens, "OnOpen does not fire again once already open")
}

func TestHandlePacketDispatchesStreamFrameAndFiresOnStream(t *testing.T) {
	now := time.Now()
	w := &captureWriter{}
	s := NewServerSession(testConnID(t), w, now)
	require.NoError(t, s.HandleFirstFlightAsServer(wire.SupportedVersion))

	var seen wire.StreamID
	s.Handlers.OnStream = func(st *quicstream.Stream) {
		seen = st.ID()
	}

	sid := wire.StreamID(3)
	frame := &wire.StreamFrame{StreamID: sid, Offset: 0, Data: []byte("hello"), LengthPresent: true}
	pkt := &wire.RegularPacket{ConnectionID: s.ConnectionID, PacketNumber: 1, MinPacketNumberWidth: 6, Frames: []wire.Frame{frame}}
	b := wire.NewBuffer(nil)
	require.NoError(t, pkt.EncodeTo(b))

	require.NoError(t, s.HandlePacket(b.Bytes(), false, now))
	assert.Equal(t, sid, seen)
}
