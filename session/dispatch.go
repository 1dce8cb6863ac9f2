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
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/exp/slices"

	"github.com/facebook/gquic/flowcontrol"
	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/quicstream"
	"github.com/facebook/gquic/wire"
)

func newResetNonce() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// sendWithVersion assigns the next packet number, building a Regular
// packet from frames. The very first packet a session ever sends must
// use the 6-byte packet number width regardless of how small packet
// number 1 encodes, so the peer can establish framing width up front;
// withVersion controls whether the client's version flag is set.
func (s *Session) sendWithVersion(frames []wire.Frame, withVersion bool) error {
	pn := s.nextPacketNumber
	s.nextPacketNumber++

	p := &wire.RegularPacket{
		ConnectionID: s.ConnectionID,
		PacketNumber: pn,
		Frames:       frames,
	}
	if pn == 1 {
		p.MinPacketNumberWidth = 6
	}
	if withVersion {
		p.Version = s.version
	}

	b := wire.NewBuffer(nil)
	if err := p.EncodeTo(b); err != nil {
		return fmt.Errorf("session: encoding packet %d: %w", pn, err)
	}
	if err := s.writer.WritePacket(b.Bytes()); err != nil {
		return fmt.Errorf("session: writing packet %d: %w", pn, err)
	}

	s.unacked[pn] = &sentPacket{sentTime: timeNow(), frames: frames}
	return nil
}

// SendFrames is the ordinary data-plane send path: pack frames into one
// Regular packet under the session's negotiated version.
func (s *Session) SendFrames(frames []wire.Frame) error {
	if s.closed {
		return fmt.Errorf("session: SendFrames called on a closed session")
	}
	return s.sendWithVersion(frames, false)
}

// timeNow is overridable in tests; production code always calls it with
// the caller-supplied now via the timer/dispatch entry points, but a few
// internal call sites (send bookkeeping) need "the current instant"
// without threading it through every signature.
var timeNow = time.Now

// OpenStream allocates the next locally-initiated stream id for the
// session's role and registers a Stream for it.
func (s *Session) OpenStream() *quicstream.Stream {
	if s.Role == flowcontrol.RoleClient {
		s.nextStreamID = wire.NextClientStreamID(s.nextStreamID)
	} else {
		s.nextStreamID = wire.NextServerStreamID(s.nextStreamID)
	}
	sc := flowcontrol.NewStreamController(s.conn, s.Role)
	st := quicstream.New(s.nextStreamID, sc)
	s.streams[s.nextStreamID] = st
	return st
}

// maxStreamFramePayload bounds how many bytes of a stream's outgoing
// buffer FlushStream packs into a single STREAM frame, leaving room for
// the packet's public header and the frame's own header fields.
const maxStreamFramePayload = 1200

// FlushStream drains st's pending outgoing bytes into STREAM frames and
// sends each as its own packet, until nothing is left to pop.
func (s *Session) FlushStream(st *quicstream.Stream) error {
	for {
		frame, _ := st.PopFrame(maxStreamFramePayload)
		if frame == nil {
			return nil
		}
		if err := s.SendFrames([]wire.Frame{frame}); err != nil {
			return err
		}
	}
}

// HandlePacket decodes and dispatches one inbound datagram. fromServer
// must report whether buf arrived from the peer acting in the server
// role, disambiguating Negotiation packets from a client's first flight.
func (s *Session) HandlePacket(buf []byte, fromServer bool, now time.Time) error {
	s.lastNetworkActivity = now

	if len(buf) > wire.MaxReceivePacketSize {
		buf = buf[:wire.MaxReceivePacketSize]
	}

	pkt, err := wire.DecodePublicHeader(buf, fromServer)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	switch p := pkt.(type) {
	case *wire.ResetPacket:
		return s.handleResetPacket(p)
	case *wire.NegotiationPacket:
		return s.HandleNegotiationPacket(p)
	case *wire.RegularPacket:
		return s.handleRegularPacket(p, now)
	default:
		return fmt.Errorf("session: unrecognized decoded packet type %T", pkt)
	}
}

// handleResetPacket accepts a Public Reset from the peer and destroys
// the session, unless the connection id does not match - a spoofed or
// stale PRST, which the caller's transport layer is expected to have
// already filtered by source address; the session itself only checks
// the connection id.
func (s *Session) handleResetPacket(p *wire.ResetPacket) error {
	if p.ConnectionID != s.ConnectionID {
		return fmt.Errorf("session: PRST connection id mismatch")
	}
	s.destroy(quicerr.New(quicerr.PublicReset, ""))
	return nil
}

func (s *Session) handleRegularPacket(p *wire.RegularPacket, now time.Time) error {
	if s.Role == flowcontrol.RoleServer && s.state == StateInitial {
		if err := s.HandleFirstFlightAsServer(p.Version); err != nil {
			return err
		}
	} else if s.Role == flowcontrol.RoleClient {
		s.markOpenAsClient()
	}

	isNew := s.recordReceived(p.PacketNumber)
	if !isNew {
		return nil
	}
	s.ackPending = true

	for _, f := range p.Frames {
		if err := s.dispatchFrame(f, now); err != nil {
			return err
		}
	}
	return nil
}

// dispatchFrame routes one decoded frame to its handler.
func (s *Session) dispatchFrame(f wire.Frame, now time.Time) error {
	switch fr := f.(type) {
	case *wire.StreamFrame:
		return s.handleStreamFrame(fr)
	case *wire.AckFrame:
		retransmit, err := s.ProcessAck(fr, now)
		if err != nil {
			return err
		}
		if len(retransmit) > 0 {
			return s.SendFrames(retransmit)
		}
		return nil
	case *wire.StopWaitingFrame:
		s.leastUnacked = fr.LeastUnacked
		return nil
	case *wire.WindowUpdateFrame:
		return s.handleWindowUpdate(fr)
	case *wire.BlockedFrame:
		// Informational only: the peer has data queued but no credit.
		// No action is required of the receiving side.
		return nil
	case *wire.CongestionFeedbackFrame:
		return nil
	case *wire.PaddingFrame:
		return nil
	case *wire.RstStreamFrame:
		return s.handleRstStreamFrame(fr)
	case *wire.PingFrame:
		s.fire(s.Handlers.OnPing)
		return nil
	case *wire.ConnectionCloseFrame:
		s.destroy(quicerr.New(fr.Code, fr.Reason))
		return nil
	case *wire.GoAwayFrame:
		s.GoAway()
		return nil
	default:
		return fmt.Errorf("session: unhandled frame type %T", f)
	}
}

func (s *Session) handleStreamFrame(fr *wire.StreamFrame) error {
	st, ok := s.streams[fr.StreamID]
	if !ok {
		if s.shuttingDown {
			// A GOAWAY has already been sent or received: no new stream
			// is accepted, but frames for streams opened before that
			// point still flow through the ok branch above.
			return nil
		}
		st = s.acceptStream(fr.StreamID)
	}
	wantsWindowUpdate, err := st.HandleStreamFrame(uint64(fr.Offset), fr.Data, fr.Fin)
	if err != nil {
		return err
	}
	if wantsWindowUpdate {
		st.UpdateWindowOffset(s.rtt.Smoothed())
		if err := s.SendFrames([]wire.Frame{&wire.WindowUpdateFrame{
			StreamID:   fr.StreamID,
			ByteOffset: wire.Offset(st.MaxReceiveOffset()),
		}}); err != nil {
			return err
		}
	}
	// The connection-level window (stream id 0) is credited independently
	// of any one stream's: it bounds the aggregate of every stream's
	// receive traffic, mirrored into s.conn by StreamController's own
	// accounting calls.
	if s.conn.ShouldUpdateWindow() {
		s.conn.UpdateWindowOffset(s.rtt.Smoothed())
		if err := s.SendFrames([]wire.Frame{&wire.WindowUpdateFrame{
			StreamID:   0,
			ByteOffset: wire.Offset(s.conn.MaxReceiveOffset()),
		}}); err != nil {
			return err
		}
	}
	return nil
}

// acceptStream registers a peer-initiated stream the session has not
// seen a frame for yet and fires the stream handler.
func (s *Session) acceptStream(id wire.StreamID) *quicstream.Stream {
	sc := flowcontrol.NewStreamController(s.conn, s.Role)
	st := quicstream.New(id, sc)
	s.streams[id] = st
	if s.Handlers.OnStream != nil {
		s.Handlers.OnStream(st)
	}
	return st
}

func (s *Session) handleRstStreamFrame(fr *wire.RstStreamFrame) error {
	st, ok := s.streams[fr.StreamID]
	if !ok {
		st = s.acceptStream(fr.StreamID)
	}
	ack, destroy := st.HandleRstStream(fr.Code, uint64(fr.Offset))
	if ack != nil {
		if err := s.SendFrames([]wire.Frame{ack}); err != nil {
			return err
		}
	}
	if destroy {
		delete(s.streams, fr.StreamID)
	}
	return nil
}

func (s *Session) handleWindowUpdate(fr *wire.WindowUpdateFrame) error {
	if fr.StreamID == 0 {
		s.conn.UpdateMaxSendOffset(uint64(fr.ByteOffset))
		return nil
	}
	st, ok := s.streams[fr.StreamID]
	if !ok {
		return nil
	}
	return st.UpdateMaxSendOffset(uint64(fr.ByteOffset))
}

// recordReceived merges pn into the session's descending, non-overlapping
// set of received-packet ranges, returning false if pn was already seen
// (a retransmitted or duplicated packet that must not be double-counted).
func (s *Session) recordReceived(pn wire.PacketNumber) bool {
	for _, r := range s.recvRanges {
		if pn >= r.First && pn <= r.Last {
			return false
		}
	}
	if pn > s.largestReceived || s.largestReceived == 0 {
		s.largestReceived = pn
		s.largestReceivedAt = timeNow()
	}

	all := append(s.recvRanges, wire.AckRange{First: pn, Last: pn})
	slices.SortFunc(all, func(a, b wire.AckRange) bool {
		return a.First > b.First
	})

	merged := all[:0]
	for _, r := range all {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if uint64(r.Last)+1 >= uint64(last.First) {
				if r.First < last.First {
					last.First = r.First
				}
				continue
			}
		}
		merged = append(merged, r)
	}
	s.recvRanges = merged
	return true
}

// HasReceived reports whether pn falls within an already-recorded range.
func (s *Session) HasReceived(pn wire.PacketNumber) bool {
	for _, r := range s.recvRanges {
		if pn >= r.First && pn <= r.Last {
			return true
		}
	}
	return false
}

// pendingAck builds the outgoing ACK frame for everything recordReceived
// has accumulated, or nil if there is nothing new to acknowledge.
func (s *Session) pendingAck(now time.Time) *wire.AckFrame {
	if !s.ackPending || len(s.recvRanges) == 0 {
		return nil
	}
	delay := now.Sub(s.largestReceivedAt)
	if delay < 0 {
		delay = 0
	}
	ranges := append([]wire.AckRange(nil), s.recvRanges...)
	frame := &wire.AckFrame{
		LargestAcked: s.largestReceived,
		DelayTime:    wire.WriteUFloat16(uint64(delay / time.Microsecond)),
		Ranges:       ranges,
	}
	s.ackPending = false
	return frame
}

// FlushAck sends an ACK frame if one is due.
func (s *Session) FlushAck(now time.Time) error {
	ack := s.pendingAck(now)
	if ack == nil {
		return nil
	}
	return s.SendFrames([]wire.Frame{ack})
}

// ProcessAck feeds round-trip samples for newly-acknowledged packets
// into the RTT estimator and returns the frames of packets below the
// ACK's largest-acked that are not covered by any of its ranges - these
// are presumed lost and due for retransmission.
func (s *Session) ProcessAck(ack *wire.AckFrame, now time.Time) ([]wire.Frame, error) {
	delay := time.Duration(wire.ReadUFloat16(ack.DelayTime)) * time.Microsecond

	var retransmit []wire.Frame
	for pn, sp := range s.unacked {
		if pn > ack.LargestAcked {
			continue
		}
		if ackCovers(ack, pn) {
			s.rtt.Update(sp.sentTime, now, delay)
			delete(s.unacked, pn)
			continue
		}
		retransmit = append(retransmit, sp.frames...)
		delete(s.unacked, pn)
	}
	return retransmit, nil
}

func ackCovers(ack *wire.AckFrame, pn wire.PacketNumber) bool {
	if len(ack.Ranges) == 0 {
		return pn == ack.LargestAcked
	}
	for _, r := range ack.Ranges {
		if pn >= r.First && pn <= r.Last {
			return true
		}
	}
	return false
}

