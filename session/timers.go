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
	"time"

	"github.com/facebook/gquic/flowcontrol"
	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/wire"
)

// keepAliveQuiescence is how long the connection must sit idle before a
// keep-alive PING is due.
const keepAliveQuiescence = 15 * time.Second

// CheckTimers runs the session's periodic checks against now: the
// handshake deadline, network idle timeout, keep-alive ping and
// retransmission timeout. It is called at roughly a 0.5-1s cadence by
// whichever goroutine owns the session: in quicnet, a server session's
// runSession actor or the client's tick loop.
func (s *Session) CheckTimers(now time.Time) {
	if s.closed {
		return
	}
	if s.checkHandshakeTimeout(now) {
		return
	}
	if s.checkIdleTimeout(now) {
		return
	}
	s.checkKeepAlive(now)
	s.checkRetransmitTimeout(now)
}

// minRTOInterval floors the retransmission timeout for connections that
// have not yet produced a meaningful smoothed RTT sample.
const minRTOInterval = 200 * time.Millisecond

// checkRetransmitTimeout resends any packet that has sat unacknowledged
// for longer than 2x the smoothed RTT. ACK-range gaps are caught as soon
// as a later packet is acked (ProcessAck), but a packet with nothing
// sent behind it - most commonly the final FIN - would otherwise have
// no later ACK to ever reveal its loss; this timeout is the backstop.
func (s *Session) checkRetransmitTimeout(now time.Time) {
	if s.state != StateOpen && s.state != StateShuttingDown {
		return
	}
	rto := 2 * s.rtt.Smoothed()
	if rto < minRTOInterval {
		rto = minRTOInterval
	}
	for pn, sp := range s.unacked {
		if now.Sub(sp.sentTime) < rto {
			continue
		}
		delete(s.unacked, pn)
		_ = s.SendFrames(sp.frames)
	}
}

// checkHandshakeTimeout closes the session with QUIC_HANDSHAKE_TIMEOUT if
// it is still negotiating past handshakeDeadline.
func (s *Session) checkHandshakeTimeout(now time.Time) bool {
	if s.handshakeComplete || s.state == StateClosed {
		return false
	}
	if now.Before(s.handshakeDeadline) {
		return false
	}
	_ = s.Close(quicerr.HandshakeTimeout, "handshake did not complete in time")
	s.fire(s.Handlers.OnTimeout)
	return true
}

// checkIdleTimeout ends the session once idleTimeout has elapsed since the
// last observed network activity. A client notifies its peer with
// CONNECTION_CLOSE; a server destroys silently, since sending a packet
// just to say goodbye would wake a mobile radio for no benefit to either
// side.
func (s *Session) checkIdleTimeout(now time.Time) bool {
	if now.Sub(s.lastNetworkActivity) < s.idleTimeout {
		return false
	}
	if s.Role == flowcontrol.RoleServer {
		s.destroy(quicerr.New(quicerr.NetworkIdleTimeout, "connection idle"))
	} else {
		_ = s.Close(quicerr.NetworkIdleTimeout, "connection idle")
	}
	s.fire(s.Handlers.OnTimeout)
	return true
}

// checkKeepAlive sends a single PING after keepAliveQuiescence of
// inactivity, once per quiescent period.
func (s *Session) checkKeepAlive(now time.Time) {
	if !s.keepAliveEnabled || s.state != StateOpen {
		return
	}
	if now.Sub(s.lastNetworkActivity) < keepAliveQuiescence {
		s.keepAlivePingSent = false
		return
	}
	if s.keepAlivePingSent {
		return
	}
	pn := s.nextPacketNumber
	if err := s.SendFrames([]wire.Frame{&wire.PingFrame{}}); err == nil {
		s.keepAlivePingSent = true
		// Date the ping by the timer's clock, so checkRetransmitTimeout,
		// which runs next against the same now, measures its age from now.
		if sp, ok := s.unacked[pn]; ok {
			sp.sentTime = now
		}
	}
}

// SweepDestroyedStreams drops streams that have finished and been torn
// down, so their memory does not linger on a long-lived session. It is
// meant to run on the same periodic cadence as CheckTimers.
func (s *Session) SweepDestroyedStreams() {
	for id, st := range s.streams {
		if st.IsDestroyed() {
			delete(s.streams, id)
		}
	}
}
