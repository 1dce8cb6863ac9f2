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
	"fmt"
	"time"

	"github.com/facebook/gquic/flowcontrol"
	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/quicstream"
	"github.com/facebook/gquic/rtt"
	"github.com/facebook/gquic/wire"
)

// State is a position in the per-session state machine described by
// SPEC_FULL.md's Session component.
type State int

// The session states, in the order a connection normally passes
// through them. Closed is terminal.
const (
	StateInitial State = iota
	StateVersionNegotiating
	StateOpen
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateVersionNegotiating:
		return "version-negotiating"
	case StateOpen:
		return "open"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PacketWriter sends one already-encoded datagram to the session's peer.
type PacketWriter interface {
	WritePacket(b []byte) error
}

// Handlers are the session's event callbacks. Any left nil are simply
// not invoked.
type Handlers struct {
	OnStream  func(*quicstream.Stream)
	OnPing    func()
	OnTimeout func()
	OnGoAway  func()
	OnError   func(error)
	OnClose   func()
	OnVersion func(wire.Version)
	// OnOpen fires once, the moment the session reaches StateOpen.
	OnOpen func()
}

type sentPacket struct {
	sentTime time.Time
	frames   []wire.Frame
}

// Session drives one gQUIC connection: version negotiation, frame
// dispatch, stream lifecycle, ACK tracking and the timers that close it.
type Session struct {
	ConnectionID wire.ConnectionID
	Role         flowcontrol.Role
	Handlers     Handlers

	writer PacketWriter

	state             State
	version           wire.Version
	versionNegotiated bool

	conn         *flowcontrol.ConnectionController
	streams      map[wire.StreamID]*quicstream.Stream
	nextStreamID wire.StreamID

	rtt *rtt.Estimator

	nextPacketNumber wire.PacketNumber
	unacked          map[wire.PacketNumber]*sentPacket

	recvRanges        []wire.AckRange
	largestReceived   wire.PacketNumber
	largestReceivedAt time.Time
	leastUnacked      wire.PacketNumber
	ackPending        bool

	idleTimeout         time.Duration
	lastNetworkActivity time.Time
	keepAliveEnabled    bool
	keepAlivePingSent   bool

	handshakeComplete bool
	handshakeDeadline time.Time

	shuttingDown bool
	closed       bool
}

// defaultIdleTimeout is used when a caller does not specify one.
const defaultIdleTimeout = 30 * time.Second

// defaultHandshakeTimeout bounds how long a session may sit in Initial
// or VersionNegotiating before closing, per spec.md's Handshake timer.
const defaultHandshakeTimeout = 10 * time.Second

func newSession(id wire.ConnectionID, role flowcontrol.Role, writer PacketWriter, now time.Time) *Session {
	return &Session{
		ConnectionID:        id,
		Role:                role,
		writer:              writer,
		state:               StateInitial,
		conn:                flowcontrol.NewConnectionController(role),
		streams:             make(map[wire.StreamID]*quicstream.Stream),
		rtt:                 rtt.New(),
		nextPacketNumber:    1,
		unacked:             make(map[wire.PacketNumber]*sentPacket),
		idleTimeout:         defaultIdleTimeout,
		lastNetworkActivity: now,
		handshakeDeadline:   now.Add(defaultHandshakeTimeout),
	}
}

// NewClientSession builds a session in Initial state that will send the
// first flight. id is the client's randomly chosen connection id.
func NewClientSession(id wire.ConnectionID, writer PacketWriter, now time.Time) *Session {
	s := newSession(id, flowcontrol.RoleClient, writer, now)
	s.version = wire.SupportedVersion
	return s
}

// NewServerSession builds a session for a newly observed connection id,
// still awaiting the client's offered version.
func NewServerSession(id wire.ConnectionID, writer PacketWriter, now time.Time) *Session {
	return newSession(id, flowcontrol.RoleServer, writer, now)
}

// State returns the session's current state machine position.
func (s *Session) State() State { return s.state }

// Version returns the negotiated (or, pre-negotiation, offered) version.
func (s *Session) Version() wire.Version { return s.version }

// SetIdleTimeout overrides the default idle timeout.
func (s *Session) SetIdleTimeout(d time.Duration) { s.idleTimeout = d }

// EnableKeepAlive turns on the 15s-quiescence PING described by the
// Ping timer.
func (s *Session) EnableKeepAlive() { s.keepAliveEnabled = true }

// SmoothedRTT returns the session's current smoothed round-trip estimate.
func (s *Session) SmoothedRTT() time.Duration { return s.rtt.Smoothed() }

func (s *Session) fire(f func()) {
	if f != nil {
		f()
	}
}

// --- State machine transitions -------------------------------------------

// SendFirstFlight emits the client's first Regular packet carrying the
// version flag, moving the session into VersionNegotiating.
func (s *Session) SendFirstFlight(frames []wire.Frame) error {
	if s.Role != flowcontrol.RoleClient || s.state != StateInitial {
		return fmt.Errorf("session: SendFirstFlight called outside client Initial state")
	}
	s.state = StateVersionNegotiating
	return s.sendWithVersion(frames, true)
}

// HandleNegotiationPacket processes a server's version-negotiation
// reply: it picks the best overlapping version, discards unacked
// packets (they were all sent under the rejected version) and resends
// them under the new one.
func (s *Session) HandleNegotiationPacket(p *wire.NegotiationPacket) error {
	if s.Role != flowcontrol.RoleClient {
		return fmt.Errorf("session: unexpected negotiation packet on server session")
	}
	chosen := wire.ChooseVersion(p.Versions)
	if chosen == "" {
		s.destroy(quicerr.New(quicerr.InvalidVersion, "no overlapping version"))
		return quicerr.New(quicerr.InvalidVersion, "no overlapping version")
	}
	s.version = chosen
	if s.Handlers.OnVersion != nil {
		s.Handlers.OnVersion(chosen)
	}

	pending := s.unacked
	s.unacked = make(map[wire.PacketNumber]*sentPacket)
	for _, sp := range pending {
		if err := s.sendWithVersion(sp.frames, true); err != nil {
			return err
		}
	}
	return nil
}

// HandleFirstFlightAsServer inspects the client's offered version. If
// unsupported it replies with a Negotiation packet and stays Initial;
// otherwise it adopts the version and opens.
func (s *Session) HandleFirstFlightAsServer(offered wire.Version) error {
	if s.Role != flowcontrol.RoleServer {
		return fmt.Errorf("session: HandleFirstFlightAsServer called on a client session")
	}
	if !wire.IsSupportedVersion(offered) {
		neg := &wire.NegotiationPacket{ConnectionID: s.ConnectionID, Versions: wire.SupportedVersions}
		b := wire.NewBuffer(nil)
		if err := neg.EncodeTo(b); err != nil {
			return err
		}
		return s.writer.WritePacket(b.Bytes())
	}
	s.version = offered
	s.versionNegotiated = true
	s.state = StateOpen
	s.handshakeComplete = true
	s.fire(s.Handlers.OnOpen)
	return nil
}

// markOpenAsClient transitions a client session to Open on receipt of
// the server's first Regular reply, confirming the offered version.
func (s *Session) markOpenAsClient() {
	if s.state != StateOpen {
		s.versionNegotiated = true
		s.state = StateOpen
		s.handshakeComplete = true
		s.fire(s.Handlers.OnOpen)
	}
}

// GoAway marks the session ShuttingDown, whether triggered locally (by
// sending a GOAWAY frame) or by receiving one.
func (s *Session) GoAway() {
	if s.state != StateClosed {
		s.state = StateShuttingDown
		s.shuttingDown = true
		s.fire(s.Handlers.OnGoAway)
	}
}

// Destroy is the idempotent teardown every terminal path funnels
// through: destroy every stream, mark Closed, fire 'close'.
func (s *Session) Destroy() {
	s.destroy(nil)
}

func (s *Session) destroy(_ *quicerr.Error) {
	if s.closed {
		return
	}
	s.closed = true
	s.state = StateClosed
	for _, st := range s.streams {
		st.Destroy()
	}
	s.fire(s.Handlers.OnClose)
}

// Close sends CONNECTION_CLOSE(err) and then destroys the session. A
// second call on an already-closed session is a no-op.
func (s *Session) Close(code quicerr.Code, reason string) error {
	if s.closed {
		return nil
	}
	frame := &wire.ConnectionCloseFrame{Code: code, Reason: reason}
	err := s.sendWithVersion([]wire.Frame{frame}, false)
	s.destroy(quicerr.New(code, reason))
	return err
}

// Reset sends a PublicReset (PRST) tag and destroys the session, the
// path used when the session has no valid state left to close cleanly.
// A second call on an already-closed session is a no-op.
func (s *Session) Reset() error {
	if s.closed {
		return nil
	}
	p := &wire.ResetPacket{
		ConnectionID: s.ConnectionID,
		Nonce:        newResetNonce(),
	}
	seq := s.leastUnacked
	p.RejectedSeq = &seq
	b := wire.NewBuffer(nil)
	if err := p.EncodeTo(b); err != nil {
		return err
	}
	err := s.writer.WritePacket(b.Bytes())
	s.destroy(quicerr.New(quicerr.PublicReset, ""))
	return err
}
