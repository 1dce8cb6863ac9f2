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

package flowcontrol

import (
	"time"

	"github.com/facebook/gquic/quicerr"
)

// Role distinguishes the default window limits a Client and a Server
// apply - the client is expected to push far more data than it accepts
// acks for, so its limits are larger.
type Role int

// The two endpoint roles a controller can be configured for.
const (
	RoleClient Role = iota
	RoleServer
)

// Default initial window sizes and auto-tune ceilings, in bytes.
const (
	InitialWindowSize = 16 * 1024

	ServerStreamWindowLimit     = 1 << 20          // 1 MiB
	ServerConnectionWindowLimit = 3 * (1 << 20) / 2 // 1.5 MiB
	ClientStreamWindowLimit     = 6 << 20          // 6 MiB
	ClientConnectionWindowLimit = 15 << 20         // 15 MiB
)

func streamWindowLimit(role Role) uint64 {
	if role == RoleServer {
		return ServerStreamWindowLimit
	}
	return ClientStreamWindowLimit
}

func connectionWindowLimit(role Role) uint64 {
	if role == RoleServer {
		return ServerConnectionWindowLimit
	}
	return ClientConnectionWindowLimit
}

// base holds the accounting shared by ConnectionController and
// StreamController: granted send credit, granted receive credit, the
// current and limit receive window sizes, and the running byte counters
// the invariant in updateConsumedOffset/updateWrittenOffset/
// updateHighestReceived keeps mirrored between a stream and its
// connection.
type base struct {
	maxSendOffset             uint64
	maxReceiveOffset          uint64
	maxReceiveWindowSize      uint64
	maxReceiveWindowSizeLimit uint64
	writtenOffset             uint64
	consumedOffset            uint64
	highestReceivedOffset     uint64
	lastWindowUpdateAt        time.Time
}

func newBase(initialWindow, windowLimit uint64) base {
	now := time.Now()
	return base{
		maxSendOffset:             InitialWindowSize,
		maxReceiveOffset:          initialWindow,
		maxReceiveWindowSize:      initialWindow,
		maxReceiveWindowSizeLimit: windowLimit,
		lastWindowUpdateAt:        now,
	}
}

// updateMaxSendOffset grows the send credit when offset exceeds the
// current grant. It reports whether the credit actually grew, the signal
// a blocked writer waits on.
func (b *base) updateMaxSendOffset(offset uint64) bool {
	if offset <= b.maxSendOffset {
		return false
	}
	b.maxSendOffset = offset
	return true
}

// shouldUpdateWindow reports whether less than half the current receive
// window remains uncredited, the threshold at which a WINDOW_UPDATE
// should be sent.
func (b *base) shouldUpdateWindow() bool {
	return b.maxReceiveOffset-b.consumedOffset < b.maxReceiveWindowSize/2
}

// updateWindowOffset auto-tunes the receive window: if the previous
// update landed within the last two round trips and the window has not
// hit its limit, the window doubles (capped at the limit); either way
// maxReceiveOffset is recomputed from the (possibly new) window size.
func (b *base) updateWindowOffset(rtt time.Duration) {
	now := time.Now()
	if now.Sub(b.lastWindowUpdateAt) <= 2*rtt && b.maxReceiveWindowSize < b.maxReceiveWindowSizeLimit {
		b.maxReceiveWindowSize *= 2
		if b.maxReceiveWindowSize > b.maxReceiveWindowSizeLimit {
			b.maxReceiveWindowSize = b.maxReceiveWindowSizeLimit
		}
	}
	b.lastWindowUpdateAt = now
	b.maxReceiveOffset = b.consumedOffset + b.maxReceiveWindowSize
}

// isBlocked reports whether the peer has sent beyond the window we
// granted it - a fatal protocol violation, not a transient condition.
func (b *base) isBlocked() bool {
	return b.highestReceivedOffset > b.maxReceiveOffset
}

// willBlocked reports whether writing n additional bytes would exceed
// the credit the peer has granted us.
func (b *base) willBlocked(n uint64) bool {
	return b.writtenOffset+n > b.maxSendOffset
}

// ConnectionController is the streamId-0 flow controller every
// StreamController on a session mirrors its counters into.
type ConnectionController struct {
	base
	role Role
}

// NewConnectionController builds a connection-scope controller with the
// default window and limit for role.
func NewConnectionController(role Role) *ConnectionController {
	return &ConnectionController{
		base: newBase(InitialWindowSize, connectionWindowLimit(role)),
		role: role,
	}
}

// UpdateMaxSendOffset grows the connection's send credit.
func (c *ConnectionController) UpdateMaxSendOffset(offset uint64) bool {
	return c.updateMaxSendOffset(offset)
}

// ShouldUpdateWindow reports whether a connection-level WINDOW_UPDATE is due.
func (c *ConnectionController) ShouldUpdateWindow() bool {
	return c.shouldUpdateWindow()
}

// UpdateWindowOffset auto-tunes the connection's receive window.
func (c *ConnectionController) UpdateWindowOffset(rtt time.Duration) {
	c.updateWindowOffset(rtt)
}

// IsBlocked reports whether the peer overran the connection's receive window.
func (c *ConnectionController) IsBlocked() bool {
	return c.isBlocked()
}

// WillBlocked reports whether writing n more bytes would exceed the
// connection's send credit.
func (c *ConnectionController) WillBlocked(n uint64) bool {
	return c.willBlocked(n)
}

// MaxReceiveOffset returns the credit currently granted to the peer.
func (c *ConnectionController) MaxReceiveOffset() uint64 { return c.maxReceiveOffset }

// AvailableSendCredit returns the bytes still unwritten within the
// connection's granted send window.
func (c *ConnectionController) AvailableSendCredit() uint64 {
	return c.maxSendOffset - c.writtenOffset
}

// ConsumedOffset returns the bytes the application has read across every
// stream on the connection.
func (c *ConnectionController) ConsumedOffset() uint64 { return c.consumedOffset }

// WrittenOffset returns the bytes emitted across every stream on the
// connection.
func (c *ConnectionController) WrittenOffset() uint64 { return c.writtenOffset }

// StreamController is a per-stream flow controller that mirrors every
// counter update into its parent ConnectionController.
type StreamController struct {
	base
	conn *ConnectionController
}

// NewStreamController builds a stream-scope controller for role, backed
// by conn.
func NewStreamController(conn *ConnectionController, role Role) *StreamController {
	return &StreamController{
		base: newBase(InitialWindowSize, streamWindowLimit(role)),
		conn: conn,
	}
}

// UpdateMaxSendOffset grows the stream's send credit.
func (s *StreamController) UpdateMaxSendOffset(offset uint64) bool {
	return s.updateMaxSendOffset(offset)
}

// ShouldUpdateWindow reports whether this stream's receive window is due
// for a WINDOW_UPDATE.
func (s *StreamController) ShouldUpdateWindow() bool {
	return s.shouldUpdateWindow()
}

// UpdateWindowOffset auto-tunes the stream's receive window.
func (s *StreamController) UpdateWindowOffset(rtt time.Duration) {
	s.updateWindowOffset(rtt)
}

// IsBlocked reports whether the peer overran this stream's receive window.
func (s *StreamController) IsBlocked() bool {
	return s.isBlocked()
}

// WillBlocked reports whether writing n more bytes on this stream would
// exceed its send credit.
func (s *StreamController) WillBlocked(n uint64) bool {
	return s.willBlocked(n)
}

// MaxReceiveOffset returns the credit currently granted to the peer on
// this stream.
func (s *StreamController) MaxReceiveOffset() uint64 { return s.maxReceiveOffset }

// AvailableSendCredit returns the bytes this stream can still write
// without exceeding either its own send window or the connection's.
func (s *StreamController) AvailableSendCredit() uint64 {
	own := s.maxSendOffset - s.writtenOffset
	conn := s.conn.AvailableSendCredit()
	if conn < own {
		return conn
	}
	return own
}

// UpdateWrittenOffset sets the stream's cumulative written-byte count to
// newOffset and mirrors the delta into the connection controller.
func (s *StreamController) UpdateWrittenOffset(newOffset uint64) error {
	if newOffset < s.writtenOffset {
		return quicerr.New(quicerr.InternalError, "written offset moved backwards")
	}
	delta := newOffset - s.writtenOffset
	s.writtenOffset = newOffset
	s.conn.writtenOffset += delta
	return nil
}

// UpdateConsumedOffset sets the stream's cumulative consumed-byte count
// to newOffset and mirrors the delta into the connection controller.
func (s *StreamController) UpdateConsumedOffset(newOffset uint64) error {
	if newOffset < s.consumedOffset {
		return quicerr.New(quicerr.InternalError, "consumed offset moved backwards")
	}
	delta := newOffset - s.consumedOffset
	s.consumedOffset = newOffset
	s.conn.consumedOffset += delta
	return nil
}

// UpdateHighestReceived raises the stream's highest-seen offset to
// newOffset and mirrors the delta into the connection controller. A
// newOffset at or below the current value (a frame that arrived out of
// order) leaves both unchanged. It returns a flow-control error if the
// new value overruns the window granted to the peer.
func (s *StreamController) UpdateHighestReceived(newOffset uint64) error {
	if newOffset <= s.highestReceivedOffset {
		return nil
	}
	delta := newOffset - s.highestReceivedOffset
	s.highestReceivedOffset = newOffset
	s.conn.highestReceivedOffset += delta
	if s.isBlocked() || s.conn.isBlocked() {
		return quicerr.New(quicerr.FlowControlReceivedTooMuchData, "stream exceeded its receive window")
	}
	return nil
}
