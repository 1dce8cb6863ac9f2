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

package quicstream

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebook/gquic/flowcontrol"
	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/sequencer"
	"github.com/facebook/gquic/wire"
)

// Stream is a single bidirectional byte channel multiplexed over a
// session. The write side buffers application bytes and hands them out
// as STREAM frames through PopFrame as send credit and packet space
// allow; the read side feeds incoming frames through a sequencer and
// wakes blocked Read calls as bytes become contiguous.
type Stream struct {
	mu       sync.Mutex
	readCond *sync.Cond

	id   wire.StreamID
	flow *flowcontrol.StreamController
	seq  *sequencer.Sequencer

	outBuf     []byte
	sentOffset uint64
	localFIN   bool
	finSent    bool
	localClosed bool

	readBuf   []byte
	remoteFIN bool
	remoteErr *quicerr.StreamError
	destroyed bool
}

// New returns a fresh stream identified by id, backed by flow for
// send/receive credit accounting.
func New(id wire.StreamID, flow *flowcontrol.StreamController) *Stream {
	s := &Stream{
		id:   id,
		flow: flow,
		seq:  sequencer.New(),
	}
	s.readCond = sync.NewCond(&s.mu)
	return s
}

// ID returns the stream's identifier.
func (s *Stream) ID() wire.StreamID { return s.id }

// MaxReceiveOffset returns the receive credit currently granted to the
// peer on this stream, the value a WINDOW_UPDATE advertises.
func (s *Stream) MaxReceiveOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow.MaxReceiveOffset()
}

// UpdateWindowOffset auto-tunes the stream's receive window against rtt
// and advances MaxReceiveOffset past whatever has since been consumed.
// The caller is expected to call this immediately before sending a
// WINDOW_UPDATE, once HandleStreamFrame has reported one is due.
func (s *Stream) UpdateWindowOffset(rtt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow.UpdateWindowOffset(rtt)
}

// UpdateMaxSendOffset grows the stream's send credit in response to an
// inbound WINDOW_UPDATE. Write never blocks on credit, so there is no
// writer to wake; the next PopFrame emits against the new credit.
func (s *Stream) UpdateMaxSendOffset(offset uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow.UpdateMaxSendOffset(offset)
	return nil
}

// Write appends p to the outgoing chunk queue. It does not block on
// send credit; PopFrame paces emission against the peer's window.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localFIN || s.localClosed {
		return 0, quicerr.NewStream(quicerr.StreamRstAcknowledgement, s.sentOffset)
	}
	s.outBuf = append(s.outBuf, p...)
	return len(p), nil
}

// End marks the stream half-closed: once the outgoing queue drains, the
// next frame PopFrame emits carries FIN.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localFIN = true
}

// WillBlock reports whether there is outgoing data but no send credit
// to emit any of it, the condition under which a BLOCKED frame is due.
func (s *Stream) WillBlock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outBuf) > 0 && s.flow.AvailableSendCredit() == 0
}

// PopFrame drains up to maxPayload bytes of outgoing data into a STREAM
// frame, bounded by the peer's granted send credit. It returns (nil,
// true) when data is pending but credit is exhausted, and (nil, false)
// when there is nothing left to send.
func (s *Stream) PopFrame(maxPayload int) (*wire.StreamFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.localClosed {
		return nil, false
	}

	if len(s.outBuf) == 0 {
		if s.localFIN && !s.finSent {
			s.finSent = true
			return &wire.StreamFrame{
				StreamID:      s.id,
				Offset:        wire.Offset(s.sentOffset),
				Fin:           true,
				LengthPresent: true,
			}, false
		}
		return nil, false
	}

	credit := s.flow.AvailableSendCredit()
	if credit == 0 {
		return nil, true
	}

	n := len(s.outBuf)
	if uint64(n) > credit {
		n = int(credit)
	}
	if maxPayload > 0 && n > maxPayload {
		n = maxPayload
	}
	if n == 0 {
		return nil, true
	}

	data := make([]byte, n)
	copy(data, s.outBuf[:n])
	s.outBuf = s.outBuf[n:]

	fin := s.localFIN && len(s.outBuf) == 0
	if fin {
		s.finSent = true
	}

	frame := &wire.StreamFrame{
		StreamID:      s.id,
		Offset:        wire.Offset(s.sentOffset),
		Fin:           fin,
		Data:          data,
		LengthPresent: true,
	}
	s.sentOffset += uint64(n)
	if err := s.flow.UpdateWrittenOffset(s.sentOffset); err != nil {
		panic(fmt.Sprintf("quicstream: sentOffset moved backwards: %v", err))
	}
	return frame, false
}

// Close aborts the stream locally, returning the RST_STREAM frame that
// reports code at the current write offset. A second call is a no-op.
func (s *Stream) Close(code quicerr.StreamCode) *wire.RstStreamFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localClosed {
		return nil
	}
	s.localClosed = true
	s.outBuf = nil
	return &wire.RstStreamFrame{
		StreamID: s.id,
		Offset:   wire.Offset(s.sentOffset),
		Code:     code,
	}
}

// HandleStreamFrame processes an inbound STREAM frame: it updates flow
// control, feeds the payload to the sequencer, and drains whatever
// becomes contiguous to blocked readers. It returns whether a
// WINDOW_UPDATE is now due.
func (s *Stream) HandleStreamFrame(offset uint64, data []byte, fin bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false, nil
	}

	end := offset + uint64(len(data))
	if err := s.flow.UpdateHighestReceived(end); err != nil {
		return false, err
	}

	if fin {
		s.remoteFIN = true
		s.seq.SetFinalOffset(end)
	}
	if len(data) > 0 {
		if err := s.seq.Push(offset, data); err != nil {
			return false, err
		}
	}

	drained := false
	for {
		b := s.seq.Read()
		if b == nil {
			break
		}
		s.readBuf = append(s.readBuf, b...)
		drained = true
	}
	if drained {
		if err := s.flow.UpdateConsumedOffset(s.seq.ConsumedOffset()); err != nil {
			return false, err
		}
	}
	if drained || s.seq.IsFIN() {
		s.readCond.Broadcast()
	}
	return s.flow.ShouldUpdateWindow(), nil
}

// HandleRstStream processes an inbound RST_STREAM: it records the
// stream's final offset and the error the peer reported, wakes blocked
// readers, and reports whether the local side must still send its own
// RST_STREAM(QUIC_RST_ACKNOWLEDGEMENT) acknowledgement, or whether the
// stream is already done on both sides and can be destroyed.
func (s *Stream) HandleRstStream(code quicerr.StreamCode, offset uint64) (ack *wire.RstStreamFrame, destroy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remoteFIN = true
	s.seq.SetFinalOffset(offset)
	s.remoteErr = quicerr.NewStream(code, offset)
	s.readCond.Broadcast()

	if s.localFIN && s.finSent {
		s.destroyed = true
		return nil, true
	}
	return &wire.RstStreamFrame{
		StreamID: s.id,
		Offset:   wire.Offset(s.sentOffset),
		Code:     quicerr.StreamRstAcknowledgement,
	}, false
}

// Read blocks until reassembled bytes are available, the stream has
// been FINed with nothing left to read (io.EOF), or the remote side
// reset the stream (the reported *quicerr.StreamError).
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	for len(s.readBuf) == 0 {
		if s.remoteErr != nil {
			s.mu.Unlock()
			return 0, s.remoteErr
		}
		if s.seq.IsFIN() || s.destroyed {
			s.mu.Unlock()
			return 0, io.EOF
		}
		s.readCond.Wait()
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	s.mu.Unlock()
	return n, nil
}

// Destroy clears both the read and write sides and wakes any blocked
// reader, as when both sides of the stream have FINed or been reset.
func (s *Stream) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.seq.Reset()
	s.outBuf = nil
	s.readBuf = nil
	s.readCond.Broadcast()
}

// IsDestroyed reports whether Destroy has been called.
func (s *Stream) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
