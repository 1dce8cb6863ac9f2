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

// Package quicnet binds the session state machine to a UDP socket: it
// demultiplexes inbound datagrams by connection id and drives each
// session from its own goroutine.
package quicnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/session"
	"github.com/facebook/gquic/wire"
)

// inboxSize bounds how many undelivered datagrams a session's actor
// goroutine may queue before the receive loop starts dropping for it.
const inboxSize = 64

// udpWriter adapts a shared UDP socket plus one peer address into a
// session.PacketWriter.
type udpWriter struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func (w *udpWriter) WritePacket(b []byte) error {
	_, err := w.conn.WriteToUDP(b, w.addr)
	return err
}

// serverSession pairs a Session with the actor goroutine's inbox and the
// peer address it was last seen at, so a PRST cannot be honored from a
// spoofed source.
type serverSession struct {
	sess     *session.Session
	peer     *net.UDPAddr
	inbox    chan []byte
	closeReq chan closeRequest
}

// closeRequest asks a session's actor goroutine to close the session on
// its own behalf, keeping sess mutation confined to that one goroutine.
type closeRequest struct {
	code   quicerr.Code
	reason string
}

// NewSessionFunc builds the Handlers a new server-side session should run
// with. It is called once per accepted connection, before the client's
// first flight is processed.
type NewSessionFunc func(*session.Session) session.Handlers

// Server accepts gQUIC connections on a single UDP socket.
type Server struct {
	Config   *ServerConfig
	Stats    Stats
	OnAccept NewSessionFunc

	conn *net.UDPConn

	mu       sync.RWMutex
	sessions map[uint64]*serverSession
}

// NewServer builds a Server from cfg, with Stats set to a fresh
// PrometheusStats that the caller may replace.
func NewServer(cfg *ServerConfig) *Server {
	return &Server{
		Config:   cfg,
		Stats:    NewPrometheusStats(),
		sessions: make(map[uint64]*serverSession),
	}
}

func connKey(id wire.ConnectionID) uint64 {
	return xxhash.Sum64(id[:])
}

// Listen binds the configured address and runs until ctx is canceled or a
// goroutine returns a fatal error, whichever comes first.
func (s *Server) Listen(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.Config.Addr)
	if err != nil {
		return fmt.Errorf("quicnet: resolving %q: %w", s.Config.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("quicnet: listening on %q: %w", s.Config.Addr, err)
	}
	s.conn = conn
	defer conn.Close()

	eg, ctx := errgroup.WithContext(ctx)

	workers := s.Config.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		eg.Go(func() error { return s.receiveLoop(ctx) })
	}
	eg.Go(func() error { return s.sweepLoop(ctx) })

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return eg.Wait()
}

func (s *Server) receiveLoop(ctx context.Context) error {
	buf := make([]byte, wire.MaxReceivePacketSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("quicnet: reading udp: %w", err)
			}
		}

		id, err := peekConnectionID(buf[:n])
		if err != nil {
			s.Stats.IncPacketsDropped()
			log.WithError(err).Debug("quicnet: dropping undecodable datagram")
			continue
		}
		s.Stats.IncPacketsReceived()

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		ss := s.lookupOrAccept(id, peer)
		if ss == nil {
			continue
		}
		if !ss.peer.IP.Equal(peer.IP) || ss.peer.Port != peer.Port {
			// A PRST or data frame from an address that never owned this
			// connection id is dropped rather than forwarded to the
			// session, matching the Reset handler's own connection-id-only
			// trust boundary with the missing source check filled in here.
			s.Stats.IncPacketsDropped()
			continue
		}

		select {
		case ss.inbox <- datagram:
		default:
			s.Stats.IncPacketsDropped()
			log.WithField("connection_id", id.String()).Warn("quicnet: session inbox full, dropping datagram")
		}
	}
}

func (s *Server) lookupOrAccept(id wire.ConnectionID, peer *net.UDPAddr) *serverSession {
	key := connKey(id)

	s.mu.RLock()
	ss, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return ss
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ss, ok := s.sessions[key]; ok {
		return ss
	}

	sess := session.NewServerSession(id, &udpWriter{conn: s.conn, addr: peer}, time.Now())
	sess.SetIdleTimeout(s.Config.IdleTimeout)
	if s.OnAccept != nil {
		sess.Handlers = s.OnAccept(sess)
	}

	ss = &serverSession{sess: sess, peer: peer, inbox: make(chan []byte, inboxSize), closeReq: make(chan closeRequest, 1)}
	s.sessions[key] = ss
	s.Stats.IncConnectionsOpened()

	go s.runSession(key, ss)
	return ss
}

// runSession is the actor goroutine owning one session: it is the only
// goroutine that ever calls into sess, so the session package itself
// needs no internal locking.
func (s *Server) runSession(key uint64, ss *serverSession) {
	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case datagram, ok := <-ss.inbox:
			if !ok {
				return
			}
			if err := ss.sess.HandlePacket(datagram, false, time.Now()); err != nil {
				log.WithFields(log.Fields{
					"connection_id": ss.sess.ConnectionID.String(),
					"error":         err,
				}).Debug("quicnet: dropping malformed datagram")
				s.Stats.IncPacketsDropped()
				continue
			}
			if err := ss.sess.FlushAck(time.Now()); err != nil {
				log.WithField("connection_id", ss.sess.ConnectionID.String()).WithError(err).Warn("quicnet: failed to flush ack")
			}
		case req := <-ss.closeReq:
			_ = ss.sess.Close(req.code, req.reason)
		case <-ticker.C:
			ss.sess.CheckTimers(time.Now())
			ss.sess.SweepDestroyedStreams()
		}

		if ss.sess.State() == session.StateClosed {
			s.retire(key, ss)
			return
		}
	}
}

// sweepLoop periodically republishes the server's open-connection gauge.
// Per-session timers and stream GC run on each session's own actor
// goroutine in runSession; this loop only aggregates across sessions.
func (s *Server) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Stats.SetOpenConnections(s.OpenConnections())
		}
	}
}

func (s *Server) retire(key uint64, ss *serverSession) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	s.Stats.IncConnectionsClosed()
	log.WithField("connection_id", ss.sess.ConnectionID.String()).Info("quicnet: session closed")
}

// CloseAll asks every tracked session's own actor goroutine to send
// CONNECTION_CLOSE and tear down, for a clean server shutdown. The
// request is queued on each session's closeReq channel rather than
// calling into sess directly, so sess state stays touched by exactly
// one goroutine - its runSession actor - at all times.
func (s *Server) CloseAll(code quicerr.Code, reason string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ss := range s.sessions {
		select {
		case ss.closeReq <- closeRequest{code: code, reason: reason}:
		default:
			// A close is already queued for this session; it will be
			// honored with whichever reason arrived first.
		}
	}
}

// OpenConnections reports how many sessions the server currently tracks.
func (s *Server) OpenConnections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// peekConnectionID extracts the mandatory connection id from a raw
// datagram without fully decoding the rest of the packet, so the receive
// loop can demux before handing the datagram to its owning session.
func peekConnectionID(buf []byte) (wire.ConnectionID, error) {
	c := wire.NewCursor(buf)
	if _, err := c.ReadByte(); err != nil {
		return wire.ConnectionID{}, fmt.Errorf("quicnet: reading public flag: %w", err)
	}
	return wire.DecodeConnectionID(c)
}
