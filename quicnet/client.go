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

package quicnet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/gquic/session"
	"github.com/facebook/gquic/wire"
)

// reuseControl sets SO_REUSEADDR and SO_REUSEPORT on the client's shared
// socket before bind, so many short-lived Client instances (as
// cmd/gquicping spawns per invocation) can coexist on the same local
// port without EADDRINUSE.
func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("setting SO_REUSEADDR: %w", err)
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			sockErr = fmt.Errorf("setting SO_REUSEPORT: %w", err)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Client drives one or more gQUIC sessions multiplexed over a single
// shared UDP socket, the mirror image of Server's demux table.
type Client struct {
	conn net.PacketConn

	mu       sync.Mutex
	sessions map[uint64]*session.Session
}

// Dial opens the shared socket a Client's sessions will multiplex over.
// localAddr may be empty to let the kernel pick an ephemeral port.
func Dial(ctx context.Context, localAddr string) (*Client, error) {
	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(ctx, "udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("quicnet: opening client socket: %w", err)
	}
	c := &Client{conn: pc, sessions: make(map[uint64]*session.Session)}
	return c, nil
}

// Close releases the client's socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Connect starts a new session to remoteAddr, sending the first flight
// immediately with the given frames (typically just a PING, or a STREAM
// frame opening a request).
func (c *Client) Connect(remoteAddr string, handlers session.Handlers, firstFlight []wire.Frame) (*session.Session, error) {
	addr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("quicnet: resolving %q: %w", remoteAddr, err)
	}
	id, err := wire.NewRandomConnectionID()
	if err != nil {
		return nil, err
	}

	sess := session.NewClientSession(id, &clientWriter{conn: c.conn, addr: addr}, time.Now())
	sess.Handlers = handlers

	c.mu.Lock()
	c.sessions[connKey(id)] = sess
	c.mu.Unlock()

	if err := sess.SendFirstFlight(firstFlight); err != nil {
		return nil, err
	}
	return sess, nil
}

// Run drives every session registered with the client: it reads
// datagrams off the shared socket, dispatches them by connection id, and
// runs each session's timers on tickInterval until ctx is canceled.
func (c *Client) Run(ctx context.Context, tickInterval time.Duration) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = c.Close()
		close(done)
	}()

	buf := make([]byte, wire.MaxReceivePacketSize)
	for {
		select {
		case <-done:
			return nil
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(tickInterval)); err != nil {
			return fmt.Errorf("quicnet: setting read deadline: %w", err)
		}
		n, _, err := c.conn.ReadFrom(buf)
		if err == nil {
			c.dispatch(buf[:n])
		} else if !isTimeout(err) {
			select {
			case <-done:
				return nil
			default:
				return fmt.Errorf("quicnet: reading udp: %w", err)
			}
		}

		c.tickAll()
	}
}

func (c *Client) dispatch(datagram []byte) {
	id, err := peekConnectionID(datagram)
	if err != nil {
		log.WithError(err).Debug("quicnet: client dropping undecodable datagram")
		return
	}

	c.mu.Lock()
	sess, ok := c.sessions[connKey(id)]
	c.mu.Unlock()
	if !ok {
		return
	}

	if err := sess.HandlePacket(datagram, true, time.Now()); err != nil {
		log.WithField("connection_id", id.String()).WithError(err).Debug("quicnet: client dropping malformed datagram")
		return
	}
	_ = sess.FlushAck(time.Now())
}

func (c *Client) tickAll() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, sess := range c.sessions {
		sess.CheckTimers(now)
		sess.SweepDestroyedStreams()
		if sess.State() == session.StateClosed {
			delete(c.sessions, key)
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// clientWriter adapts the client's shared socket plus one peer address
// into a session.PacketWriter.
type clientWriter struct {
	conn net.PacketConn
	addr *net.UDPAddr
}

func (w *clientWriter) WritePacket(b []byte) error {
	_, err := w.conn.WriteTo(b, w.addr)
	return err
}
