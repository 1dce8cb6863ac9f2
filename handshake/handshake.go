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

// Package handshake provides a pluggable connection-security
// collaborator. The session package does not call it; an application
// drives it from a session's handlers (cmd/gquicd calls Begin from
// OnOpen).
package handshake

import "github.com/facebook/gquic/wire"

// Handshake negotiates whatever keys or credentials a connection needs.
// Its caller invokes Begin once the session has settled on a version and
// checks Complete to learn whether the handshake has finished.
type Handshake interface {
	// Begin starts the handshake for the named connection and role, given
	// the negotiated version. It returns the frames, if any, the session
	// should send immediately (e.g. a CHLO-equivalent message).
	Begin(id wire.ConnectionID, role HandshakeRole, version wire.Version) ([]wire.Frame, error)

	// HandleFrame processes a handshake-carrying frame and returns any
	// reply frames due in response.
	HandleFrame(f wire.Frame) ([]wire.Frame, error)

	// Complete reports whether the handshake has finished successfully.
	Complete() bool
}

// HandshakeRole tells a Handshake implementation which side of the
// connection it is securing.
type HandshakeRole int

// The two roles a Handshake can run as.
const (
	RoleClient HandshakeRole = iota
	RoleServer
)

// NullHandshake is the "no security" Handshake used by gquicd: it
// completes the instant Begin is called and carries no frames of its
// own. Session opening does not depend on it; gquicd starts it from
// OnOpen, once the session is already open.
type NullHandshake struct {
	done bool
}

// NewNullHandshake returns a ready-to-use NullHandshake.
func NewNullHandshake() *NullHandshake {
	return &NullHandshake{}
}

// Begin immediately marks the handshake complete and sends no frames.
func (h *NullHandshake) Begin(_ wire.ConnectionID, _ HandshakeRole, _ wire.Version) ([]wire.Frame, error) {
	h.done = true
	return nil, nil
}

// HandleFrame is a no-op: NullHandshake never expects a reply.
func (h *NullHandshake) HandleFrame(_ wire.Frame) ([]wire.Frame, error) {
	return nil, nil
}

// Complete reports true from the moment Begin is called.
func (h *NullHandshake) Complete() bool {
	return h.done
}
