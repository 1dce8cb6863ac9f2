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
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ConnectionIDLen is the fixed wire length of a ConnectionID.
const ConnectionIDLen = 8

// ConnectionID is the 8-byte opaque identifier that demultiplexes packets
// on a shared UDP port. Equality is defined on the raw bytes; the hex
// rendering is purely presentational.
type ConnectionID [ConnectionIDLen]byte

// NewRandomConnectionID generates a random ConnectionID, as a client does
// when it starts a new session.
func NewRandomConnectionID() (ConnectionID, error) {
	var id ConnectionID
	if _, err := rand.Read(id[:]); err != nil {
		return id, fmt.Errorf("wire: generating connection id: %w", err)
	}
	return id, nil
}

// String renders the ConnectionID as 16 lowercase hex characters.
func (c ConnectionID) String() string {
	return hex.EncodeToString(c[:])
}

// Uint64 returns the ConnectionID as a big-endian unsigned integer,
// convenient for use as a map key.
func (c ConnectionID) Uint64() uint64 {
	return binary.BigEndian.Uint64(c[:])
}

// EncodeTo appends the raw 8 bytes of c.
func (c ConnectionID) EncodeTo(b *Buffer) {
	b.Write(c[:])
}

// DecodeConnectionID reads a ConnectionID.
func DecodeConnectionID(c *Cursor) (ConnectionID, error) {
	raw, err := c.ReadN(ConnectionIDLen)
	if err != nil {
		return ConnectionID{}, fmt.Errorf("wire: decoding connection id: %w", err)
	}
	var id ConnectionID
	copy(id[:], raw)
	return id, nil
}
