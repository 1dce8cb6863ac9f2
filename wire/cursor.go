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

import "fmt"

// Cursor walks a byte buffer forward. walk fails fast whenever the
// requested window would run past the end of the buffer, so a malformed
// or truncated packet is rejected instead of read out of bounds.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Len returns the number of unread bytes remaining in the window.
func (c *Cursor) Len() int {
	return len(c.buf) - c.pos
}

// Pos returns the current read offset from the start of the buffer.
func (c *Cursor) Pos() int {
	return c.pos
}

// Rest returns the unread remainder of the buffer without advancing.
func (c *Cursor) Rest() []byte {
	return c.buf[c.pos:]
}

// walk advances the cursor by n bytes and returns the skipped slice.
func (c *Cursor) walk(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, fmt.Errorf("wire: buffer underrun: need %d bytes, have %d", n, c.Len())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadByte consumes and returns a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.walk(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PeekByte returns the next byte without advancing the cursor.
func (c *Cursor) PeekByte() (byte, error) {
	if c.Len() < 1 {
		return 0, fmt.Errorf("wire: buffer underrun: need 1 byte, have 0")
	}
	return c.buf[c.pos], nil
}

// ReadN consumes and returns the next n bytes.
func (c *Cursor) ReadN(n int) ([]byte, error) {
	return c.walk(n)
}

// Buffer is the growable output side of encoding: a byte slice plus an
// append-only cursor. Unlike Cursor it never fails - callers size it
// generously (MTU-sized, from a pool) before encoding into it.
type Buffer struct {
	buf []byte
}

// NewBuffer wraps buf (typically a pooled, zero-length-but-capacity slice)
// for sequential encoding.
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{buf: buf[:0]}
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

// Write appends raw bytes.
func (b *Buffer) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// Bytes returns the accumulated buffer.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.buf)
}
