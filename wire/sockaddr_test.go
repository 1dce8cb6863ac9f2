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
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketAddressIPv4RoundTrip(t *testing.T) {
	addr, err := NewSocketAddress(net.IPv4(4, 31, 198, 44), 0x1234)
	require.NoError(t, err)
	assert.Equal(t, AddressFamilyIPv4, addr.Family)

	b := NewBuffer(make([]byte, 0, addr.ByteLen()))
	require.NoError(t, addr.EncodeTo(b))
	assert.Equal(t, 8, b.Len()) // 2 family + 4 addr + 2 port

	got, err := DecodeSocketAddress(NewCursor(b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, addr.Family, got.Family)
	assert.True(t, addr.Address.Equal(got.Address))
	assert.Equal(t, addr.Port, got.Port)
}

func TestSocketAddressIPv6RoundTrip(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	addr, err := NewSocketAddress(ip, 443)
	require.NoError(t, err)
	assert.Equal(t, AddressFamilyIPv6, addr.Family)

	b := NewBuffer(make([]byte, 0, addr.ByteLen()))
	require.NoError(t, addr.EncodeTo(b))
	assert.Equal(t, 20, b.Len()) // 2 family + 16 addr + 2 port

	got, err := DecodeSocketAddress(NewCursor(b.Bytes()))
	require.NoError(t, err)
	assert.True(t, ip.Equal(got.Address))
	assert.Equal(t, uint16(443), got.Port)
}

func TestSocketAddressPortIsLittleEndian(t *testing.T) {
	addr, err := NewSocketAddress(net.IPv4(1, 2, 3, 4), 0x1234)
	require.NoError(t, err)
	b := NewBuffer(make([]byte, 0, addr.ByteLen()))
	require.NoError(t, addr.EncodeTo(b))
	raw := b.Bytes()
	// family(2) + address(4) then port little-endian: 0x34, 0x12.
	assert.Equal(t, byte(0x34), raw[6])
	assert.Equal(t, byte(0x12), raw[7])
}

func TestDecodeSocketAddressUnknownFamily(t *testing.T) {
	_, err := DecodeSocketAddress(NewCursor([]byte{0xff, 0xff, 0, 0}))
	require.Error(t, err)
}
