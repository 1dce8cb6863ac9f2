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
	"encoding/binary"
	"fmt"
	"net"
)

// AddressFamily is the 2-byte little-endian family discriminator in a
// wire SocketAddress.
type AddressFamily uint16

// The two address families carried over the wire.
const (
	AddressFamilyIPv4 AddressFamily = 0x02
	AddressFamilyIPv6 AddressFamily = 0x0a
)

// SocketAddress is an IPv4 or IPv6 endpoint as carried in a Public Reset's
// CADR tag. Wire form: family (2 LE), address bytes (4 or 16), port (2
// LE).
type SocketAddress struct {
	Family  AddressFamily
	Address net.IP
	Port    uint16
}

// NewSocketAddress builds a SocketAddress from a net.IP and port,
// inferring the family from the IP's shape.
func NewSocketAddress(ip net.IP, port uint16) (SocketAddress, error) {
	if v4 := ip.To4(); v4 != nil {
		return SocketAddress{Family: AddressFamilyIPv4, Address: v4, Port: port}, nil
	}
	if v6 := ip.To16(); v6 != nil {
		return SocketAddress{Family: AddressFamilyIPv6, Address: v6, Port: port}, nil
	}
	return SocketAddress{}, fmt.Errorf("wire: %v is not a valid IPv4 or IPv6 address", ip)
}

// ByteLen returns the total encoded size of a.
func (a SocketAddress) ByteLen() int {
	switch a.Family {
	case AddressFamilyIPv4:
		return 2 + 4 + 2
	case AddressFamilyIPv6:
		return 2 + 16 + 2
	default:
		return 2
	}
}

// EncodeTo writes a: family (2 LE), address (4 or 16 bytes), port (2 LE).
func (a SocketAddress) EncodeTo(b *Buffer) error {
	var famBuf [2]byte
	binary.LittleEndian.PutUint16(famBuf[:], uint16(a.Family))
	b.Write(famBuf[:])

	switch a.Family {
	case AddressFamilyIPv4:
		ip := a.Address.To4()
		if ip == nil {
			return fmt.Errorf("wire: IPv4 family but address %v has no 4-byte form", a.Address)
		}
		b.Write(ip)
	case AddressFamilyIPv6:
		ip := a.Address.To16()
		if ip == nil {
			return fmt.Errorf("wire: IPv6 family but address %v has no 16-byte form", a.Address)
		}
		b.Write(ip)
	default:
		return fmt.Errorf("wire: unknown address family %#x", a.Family)
	}

	var portBuf [2]byte
	binary.LittleEndian.PutUint16(portBuf[:], a.Port)
	b.Write(portBuf[:])
	return nil
}

// DecodeSocketAddress reads a SocketAddress.
func DecodeSocketAddress(c *Cursor) (SocketAddress, error) {
	famRaw, err := c.ReadN(2)
	if err != nil {
		return SocketAddress{}, fmt.Errorf("wire: decoding address family: %w", err)
	}
	family := AddressFamily(binary.LittleEndian.Uint16(famRaw))

	var addrLen int
	switch family {
	case AddressFamilyIPv4:
		addrLen = 4
	case AddressFamilyIPv6:
		addrLen = 16
	default:
		return SocketAddress{}, fmt.Errorf("wire: unknown address family %#x", family)
	}

	addrRaw, err := c.ReadN(addrLen)
	if err != nil {
		return SocketAddress{}, fmt.Errorf("wire: decoding address bytes: %w", err)
	}
	ip := make(net.IP, addrLen)
	copy(ip, addrRaw)

	portRaw, err := c.ReadN(2)
	if err != nil {
		return SocketAddress{}, fmt.Errorf("wire: decoding port: %w", err)
	}
	port := binary.LittleEndian.Uint16(portRaw)

	return SocketAddress{Family: family, Address: ip, Port: port}, nil
}
