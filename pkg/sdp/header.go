// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sdp

import (
	"errors"
	"fmt"
)

// Flags of a Header, telling the remote node whether a reply is wanted.
type Flags byte

const (
	// ReplyNotExpected marks a one-way message.
	ReplyNotExpected Flags = 0x07

	// ReplyExpected asks the remote node to acknowledge the message.
	ReplyExpected Flags = 0x87
)

// HeaderSize is the fixed size of each Header on the wire.
const HeaderSize int = 10

// ErrShortMessage is returned when parsing less bytes than a Header needs.
var ErrShortMessage = errors.New("sdp: message shorter than header")

// Address of a core on the remote machine. The Port is the core's subsystem port, not an UDP port.
type Address struct {
	X    int
	Y    int
	CPU  int
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%d,%d,%d:%d", a.X, a.Y, a.CPU, a.Port)
}

// Header is the addressing envelope prefixed to every packet.
//
// Port and CPU are packed together into one byte each. Out-of-range values are truncated to their bit width
// instead of being rejected.
//
//      0       1       2       3       4       5       6       7       8       9
//   +-------+-------+-------+-------+-------+-------+-------+-------+-------+-------+
//   |   padding     | flags |  tag  |dp|dcpu|sp|scpu| dst Y | dst X | src Y | src X |
//   +-------+-------+-------+-------+-------+-------+-------+-------+-------+-------+
//
type Header struct {
	Flags       Flags
	Tag         byte
	Destination Address
	Source      Address
}

// packPortCPU packs a three bit port and a five bit CPU into one byte.
func packPortCPU(port, cpu int) byte {
	return byte(port&0x07)<<5 | byte(cpu&0x1F)
}

// unpackPortCPU is the inverse of packPortCPU.
func unpackPortCPU(b byte) (port, cpu int) {
	return int(b >> 5 & 0x07), int(b & 0x1F)
}

// EncodeEnvelope creates the ten byte envelope for the given addresses.
func EncodeEnvelope(dest, src Address, flags Flags, tag byte) (envelope [HeaderSize]byte) {
	envelope[2] = byte(flags)
	envelope[3] = tag
	envelope[4] = packPortCPU(dest.Port, dest.CPU)
	envelope[5] = packPortCPU(src.Port, src.CPU)
	envelope[6] = byte(dest.Y)
	envelope[7] = byte(dest.X)
	envelope[8] = byte(src.Y)
	envelope[9] = byte(src.X)
	return
}

// Bytes returns the encoded Header.
func (h Header) Bytes() []byte {
	envelope := EncodeEnvelope(h.Destination, h.Source, h.Flags, h.Tag)
	return envelope[:]
}

// ParseHeader reads a Header from the first HeaderSize bytes of data.
func ParseHeader(data []byte) (h Header, err error) {
	if len(data) < HeaderSize {
		err = ErrShortMessage
		return
	}

	h.Flags = Flags(data[2])
	h.Tag = data[3]
	h.Destination.Port, h.Destination.CPU = unpackPortCPU(data[4])
	h.Source.Port, h.Source.CPU = unpackPortCPU(data[5])
	h.Destination.Y = int(data[6])
	h.Destination.X = int(data[7])
	h.Source.Y = int(data[8])
	h.Source.X = int(data[9])
	return
}

func (h Header) String() string {
	return fmt.Sprintf("Header(flags: %#02x, tag: %d, dest: %v, src: %v)", byte(h.Flags), h.Tag, h.Destination, h.Source)
}
