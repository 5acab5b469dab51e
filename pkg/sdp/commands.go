// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sdp

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Command codes of the payloads exchanged with the remote node.
const (
	// CommandSetIPTag is the SCP opcode configuring an IP tag, used for the route-setup request.
	CommandSetIPTag uint16 = 26

	CommandStartSending     uint32 = 100
	CommandStartMissingSeqs uint32 = 1000
	CommandMissingSeqs      uint32 = 1001
)

const (
	lastMessageFlagBitMask uint32 = 0x80000000
	sequenceNumberMask     uint32 = 0x7FFFFFFF

	wordSize                   = 4
	routeSetupSize             = 16
	startTransferSize          = 12
	missingSeqsFirstHeaderSize = 2
)

// DataHeaderSize is the size of the sequence word in front of each data packet's payload.
const DataHeaderSize = wordSize

// RouteSetup creates the payload of the set-IP-tag request, making the remote node send its traffic for tagID
// to the given local address.
func RouteSetup(tagID int, strip bool, localPort int, localIP net.IP) []byte {
	var stripFlag uint32
	if strip {
		stripFlag = 1
	}

	buf := make([]byte, routeSetupSize)
	binary.LittleEndian.PutUint16(buf[0:], CommandSetIPTag)
	binary.LittleEndian.PutUint16(buf[2:], 0)
	binary.LittleEndian.PutUint32(buf[4:], stripFlag<<28|1<<16|uint32(tagID&0xFFFF))
	binary.LittleEndian.PutUint32(buf[8:], uint32(localPort))

	if ip4 := localIP.To4(); ip4 != nil {
		copy(buf[12:], ip4)
	}
	return buf
}

// StartTransfer creates the payload asking the remote node to stream length bytes from address.
func StartTransfer(address, length uint32) []byte {
	buf := make([]byte, startTransferSize)
	binary.LittleEndian.PutUint32(buf[0:], CommandStartSending)
	binary.LittleEndian.PutUint32(buf[4:], address)
	binary.LittleEndian.PutUint32(buf[8:], length)
	return buf
}

// ParseStartTransfer is the inverse of StartTransfer.
func ParseStartTransfer(data []byte) (address, length uint32, err error) {
	if len(data) < startTransferSize {
		err = fmt.Errorf("start transfer payload has %d bytes, expected %d", len(data), startTransferSize)
		return
	}
	if cmd := binary.LittleEndian.Uint32(data); cmd != CommandStartSending {
		err = fmt.Errorf("expected command %d, got %d", CommandStartSending, cmd)
		return
	}

	address = binary.LittleEndian.Uint32(data[4:])
	length = binary.LittleEndian.Uint32(data[8:])
	return
}

// EncodeDataHeader packs a sequence number and the end-of-stream flag into the first word of a data packet.
func EncodeDataHeader(seq uint32, last bool) uint32 {
	word := seq & sequenceNumberMask
	if last {
		word |= lastMessageFlagBitMask
	}
	return word
}

// DataHeader splits the first word of a data packet.
func DataHeader(word uint32) (seq uint32, last bool) {
	return word & sequenceNumberMask, word&lastMessageFlagBitMask != 0
}

// DataPacket creates a data packet as sent by the remote node.
func DataPacket(seq uint32, last bool, payload []byte) []byte {
	buf := make([]byte, DataHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf, EncodeDataHeader(seq, last))
	copy(buf[DataHeaderSize:], payload)
	return buf
}

// ParseDataPacket splits a received data packet into its header fields and payload.
func ParseDataPacket(data []byte) (seq uint32, last bool, payload []byte, err error) {
	if len(data) < DataHeaderSize {
		err = fmt.Errorf("data packet of %d bytes has no sequence word", len(data))
		return
	}

	seq, last = DataHeader(binary.LittleEndian.Uint32(data))
	payload = data[DataHeaderSize:]
	return
}

// MissingSequences creates a missing-sequence report. The first packet of a report carries the total amount of
// packets, all following ones only their command code.
func MissingSequences(first bool, packets uint32, seqs []uint32) []byte {
	var header []uint32
	if first {
		header = []uint32{CommandStartMissingSeqs, packets}
	} else {
		header = []uint32{CommandMissingSeqs}
	}

	buf := make([]byte, (len(header)+len(seqs))*wordSize)
	for i, word := range append(header, seqs...) {
		binary.LittleEndian.PutUint32(buf[i*wordSize:], word)
	}
	return buf
}

// ParseMissingSequences is the inverse of MissingSequences. For continuation packets, packets is zero.
func ParseMissingSequences(data []byte) (first bool, packets uint32, seqs []uint32, err error) {
	if len(data) < wordSize || len(data)%wordSize != 0 {
		err = fmt.Errorf("missing sequence payload of %d bytes is not word aligned", len(data))
		return
	}

	offset := wordSize
	switch cmd := binary.LittleEndian.Uint32(data); cmd {
	case CommandStartMissingSeqs:
		if len(data) < missingSeqsFirstHeaderSize*wordSize {
			err = fmt.Errorf("first missing sequence payload lacks its packet count")
			return
		}
		first = true
		packets = binary.LittleEndian.Uint32(data[wordSize:])
		offset += wordSize

	case CommandMissingSeqs:

	default:
		err = fmt.Errorf("unknown missing sequence command %d", cmd)
		return
	}

	for ; offset < len(data); offset += wordSize {
		seqs = append(seqs, binary.LittleEndian.Uint32(data[offset:]))
	}
	return
}
