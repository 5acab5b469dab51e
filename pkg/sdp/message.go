// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sdp

import "fmt"

// hostSource is the source address of messages originating from the host.
var hostSource = Address{X: 0, Y: 0, CPU: 0xFF, Port: 0xFF}

// defaultTag is used for all host originated messages.
const defaultTag byte = 0xFF

// Message is a Header together with its payload.
type Message struct {
	Header
	Data []byte
}

// NewOneWay creates a Message to dest which does not expect any reply.
func NewOneWay(dest Address, data []byte) Message {
	return Message{
		Header: Header{
			Flags:       ReplyNotExpected,
			Tag:         defaultTag,
			Destination: dest,
			Source:      hostSource,
		},
		Data: data,
	}
}

// NewTwoWay creates a Message to dest which expects a reply.
func NewTwoWay(dest Address, data []byte) Message {
	msg := NewOneWay(dest, data)
	msg.Flags = ReplyExpected
	return msg
}

// Bytes returns the envelope followed by the payload.
func (m Message) Bytes() []byte {
	buf := make([]byte, 0, HeaderSize+len(m.Data))
	buf = append(buf, m.Header.Bytes()...)
	return append(buf, m.Data...)
}

// ParseMessage splits a received packet into its Header and payload.
func ParseMessage(data []byte) (m Message, err error) {
	if m.Header, err = ParseHeader(data); err != nil {
		return
	}

	m.Data = data[HeaderSize:]
	return
}

func (m Message) String() string {
	return fmt.Sprintf("Message(%v, %d bytes)", m.Header, len(m.Data))
}
