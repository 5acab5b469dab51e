// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"errors"
	"sync"
	"time"

	"github.com/spinnaker/dataspeedup/pkg/sdp"
)

// nodeLink is the remote node's side of a connection.
type nodeLink interface {
	Send(data []byte) error
	Receive(timeout time.Duration) ([]byte, error)
}

// fakeNode mimics the remote machine: it acknowledges the route setup, streams its memory on a start request
// and answers missing sequence reports.
type fakeNode struct {
	link   nodeLink
	memory []byte

	// dropFirst holds sequence numbers lost on their first transmission.
	dropFirst map[uint32]bool
	// silent nodes never answer.
	silent bool
	// insane nodes start their stream with an out of range sequence number.
	insane bool
	// endMarkerFirst nodes send their end marker ahead of the data and never again.
	endMarkerFirst bool

	mutex   sync.Mutex
	setups  int
	starts  int
	address uint32
	rounds  [][]uint32

	stopSyn chan struct{}
	stopAck chan struct{}
}

func newFakeNode(link nodeLink, memory []byte) *fakeNode {
	return &fakeNode{
		link:      link,
		memory:    memory,
		dropFirst: make(map[uint32]bool),
		stopSyn:   make(chan struct{}),
		stopAck:   make(chan struct{}),
	}
}

// testMemory creates length bytes of recognizable memory.
func testMemory(length int) []byte {
	memory := make([]byte, length)
	for i := range memory {
		memory[i] = byte(i*7 + i/251)
	}
	return memory
}

func (n *fakeNode) start() {
	go n.serve()
}

func (n *fakeNode) stop() {
	close(n.stopSyn)
	<-n.stopAck
}

func (n *fakeNode) serve() {
	defer close(n.stopAck)

	var (
		pending  []uint32
		expected uint32
		got      uint32
	)

	for {
		select {
		case <-n.stopSyn:
			return
		default:
		}

		data, err := n.link.Receive(10 * time.Millisecond)
		if errors.Is(err, ErrClosed) {
			return
		} else if err != nil || n.silent {
			continue
		}

		msg, err := sdp.ParseMessage(data)
		if err != nil {
			continue
		}

		if msg.Flags == sdp.ReplyExpected {
			n.mutex.Lock()
			n.setups++
			n.mutex.Unlock()

			_ = n.link.Send(sdp.NewOneWay(msg.Source, []byte{0x80, 0, 0, 0}).Bytes())
			continue
		}

		if address, _, err := sdp.ParseStartTransfer(msg.Data); err == nil {
			n.mutex.Lock()
			n.starts++
			n.address = address
			n.mutex.Unlock()

			if n.insane {
				_ = n.link.Send(sdp.DataPacket(uint32(MaxSequenceNumber(len(n.memory))+5), false, []byte{1}))
			}

			maxSeq := MaxSequenceNumber(len(n.memory))
			if n.endMarkerFirst {
				n.sendSeq(uint32(maxSeq))
				maxSeq--
			}
			for seq := 0; seq <= maxSeq; seq++ {
				n.sendSeq(uint32(seq))
			}
			continue
		}

		first, packets, seqs, err := sdp.ParseMissingSequences(msg.Data)
		if err != nil {
			continue
		}

		if first {
			pending, expected, got = nil, packets, 0
		}
		pending = append(pending, seqs...)
		got++

		if got != expected {
			continue
		}

		n.mutex.Lock()
		n.rounds = append(n.rounds, pending)
		n.mutex.Unlock()

		maxSeq := uint32(MaxSequenceNumber(len(n.memory)))
		endMarker := false
		for _, seq := range pending {
			if n.endMarkerFirst && seq == maxSeq {
				continue
			}
			n.sendSeq(seq)
			endMarker = endMarker || seq == maxSeq
		}
		if !endMarker && !n.endMarkerFirst {
			n.sendSeq(maxSeq)
		}
	}
}

// sendSeq sends the data packet for seq, unless it should be dropped.
func (n *fakeNode) sendSeq(seq uint32) {
	if n.dropFirst[seq] {
		delete(n.dropFirst, seq)
		return
	}

	maxSeq := uint32(MaxSequenceNumber(len(n.memory)))
	if seq == maxSeq {
		_ = n.link.Send(sdp.DataPacket(seq, true, nil))
		return
	}

	start := int(seq) * BytesPerPacket
	end := start + BytesPerPacket
	if end > len(n.memory) {
		end = len(n.memory)
	}
	_ = n.link.Send(sdp.DataPacket(seq, false, n.memory[start:end]))
}

// report returns the node's counters.
func (n *fakeNode) report() (setups, starts int, rounds [][]uint32) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	return n.setups, n.starts, n.rounds
}
