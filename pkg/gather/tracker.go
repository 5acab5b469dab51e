// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// MaxSequenceNumber is the highest sequence number of a download of length bytes. Sequence numbers below it carry
// BytesPerPacket of data each, the highest one is allowed to be an empty end marker.
func MaxSequenceNumber(length int) int {
	return (length + BytesPerPacket - 1) / BytesPerPacket
}

// Tracker reassembles received data packets into a buffer and keeps track of the received sequence numbers.
//
// A Tracker is not safe for concurrent use; it is owned by the processing worker.
type Tracker struct {
	buffer   []byte
	received *bitset.BitSet
	maxSeq   int

	misses     int
	duplicates int
}

// NewTracker creates a Tracker for a download of length bytes.
func NewTracker(length int) (t *Tracker, err error) {
	if length <= 0 {
		err = fmt.Errorf("tracker length must be positive, got %d", length)
		return
	}

	maxSeq := MaxSequenceNumber(length)
	t = &Tracker{
		buffer:   make([]byte, length),
		received: bitset.New(uint(maxSeq + 1)),
		maxSeq:   maxSeq,
	}
	return
}

// Record stores a packet's payload. The returned completed flag is only evaluated for the end-of-stream packet.
func (t *Tracker) Record(seq int64, last bool, payload []byte) (completed bool, err error) {
	if seq < 0 || seq > int64(t.maxSeq) {
		err = fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidSequence, seq, t.maxSeq)
		return
	}

	endMarker := last && len(payload) == 0
	offset := seq * BytesPerPacket

	if !endMarker {
		if offset+int64(len(payload)) > int64(len(t.buffer)) {
			err = fmt.Errorf("%w: sequence %d with %d bytes at offset %d exceeds %d bytes",
				ErrOverrun, seq, len(payload), offset, len(t.buffer))
			return
		}

		copy(t.buffer[offset:], payload)
	}

	if t.received.Test(uint(seq)) {
		t.duplicates++
	}
	t.received.Set(uint(seq))

	if last {
		completed = t.Complete()
	}
	return
}

// Complete checks if every sequence number was received.
func (t *Tracker) Complete() bool {
	return t.received.Count() == uint(t.maxSeq+1)
}

// Missing returns all sequence numbers not received yet in ascending order.
func (t *Tracker) Missing() (missing []uint32) {
	for seq := 0; seq <= t.maxSeq; seq++ {
		if !t.received.Test(uint(seq)) {
			missing = append(missing, uint32(seq))
		}
	}
	return
}

// MaxSequenceNumber of this Tracker's download.
func (t *Tracker) MaxSequenceNumber() int {
	return t.maxSeq
}

// Received is the amount of distinct received sequence numbers.
func (t *Tracker) Received() int {
	return int(t.received.Count())
}

// Duplicates counts packets whose sequence number was already received.
func (t *Tracker) Duplicates() int {
	return t.duplicates
}

// AddMisses adds n requested retransmissions to the miss counter.
func (t *Tracker) AddMisses(n int) {
	t.misses += n
}

// MissCount is the total amount of sequence numbers requested again, counting repeated requests.
func (t *Tracker) MissCount() int {
	return t.misses
}

// Buffer returns the reassembled data.
func (t *Tracker) Buffer() []byte {
	return t.buffer
}

func (t *Tracker) String() string {
	return fmt.Sprintf("Tracker(%d bytes, %d/%d sequences)", len(t.buffer), t.Received(), t.maxSeq+1)
}
