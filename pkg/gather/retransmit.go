// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import "github.com/spinnaker/dataspeedup/pkg/sdp"

// RetransmissionPackets is the amount of packets needed to report missing sequence numbers. The first packet
// spends two words on its header, all following ones a single word.
func RetransmissionPackets(missing, wordsPerPacket int) int {
	if missing == 0 {
		return 0
	}

	firstCapacity := wordsPerPacket - 2
	nextCapacity := wordsPerPacket - 1

	packets := 1
	if rest := missing - firstCapacity; rest > 0 {
		packets += (rest + nextCapacity - 1) / nextCapacity
	}
	return packets
}

// BuildRetransmission splits the missing sequence numbers into missing sequence report payloads, in the order
// they must be sent. Nil is returned if nothing is missing.
func BuildRetransmission(missing []uint32, wordsPerPacket int) (payloads [][]byte) {
	packets := RetransmissionPackets(len(missing), wordsPerPacket)
	if packets == 0 {
		return
	}

	payloads = make([][]byte, 0, packets)
	for i := 0; i < packets; i++ {
		first := i == 0

		capacity := wordsPerPacket - 1
		if first {
			capacity = wordsPerPacket - 2
		}
		if capacity > len(missing) {
			capacity = len(missing)
		}

		payloads = append(payloads, sdp.MissingSequences(first, uint32(packets), missing[:capacity]))
		missing = missing[capacity:]
	}
	return
}
