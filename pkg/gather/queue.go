// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"sync"
	"time"
)

// packetQueue is an unbounded FIFO between the receive and the processing worker. Push never blocks, thus the
// receive worker only blocks on its socket.
type packetQueue struct {
	mutex   sync.Mutex
	packets [][]byte

	notify chan struct{}
}

func newPacketQueue() *packetQueue {
	return &packetQueue{
		notify: make(chan struct{}, 1),
	}
}

// Push appends a packet to the queue's tail.
func (q *packetQueue) Push(packet []byte) {
	q.mutex.Lock()
	q.packets = append(q.packets, packet)
	q.mutex.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the queue's oldest packet. If the queue stays empty for timeout, ok is false.
func (q *packetQueue) Pop(timeout time.Duration) (packet []byte, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mutex.Lock()
		if len(q.packets) > 0 {
			packet = q.packets[0]
			q.packets[0] = nil
			q.packets = q.packets[1:]
			q.mutex.Unlock()

			ok = true
			return
		}
		q.mutex.Unlock()

		select {
		case <-q.notify:
		case <-timer.C:
			return
		}
	}
}

// Len of the queue.
func (q *packetQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.packets)
}
