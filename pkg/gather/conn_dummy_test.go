// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// dummyHub connects two dummyConns and helps mocking the network.
type dummyHub struct {
	mutex sync.Mutex

	packetCounter int
	packetDrop    int
}

// newDummyPair creates a host and a node dummyConn, connected by a lossless dummyHub.
func newDummyPair() (host, node *dummyConn) {
	return newDummyPairDrop(0)
}

// newDummyPairDrop creates a host and a node dummyConn. Each nth packet sent by the node is dropped.
func newDummyPairDrop(n int) (host, node *dummyConn) {
	hub := &dummyHub{packetDrop: n}

	host = newDummyConn(hub, "host")
	node = newDummyConn(hub, "node")
	host.peer, node.peer = node, host
	node.lossy = true
	return
}

// drop decides if the next lossy packet is lost.
func (dh *dummyHub) drop() bool {
	dh.mutex.Lock()
	defer dh.mutex.Unlock()

	dh.packetCounter++
	return dh.packetDrop != 0 && dh.packetCounter%dh.packetDrop == 0
}

// dummyConn is a mocking Conn used for testing.
type dummyConn struct {
	name  string
	hub   *dummyHub
	peer  *dummyConn
	lossy bool

	inChan chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newDummyConn(hub *dummyHub, name string) *dummyConn {
	return &dummyConn{
		name:   name,
		hub:    hub,
		inChan: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (d *dummyConn) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *dummyConn) Send(data []byte) error {
	if d.isClosed() {
		return ErrClosed
	}

	if d.lossy && d.hub.drop() {
		return nil
	}

	packet := make([]byte, len(data))
	copy(packet, data)

	select {
	case d.peer.inChan <- packet:
	case <-d.peer.closed:
	case <-d.closed:
		return ErrClosed
	}
	return nil
}

func (d *dummyConn) Receive(timeout time.Duration) (data []byte, err error) {
	if d.isClosed() {
		err = ErrClosed
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data = <-d.inChan:
	case <-d.closed:
		err = ErrClosed
	case <-timer.C:
		err = ErrTimeout
	}
	return
}

func (d *dummyConn) LocalAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 17893}
}

func (d *dummyConn) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *dummyConn) String() string {
	return fmt.Sprintf("dummyconn/%s", d.name)
}
