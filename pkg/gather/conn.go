// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is the datagram connection between the host and the remote machine. Every Conn must be able to send and
// receive single datagrams to resp. from its remote peer.
type Conn interface {
	// Send a single datagram. This method might block.
	Send(data []byte) error

	// Receive waits up to timeout for the next datagram. ErrTimeout is returned if nothing arrived and
	// ErrClosed after Close was called.
	Receive(timeout time.Duration) ([]byte, error)

	// LocalAddr is the address the remote machine should send its traffic to.
	LocalAddr() *net.UDPAddr

	// Close this Conn. Furthermore, a pending Receive should be interrupted.
	Close() error
}

// UDPConn is a Conn over a connected UDP socket, bound to an ephemeral local port.
type UDPConn struct {
	conn       *net.UDPConn
	bufferSize int

	closed    atomic.Bool
	closeOnce sync.Once
}

// DialUDP connects a new UDPConn to the given remote host and port. Received datagrams longer than bufferSize
// are truncated.
func DialUDP(host string, port, bufferSize int) (uc *UDPConn, err error) {
	raddr, resolveErr := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if resolveErr != nil {
		err = resolveErr
		return
	}

	conn, dialErr := net.DialUDP("udp4", nil, raddr)
	if dialErr != nil {
		err = dialErr
		return
	}

	uc = &UDPConn{
		conn:       conn,
		bufferSize: bufferSize,
	}
	return
}

func (uc *UDPConn) Send(data []byte) error {
	if uc.closed.Load() {
		return ErrClosed
	}

	_, err := uc.conn.Write(data)
	return err
}

func (uc *UDPConn) Receive(timeout time.Duration) (data []byte, err error) {
	if uc.closed.Load() {
		err = ErrClosed
		return
	}

	if err = uc.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return
	}

	buf := make([]byte, uc.bufferSize)
	n, readErr := uc.conn.Read(buf)

	var netErr net.Error
	switch {
	case readErr == nil:
		data = buf[:n]

	case errors.Is(readErr, net.ErrClosed) || uc.closed.Load():
		err = ErrClosed

	case errors.As(readErr, &netErr) && netErr.Timeout():
		err = ErrTimeout

	default:
		err = readErr
	}
	return
}

func (uc *UDPConn) LocalAddr() *net.UDPAddr {
	return uc.conn.LocalAddr().(*net.UDPAddr)
}

func (uc *UDPConn) Close() (err error) {
	uc.closeOnce.Do(func() {
		uc.closed.Store(true)
		err = uc.conn.Close()
	})
	return
}

func (uc *UDPConn) String() string {
	return fmt.Sprintf("udp://%v->%v", uc.conn.LocalAddr(), uc.conn.RemoteAddr())
}
