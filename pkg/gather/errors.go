// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import "errors"

var (
	// ErrConnection is returned when the UDP socket cannot be set up.
	ErrConnection = errors.New("connection error")

	// ErrInvalidSequence is returned for sequence numbers outside of [0, max sequence number].
	ErrInvalidSequence = errors.New("invalid sequence number")

	// ErrOverrun is returned if a payload would be written past the end of the buffer.
	ErrOverrun = errors.New("payload overruns buffer")

	// ErrTransportTimeout is returned after the retry budget of consecutive timeouts is exhausted.
	ErrTransportTimeout = errors.New("failed to hear from the machine")

	// ErrTimeout is returned by a Conn's Receive on an expired deadline.
	ErrTimeout = errors.New("receive timed out")

	// ErrClosed is returned by a closed Conn.
	ErrClosed = errors.New("connection closed")
)
