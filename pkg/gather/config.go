// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/spinnaker/dataspeedup/pkg/sdp"
)

// Packet geometry, measured in 32 bit words.
const (
	// WordsPerPacket is the capacity of a single packet's payload.
	WordsPerPacket = 68

	// DataWordsPerPacket is the amount of data words following the sequence word of a data packet.
	DataWordsPerPacket = WordsPerPacket - 1

	// BytesPerWord converts between words and bytes.
	BytesPerWord = 4

	// BytesPerPacket is the amount of buffer bytes covered by one sequence number.
	BytesPerPacket = DataWordsPerPacket * BytesPerWord
)

// Timing holds the timeouts and retry budget of a Session.
type Timing struct {
	// WordsPerPacket limits the size of outgoing missing sequence reports.
	WordsPerPacket int

	// ReceiveTimeout bounds each blocking socket read of the receive worker.
	ReceiveTimeout time.Duration

	// QueueTimeout bounds each dequeue of the processing worker.
	QueueTimeout time.Duration

	// SendDelay is waited after each packet of a missing sequence report.
	SendDelay time.Duration

	// RetryLimit is the amount of consecutive QueueTimeouts before giving up.
	RetryLimit int

	// AckTimeout bounds the wait for the route-setup reply.
	AckTimeout time.Duration

	// ReadBufferSize is the maximum datagram size read from the socket.
	ReadBufferSize int
}

// DefaultTiming returns the Timing used against real hardware.
func DefaultTiming() Timing {
	return Timing{
		WordsPerPacket: WordsPerPacket,
		ReceiveTimeout: 500 * time.Millisecond,
		QueueTimeout:   time.Second,
		SendDelay:      10 * time.Millisecond,
		RetryLimit:     20,
		AckTimeout:     time.Second,
		ReadBufferSize: 400,
	}
}

// CheckValid returns an error for each unusable value.
func (t Timing) CheckValid() (errs error) {
	if t.WordsPerPacket < 3 {
		errs = multierror.Append(errs,
			fmt.Errorf("Timing: WordsPerPacket of %d cannot hold a missing sequence report", t.WordsPerPacket))
	}

	for name, d := range map[string]time.Duration{
		"ReceiveTimeout": t.ReceiveTimeout,
		"QueueTimeout":   t.QueueTimeout,
		"AckTimeout":     t.AckTimeout,
	} {
		if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("Timing: %s must be positive, got %v", name, d))
		}
	}

	if t.SendDelay < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Timing: SendDelay must not be negative, got %v", t.SendDelay))
	}

	if t.RetryLimit < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Timing: RetryLimit must not be negative, got %d", t.RetryLimit))
	}

	if t.ReadBufferSize < sdp.DataHeaderSize+BytesPerPacket {
		errs = multierror.Append(errs,
			fmt.Errorf("Timing: ReadBufferSize of %d is smaller than a data packet", t.ReadBufferSize))
	}

	return
}

// Config describes a single download.
type Config struct {
	// Host and Port of the remote machine's UDP endpoint. Port is also used as the target core's port.
	Host string
	Port int

	// X, Y and P address the core streaming the data.
	X, Y, P int

	// ChipX and ChipY address the Ethernet chip owning the IP tag.
	ChipX, ChipY int

	// IPTag is the tag to be pointed at our socket.
	IPTag int

	// Address and Length of the remote memory block.
	Address uint32
	Length  int

	Timing Timing
}

// NewConfig creates a Config with the DefaultTiming.
func NewConfig(host string, port int) Config {
	return Config{
		Host:   host,
		Port:   port,
		Timing: DefaultTiming(),
	}
}

// Destination of the data requests, the streaming core.
func (c Config) Destination() sdp.Address {
	return sdp.Address{X: c.X, Y: c.Y, CPU: c.P, Port: c.Port}
}

// TagDestination is the Ethernet chip's monitor core, which handles the route-setup.
func (c Config) TagDestination() sdp.Address {
	return sdp.Address{X: c.ChipX, Y: c.ChipY, CPU: 0, Port: 0}
}

// CheckValid returns an error for each unusable value.
func (c Config) CheckValid() (errs error) {
	if c.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("Config: Host is empty"))
	}

	if c.Port <= 0 || c.Port > 0xFFFF {
		errs = multierror.Append(errs, fmt.Errorf("Config: Port %d is out of range", c.Port))
	}

	if c.Length <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("Config: Length must be positive, got %d", c.Length))
	} else if uint64(c.Length) > 0xFFFFFFFF {
		errs = multierror.Append(errs, fmt.Errorf("Config: Length %d exceeds 32 bit", c.Length))
	}

	for name, v := range map[string]int{"X": c.X, "Y": c.Y, "P": c.P, "ChipX": c.ChipX, "ChipY": c.ChipY, "IPTag": c.IPTag} {
		if v < 0 {
			errs = multierror.Append(errs, fmt.Errorf("Config: %s must not be negative, got %d", name, v))
		}
	}

	if timingErr := c.Timing.CheckValid(); timingErr != nil {
		errs = multierror.Append(errs, timingErr)
	}

	return
}
