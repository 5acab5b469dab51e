// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/spinnaker/dataspeedup/pkg/sdp"
)

// Statistics of a finished or aborted download.
type Statistics struct {
	// Packets is the amount of data packets processed, including duplicates.
	Packets int

	// Duplicates counts data packets for already received sequence numbers.
	Duplicates int

	// Rounds of missing sequence reports sent.
	Rounds int

	// Timeouts counts every queue timeout, consecutive or not.
	Timeouts int
}

// Result of a Session.
type Result struct {
	ID     uuid.UUID
	Data   []byte
	Misses int

	Statistics

	Started  time.Time
	Duration time.Duration
}

// Throughput in bytes per second.
func (r Result) Throughput() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(len(r.Data)) / r.Duration.Seconds()
}

// Session downloads one memory block from a remote machine.
type Session struct {
	conf   Config
	id     uuid.UUID
	logger *log.Entry
}

// NewSession creates a Session for a valid Config.
func NewSession(conf Config) (s *Session, err error) {
	if err = conf.CheckValid(); err != nil {
		return
	}

	id := uuid.New()
	s = &Session{
		conf: conf,
		id:   id,
		logger: log.WithFields(log.Fields{
			"session": id,
			"remote":  net.JoinHostPort(conf.Host, fmt.Sprint(conf.Port)),
		}),
	}
	return
}

// ID of this Session, also used as its Result's ID.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Run the Session over a new UDP socket.
func (s *Session) Run() (res Result, err error) {
	conn, connErr := DialUDP(s.conf.Host, s.conf.Port, s.conf.Timing.ReadBufferSize)
	if connErr != nil {
		s.logger.WithError(connErr).Warn("Failed to open UDP socket")

		err = fmt.Errorf("%w: %v", ErrConnection, connErr)
		return
	}

	return s.RunConn(conn)
}

// RunConn runs the Session over the given Conn, which is closed afterwards.
func (s *Session) RunConn(conn Conn) (res Result, err error) {
	tracker, trackerErr := NewTracker(s.conf.Length)
	if trackerErr != nil {
		_ = conn.Close()

		err = trackerErr
		return
	}

	res.ID = s.id
	res.Started = time.Now()

	s.logger.WithFields(log.Fields{
		"core":    s.conf.Destination(),
		"address": fmt.Sprintf("%#08x", s.conf.Address),
		"length":  s.conf.Length,
	}).Info("Starting download")

	s.requestData(conn)

	p := newPump(conn, tracker, s.conf.Timing, s.conf.Destination(), s.logger)
	err = p.run()

	res.Data = tracker.Buffer()
	res.Misses = tracker.MissCount()
	res.Statistics = p.stats
	res.Duplicates = tracker.Duplicates()
	res.Duration = time.Since(res.Started)

	logger := s.logger.WithFields(log.Fields{
		"misses":   res.Misses,
		"packets":  res.Packets,
		"rounds":   res.Rounds,
		"duration": res.Duration,
	})
	if err != nil {
		logger.WithError(err).Warn("Download failed")
	} else {
		logger.WithField("throughput", fmt.Sprintf("%.2f MiB/s", res.Throughput()/(1<<20))).Info("Download finished")
	}

	return
}

// requestData points the IP tag at the Conn, waits for the reply and starts the transfer.
func (s *Session) requestData(conn Conn) {
	local := conn.LocalAddr()
	setup := sdp.NewTwoWay(s.conf.TagDestination(), sdp.RouteSetup(s.conf.IPTag, true, local.Port, local.IP))

	if err := conn.Send(setup.Bytes()); err != nil {
		s.logger.WithError(err).Warn("Failed to send route setup")
	}

	if _, err := conn.Receive(s.conf.Timing.AckTimeout); errors.Is(err, ErrTimeout) {
		s.logger.Warn("Route setup was not acknowledged in time, continuing")
	} else if err != nil {
		s.logger.WithError(err).Warn("Failed to receive route setup reply")
	} else {
		s.logger.WithField("local", local).Debug("Route setup acknowledged")
	}

	start := sdp.NewOneWay(s.conf.Destination(), sdp.StartTransfer(s.conf.Address, uint32(s.conf.Length)))
	if err := conn.Send(start.Bytes()); err != nil {
		s.logger.WithError(err).Warn("Failed to send start transfer")
	}
}

// Run downloads the memory block described by conf. It returns the reassembled data and the miss count.
func Run(conf Config) (data []byte, misses int, err error) {
	s, err := NewSession(conf)
	if err != nil {
		return
	}

	res, err := s.Run()
	return res.Data, res.Misses, err
}
