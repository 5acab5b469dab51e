// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/spinnaker/dataspeedup/pkg/sdp"
)

// pump moves datagrams from a Conn through a packetQueue into a Tracker. It consists of two workers: the receiver
// only reads from the Conn, the processor owns the Tracker and answers gaps with missing sequence reports.
type pump struct {
	conn    Conn
	tracker *Tracker
	queue   *packetQueue
	timing  Timing
	dest    sdp.Address
	logger  *log.Entry

	finished  atomic.Bool
	closeOnce sync.Once

	// Only touched by the processor.
	stats Statistics
}

func newPump(conn Conn, tracker *Tracker, timing Timing, dest sdp.Address, logger *log.Entry) *pump {
	return &pump{
		conn:    conn,
		tracker: tracker,
		queue:   newPacketQueue(),
		timing:  timing,
		dest:    dest,
		logger:  logger,
	}
}

// run starts both workers and blocks until both have returned.
func (p *pump) run() (err error) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		p.receiver()
	}()

	go func() {
		defer wg.Done()
		err = p.processor()
	}()

	wg.Wait()
	return
}

// receiver enqueues datagrams until the processor closes the Conn.
func (p *pump) receiver() {
	for !p.finished.Load() {
		data, err := p.conn.Receive(p.timing.ReceiveTimeout)
		switch {
		case err == nil:
			p.queue.Push(data)

		case errors.Is(err, ErrTimeout):

		case errors.Is(err, ErrClosed):
			p.logger.Debug("Receiver observed closed connection")
			return

		default:
			p.logger.WithError(err).Debug("Receiving datagram failed, retrying")
		}
	}
}

// processor consumes the queue until the download is complete or the retry budget is exhausted. It closes the
// Conn on both exit paths.
func (p *pump) processor() (err error) {
	defer p.close()

	timeouts := 0
	for {
		data, ok := p.queue.Pop(p.timing.QueueTimeout)
		if !ok {
			timeouts++
			p.stats.Timeouts++

			if timeouts > p.timing.RetryLimit {
				p.logger.WithFields(log.Fields{
					"timeouts": timeouts,
					"tracker":  p.tracker,
				}).Warn("Retry limit exhausted")

				err = fmt.Errorf("%w after %d consecutive timeouts", ErrTransportTimeout, timeouts)
				return
			}

			p.logger.WithFields(log.Fields{
				"timeouts": timeouts,
				"tracker":  p.tracker,
			}).Debug("Queue timed out, requesting missing sequences")

			if p.retransmit() == 0 {
				return
			}
			continue
		}

		timeouts = 0

		seq, last, payload, parseErr := sdp.ParseDataPacket(data)
		if parseErr != nil {
			p.logger.WithError(parseErr).Warn("Dropping malformed datagram")
			continue
		}

		p.stats.Packets++

		completed, recordErr := p.tracker.Record(int64(seq), last, payload)
		if recordErr != nil {
			p.logger.WithError(recordErr).Warn("Failed to record data packet")

			err = recordErr
			return
		}

		if completed {
			return
		}

		if last {
			p.logger.WithField("tracker", p.tracker).Debug("End of stream with gaps")
			p.retransmit()
		}
	}
}

// retransmit requests all missing sequence numbers and returns their amount. Nothing is sent if nothing is
// missing.
func (p *pump) retransmit() int {
	missing := p.tracker.Missing()
	if len(missing) == 0 {
		return 0
	}

	payloads := BuildRetransmission(missing, p.timing.WordsPerPacket)
	p.tracker.AddMisses(len(missing))
	p.stats.Rounds++

	p.logger.WithFields(log.Fields{
		"missing": len(missing),
		"packets": len(payloads),
	}).Debug("Sending missing sequence report")

	for _, payload := range payloads {
		p.send(sdp.NewOneWay(p.dest, payload))
		time.Sleep(p.timing.SendDelay)
	}

	return len(missing)
}

// send a Message. Failures are only logged; lost requests are recovered by the next retransmission.
func (p *pump) send(msg sdp.Message) {
	if err := p.conn.Send(msg.Bytes()); err != nil {
		p.logger.WithFields(log.Fields{
			"message": msg,
			"error":   err,
		}).Warn("Failed to send message")
	}
}

// close the Conn exactly once and signal the receiver to stop.
func (p *pump) close() {
	p.closeOnce.Do(func() {
		p.finished.Store(true)

		if err := p.conn.Close(); err != nil {
			p.logger.WithError(err).Warn("Failed to close connection")
		}
	})
}
