// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spinnaker/dataspeedup/pkg/gather"
)

// Report describes a single download, successful or not.
type Report struct {
	Id string `badgerhold:"key"`

	Remote  string
	Core    string
	Address uint32
	Length  int

	Misses     int
	Packets    int
	Duplicates int
	Rounds     int
	Timeouts   int

	Started  time.Time `badgerholdIndex:"Started"`
	Duration time.Duration

	Error string
}

// NewReport creates a Report for a Session's Result and error.
func NewReport(conf gather.Config, res gather.Result, err error) Report {
	r := Report{
		Id:      res.ID.String(),
		Remote:  net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
		Core:    conf.Destination().String(),
		Address: conf.Address,
		Length:  conf.Length,

		Misses:     res.Misses,
		Packets:    res.Packets,
		Duplicates: res.Duplicates,
		Rounds:     res.Rounds,
		Timeouts:   res.Timeouts,

		Started:  res.Started,
		Duration: res.Duration,
	}

	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Succeeded checks if the download was completed.
func (r Report) Succeeded() bool {
	return r.Error == ""
}

// Throughput in bytes per second, zero for failed downloads.
func (r Report) Throughput() float64 {
	if !r.Succeeded() || r.Duration <= 0 {
		return 0
	}
	return float64(r.Length) / r.Duration.Seconds()
}

func (r Report) String() string {
	status := "ok"
	if !r.Succeeded() {
		status = r.Error
	}

	return fmt.Sprintf("%s %s core %s %#08x+%d: %d misses, %d packets, %d rounds, %v (%s)",
		r.Started.Format(time.RFC3339), r.Remote, r.Core, r.Address, r.Length,
		r.Misses, r.Packets, r.Rounds, r.Duration, status)
}
