// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/spinnaker/dataspeedup/pkg/gather"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Logging logConf
	Target  targetConf
	Output  outputConf
	Timing  timingConf
	Report  reportConf
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// targetConf describes the remote machine and the memory block to be downloaded.
type targetConf struct {
	Host    string
	Port    int
	X       int
	Y       int
	P       int
	ChipX   int `toml:"chip-x"`
	ChipY   int `toml:"chip-y"`
	IPTag   int `toml:"iptag"`
	Address string
	Length  int
}

// outputConf names the files for the downloaded data and its miss count.
type outputConf struct {
	Data   string
	Misses string
}

// timingConf overrides parts of gather.DefaultTiming. Absent keys keep their default.
type timingConf struct {
	WordsPerPacket *int      `toml:"words-per-packet"`
	ReceiveTimeout *duration `toml:"receive-timeout"`
	QueueTimeout   *duration `toml:"queue-timeout"`
	SendDelay      *duration `toml:"send-delay"`
	RetryLimit     *int      `toml:"retry-limit"`
	AckTimeout     *duration `toml:"ack-timeout"`
	ReadBufferSize *int      `toml:"read-buffer-size"`
}

// reportConf enables the persistent report store.
type reportConf struct {
	Store string
}

// duration is a time.Duration, written as "500ms" within TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// parseConfig reads the given TOML configuration file.
func parseConfig(filename string) (conf tomlConfig, err error) {
	_, err = toml.DecodeFile(filename, &conf)
	return
}

// positionalNames are the legacy positional command line arguments, in order.
var positionalNames = []string{
	"host", "port", "x", "y", "p", "read-file", "miss-file",
	"length", "address", "chip-x", "chip-y", "iptag",
}

// positionalConfig creates a tomlConfig from the legacy positional arguments.
func positionalConfig(args []string) (conf tomlConfig, err error) {
	if len(args) != len(positionalNames) {
		err = fmt.Errorf("expected %d arguments, got %d", len(positionalNames), len(args))
		return
	}

	ints := make(map[string]int)
	for i, name := range positionalNames {
		switch name {
		case "host", "read-file", "miss-file", "address":
			continue
		}

		if ints[name], err = strconv.Atoi(args[i]); err != nil {
			err = fmt.Errorf("argument %s: %w", name, err)
			return
		}
	}

	conf.Target = targetConf{
		Host:    args[0],
		Port:    ints["port"],
		X:       ints["x"],
		Y:       ints["y"],
		P:       ints["p"],
		ChipX:   ints["chip-x"],
		ChipY:   ints["chip-y"],
		IPTag:   ints["iptag"],
		Address: args[8],
		Length:  ints["length"],
	}
	conf.Output = outputConf{
		Data:   args[5],
		Misses: args[6],
	}
	return
}

// gatherConfig creates the gather.Config for the configured target and timing.
func (conf tomlConfig) gatherConfig() (gc gather.Config, err error) {
	t := conf.Target

	address, addrErr := strconv.ParseUint(t.Address, 0, 32)
	if addrErr != nil {
		err = fmt.Errorf("target address %q: %w", t.Address, addrErr)
		return
	}

	gc = gather.NewConfig(t.Host, t.Port)
	gc.X, gc.Y, gc.P = t.X, t.Y, t.P
	gc.ChipX, gc.ChipY = t.ChipX, t.ChipY
	gc.IPTag = t.IPTag
	gc.Address = uint32(address)
	gc.Length = t.Length

	conf.Timing.apply(&gc.Timing)

	err = gc.CheckValid()
	return
}

// apply overwrites each of timing's values which was set in this block.
func (tc timingConf) apply(timing *gather.Timing) {
	for _, i := range []struct {
		from *int
		to   *int
	}{
		{tc.WordsPerPacket, &timing.WordsPerPacket},
		{tc.RetryLimit, &timing.RetryLimit},
		{tc.ReadBufferSize, &timing.ReadBufferSize},
	} {
		if i.from != nil {
			*i.to = *i.from
		}
	}

	for _, d := range []struct {
		from *duration
		to   *time.Duration
	}{
		{tc.ReceiveTimeout, &timing.ReceiveTimeout},
		{tc.QueueTimeout, &timing.QueueTimeout},
		{tc.SendDelay, &timing.SendDelay},
		{tc.AckTimeout, &timing.AckTimeout},
	} {
		if d.from != nil {
			*d.to = d.from.Duration
		}
	}
}

// logFormatters maps the [logging] block's format to a logrus Formatter.
var logFormatters = map[string]func() log.Formatter{
	"":     textFormatter,
	"text": textFormatter,
	"json": func() log.Formatter {
		return &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}
	},
}

func textFormatter() log.Formatter {
	return &log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"}
}

// applyLogging configures logrus' standard logger by this configuration's [logging] block.
func (conf tomlConfig) applyLogging() {
	lc := conf.Logging

	if lc.Level != "" {
		lvl, err := log.ParseLevel(lc.Level)
		if err != nil {
			log.WithFields(log.Fields{
				"level":    lc.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(lc.ReportCaller)

	if formatter, ok := logFormatters[lc.Format]; ok {
		log.SetFormatter(formatter())
	} else {
		log.WithField("format", lc.Format).Warn("Unknown logging format, keeping the current one")
	}
}
