// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// hostdatareceiver downloads a memory block from a SpiNNaker core over the
// reliable UDP data speed up protocol and writes it to a file.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/spinnaker/dataspeedup/pkg/dump"
	"github.com/spinnaker/dataspeedup/pkg/gather"
	"github.com/spinnaker/dataspeedup/pkg/report"
)

var (
	configFile  string
	reportStore string
	logLevel    string
	since       time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "hostdatareceiver [host port x y p read-file miss-file length address chip-x chip-y iptag]",
	Short: "Download a memory block from a SpiNNaker core",
	Args: func(_ *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != len(positionalNames) {
			return fmt.Errorf("expected either no or %d arguments, got %d", len(positionalNames), len(args))
		}
		return nil
	},
	Run: func(_ *cobra.Command, args []string) {
		conf, err := loadConfig(args)
		if err != nil {
			log.WithError(err).Fatal("Failed to parse config")
		}

		if err := download(conf); err != nil {
			log.WithError(err).Fatal("Download failed")
		}
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List stored reports of past downloads",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		withStore(func(store *report.Store) error {
			return listReports(store, time.Now().Add(-since), os.Stdout)
		})
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show id",
	Short: "Show a single stored report",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(store *report.Store) error {
			return showReport(store, args[0], os.Stdout)
		})
	},
}

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete id",
	Short: "Delete a stored report",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		withStore(func(store *report.Store) error {
			return deleteReport(store, args[0])
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&reportStore, "report-store", "r", "", "directory of the report store")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level, one of panic,fatal,error,warn,info,debug,trace")

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "TOML configuration file, replacing the positional arguments")

	reportsCmd.Flags().DurationVarP(&since, "since", "s", 24*time.Hour, "list reports of this recent period")

	reportsCmd.AddCommand(reportsShowCmd, reportsDeleteCmd)
	rootCmd.AddCommand(reportsCmd)
}

// withStore opens the report store of the --report-store flag for f and exits on any error.
func withStore(f func(*report.Store) error) {
	if reportStore == "" {
		log.Fatal("No report store was configured")
	}

	store, err := report.NewStore(reportStore)
	if err != nil {
		log.WithError(err).Fatal("Failed to open report store")
	}

	fErr := f(store)
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("Failed to close report store")
	}
	if fErr != nil {
		log.WithError(fErr).Fatal("Report store operation failed")
	}
}

func listReports(store *report.Store, from time.Time, w io.Writer) error {
	rs, err := store.Since(from)
	if err != nil {
		return err
	}

	for _, r := range rs {
		if _, err := fmt.Fprintln(w, r); err != nil {
			return err
		}
	}
	return nil
}

func showReport(store *report.Store, id string, w io.Writer) error {
	r, err := store.Query(id)
	if err != nil {
		return fmt.Errorf("report %s: %w", id, err)
	}

	_, err = fmt.Fprintf(w, "%v\npackets %d, duplicates %d, timeouts %d, throughput %.0f B/s\n",
		r, r.Packets, r.Duplicates, r.Timeouts, r.Throughput())
	return err
}

func deleteReport(store *report.Store, id string) error {
	if !store.Knows(id) {
		return fmt.Errorf("report %s is unknown", id)
	}
	return store.Delete(id)
}

// loadConfig reads either the configuration file or the positional arguments and applies the flags.
func loadConfig(args []string) (conf tomlConfig, err error) {
	switch {
	case configFile != "" && len(args) > 0:
		err = fmt.Errorf("either a configuration file or positional arguments may be given")
		return

	case configFile != "":
		conf, err = parseConfig(configFile)

	case len(args) > 0:
		conf, err = positionalConfig(args)

	default:
		err = fmt.Errorf("neither a configuration file nor positional arguments were given")
	}
	if err != nil {
		return
	}

	if logLevel != "" {
		conf.Logging.Level = logLevel
	}
	if reportStore != "" {
		conf.Report.Store = reportStore
	}

	conf.applyLogging()
	return
}

// download runs a gather.Session, writes its outcome and optionally stores a report.
func download(conf tomlConfig) error {
	gc, err := conf.gatherConfig()
	if err != nil {
		return err
	}

	session, err := gather.NewSession(gc)
	if err != nil {
		return err
	}

	res, runErr := session.Run()

	if conf.Report.Store != "" {
		if storeErr := storeReport(conf.Report.Store, report.NewReport(gc, res, runErr)); storeErr != nil {
			log.WithError(storeErr).Warn("Failed to store report")
		}
	}

	if runErr != nil {
		return runErr
	}

	return dump.Write(conf.Output.Data, conf.Output.Misses, res.Data, res.Misses)
}

func storeReport(dir string, r report.Report) error {
	store, err := report.NewStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Push(r)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
