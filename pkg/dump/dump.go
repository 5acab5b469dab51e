// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dump writes a downloaded memory block and its miss count to files.
//
// Data files ending in ".xz" are transparently xz compressed resp. decompressed.
package dump

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

const compressedSuffix = ".xz"

// isCompressed checks if a path should hold xz compressed data.
func isCompressed(path string) bool {
	return strings.HasSuffix(path, compressedSuffix)
}

// WriteData writes data to w, optionally xz compressed.
func WriteData(w io.Writer, data []byte, compress bool) (err error) {
	if !compress {
		_, err = w.Write(data)
		return
	}

	xzW, xzErr := xz.NewWriter(w)
	if xzErr != nil {
		err = xzErr
		return
	}

	if _, err = xzW.Write(data); err != nil {
		_ = xzW.Close()
		return
	}

	err = xzW.Close()
	return
}

// Write stores data in readPath and the miss count as decimal text in missPath.
func Write(readPath, missPath string, data []byte, misses int) (errs error) {
	if err := writeFile(readPath, func(w io.Writer) error {
		return WriteData(w, data, isCompressed(readPath))
	}); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("writing data to %s: %w", readPath, err))
	}

	if err := writeFile(missPath, func(w io.Writer) error {
		_, err := io.WriteString(w, strconv.Itoa(misses))
		return err
	}); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("writing miss count to %s: %w", missPath, err))
	}

	if errs == nil {
		log.WithFields(log.Fields{
			"data":   readPath,
			"misses": missPath,
			"bytes":  len(data),
		}).Debug("Wrote download to files")
	}
	return
}

// writeFile creates path and hands it to the write function, always closing it afterwards.
func writeFile(path string, write func(io.Writer) error) (errs error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := f.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return
}

// ReadData reads a data file written by Write.
func ReadData(path string) (data []byte, err error) {
	raw, err := os.ReadFile(path)
	if err != nil || !isCompressed(path) {
		return raw, err
	}

	xzR, xzErr := xz.NewReader(bytes.NewReader(raw))
	if xzErr != nil {
		err = xzErr
		return
	}

	return io.ReadAll(xzR)
}

// ReadMisses reads a miss count file written by Write.
func ReadMisses(path string) (misses int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}

	return strconv.Atoi(strings.TrimSpace(string(raw)))
}
