// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"os"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"
)

// Store keeps Reports of past downloads.
type Store struct {
	bh *badgerhold.Store
}

// NewStore creates a new Store or opens an existing Store from the given directory.
func NewStore(dir string) (s *Store, err error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = log.StandardLogger()

	if dirErr := os.MkdirAll(dir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{bh: bh}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Push a new Report to the Store. Reports are never updated.
func (s *Store) Push(r Report) error {
	log.WithFields(log.Fields{
		"report": r.Id,
	}).Debug("Store inserts Report")

	return s.bh.Insert(r.Id, r)
}

// Query fetches the Report for the requested id.
func (s *Store) Query(id string) (r Report, err error) {
	err = s.bh.Get(id, &r)
	return
}

// Knows checks if a Report with this id exists.
func (s *Store) Knows(id string) bool {
	_, err := s.Query(id)
	return err != badgerhold.ErrNotFound
}

// Since fetches all Reports started after t, oldest first.
func (s *Store) Since(t time.Time) (rs []Report, err error) {
	if err = s.bh.Find(&rs, badgerhold.Where("Started").Gt(t)); err != nil {
		return
	}

	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Started.Before(rs[j].Started)
	})
	return
}

// Delete the Report for the requested id.
func (s *Store) Delete(id string) error {
	log.WithFields(log.Fields{
		"report": id,
	}).Info("Store deletes Report")

	return s.bh.Delete(id, Report{})
}
