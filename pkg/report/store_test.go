// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinnaker/dataspeedup/pkg/gather"
)

func testReport(started time.Time, err error) Report {
	conf := gather.NewConfig("spinn-4", 17893)
	conf.X, conf.Y, conf.P = 0, 0, 3
	conf.Address = 0x60000000
	conf.Length = 1000

	res := gather.Result{
		ID:       uuid.New(),
		Data:     make([]byte, conf.Length),
		Misses:   4,
		Started:  started,
		Duration: time.Second,
	}
	res.Packets = 9
	res.Rounds = 2

	return NewReport(conf, res, err)
}

func TestNewReport(t *testing.T) {
	r := testReport(time.Now(), nil)

	assert.True(t, r.Succeeded())
	assert.Equal(t, "spinn-4:17893", r.Remote)
	assert.Equal(t, "0,0,3:17893", r.Core)
	assert.Equal(t, 4, r.Misses)
	assert.Equal(t, 9, r.Packets)
	assert.InDelta(t, 1000.0, r.Throughput(), 0.001)

	failed := testReport(time.Now(), errors.New("failed to hear from the machine"))
	assert.False(t, failed.Succeeded())
	assert.Zero(t, failed.Throughput())
	assert.Contains(t, failed.String(), "failed to hear from the machine")
}

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	now := time.Now()
	old := testReport(now.Add(-time.Hour), nil)
	r1 := testReport(now.Add(-2*time.Minute), nil)
	r2 := testReport(now.Add(-time.Minute), errors.New("invalid sequence number"))

	for _, r := range []Report{r2, old, r1} {
		require.NoError(t, store.Push(r))
	}

	assert.True(t, store.Knows(r1.Id))
	assert.False(t, store.Knows(uuid.New().String()))

	q, err := store.Query(r2.Id)
	require.NoError(t, err)
	assert.Equal(t, r2.Error, q.Error)
	assert.Equal(t, r2.Misses, q.Misses)

	rs, err := store.Since(now.Add(-10 * time.Minute))
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, r1.Id, rs[0].Id)
	assert.Equal(t, r2.Id, rs[1].Id)

	require.NoError(t, store.Delete(r1.Id))
	assert.False(t, store.Knows(r1.Id))
}
