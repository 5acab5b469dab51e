// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package gather

import (
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/spinnaker/dataspeedup/pkg/sdp"
)

func TestConfigValid(t *testing.T) {
	if err := testConfig(1000).CheckValid(); err != nil {
		t.Fatal(err)
	}
	if err := DefaultTiming().CheckValid(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigInvalid(t *testing.T) {
	conf := Config{Port: 70000, X: -1, Timing: Timing{}}

	errs := conf.CheckValid()
	if errs == nil {
		t.Fatal("Invalid Config was accepted")
	}

	// Host, Port, Length, X and the nested Timing errors are collected.
	if n := len(errs.(*multierror.Error).WrappedErrors()); n < 5 {
		t.Fatalf("Expected at least five errors, got %d: %v", n, errs)
	}
}

func TestConfigAddresses(t *testing.T) {
	conf := testConfig(1000)
	conf.ChipX, conf.ChipY = 4, 8

	if dest := conf.Destination(); dest != (sdp.Address{X: 1, Y: 2, CPU: 3, Port: 17893}) {
		t.Fatalf("Destination is %v", dest)
	}
	if dest := conf.TagDestination(); dest != (sdp.Address{X: 4, Y: 8}) {
		t.Fatalf("Tag destination is %v", dest)
	}
}
