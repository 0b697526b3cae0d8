// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs the unit tests of every package.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Unit runs the unit tests with the race detector.
func (Test) Unit() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Integration runs every test including those behind the integration build
// tag. The tagged tests start containers and need a Docker daemon.
func (Test) Integration() error {
	return sh.RunV(binGo, "test", "-tags", "integration", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the total.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}
