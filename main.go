// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Debugcast - ANT Debug Channel Broadcaster and Monitor
//
// A CLI tool for broadcasting debug field pages on an ANT debug channel
// and for decoding and filtering them on the receiving side.

package main

import (
	"os"

	"github.com/Thermoquad/debugcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
