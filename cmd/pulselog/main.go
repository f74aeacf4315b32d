// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Command pulselog smoke-tests the SDK against a live collection service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
