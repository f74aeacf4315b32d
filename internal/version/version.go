// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package version holds build information stamped at link time.
package version

import "runtime"

// Version is replaced at link time on release builds.
var Version = "dev"

// UserAgent identifies this SDK build to the collection service.
func UserAgent() string {
	return "pulselog-go/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
