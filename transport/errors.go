// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "errors"

// permanent is an error that will always be returned if its source receives
// the same payload.
type permanent struct {
	err error
}

// Permanent wraps an error to indicate that resending the payload can never
// succeed and the records should be dropped instead of retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func (p permanent) Error() string {
	return "permanent error: " + p.err.Error()
}

// Unwrap returns the wrapped error for use by errors.Is and errors.As.
func (p permanent) Unwrap() error {
	return p.err
}

// IsPermanent checks if an error was wrapped with the Permanent function,
// directly or at any depth of a wrap chain.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.As(err, &permanent{})
}
