// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermanent(t *testing.T) {
	sentinel := errors.New("testError")

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "nil", err: nil, permanent: false},
		{name: "plain", err: sentinel, permanent: false},
		{name: "wrapped", err: Permanent(sentinel), permanent: true},
		{name: "deeply wrapped", err: fmt.Errorf("outer: %w", Permanent(sentinel)), permanent: true},
		{name: "permanent inside plain wrap", err: fmt.Errorf("a: %w", fmt.Errorf("b: %w", Permanent(sentinel))), permanent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestPermanentUnwrap(t *testing.T) {
	sentinel := errors.New("testError")
	err := Permanent(sentinel)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "testError")
}
