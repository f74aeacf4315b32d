// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseAttrs(t *testing.T) {
	attrs, err := parseAttrs([]string{"sku=a-1", "qty=2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sku": "a-1", "qty": "2"}, attrs)

	_, err = parseAttrs([]string{"no-separator"})
	require.Error(t, err)

	attrs, err = parseAttrs(nil)
	require.NoError(t, err)
	assert.Nil(t, attrs)
}

func TestSendCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"send", "--api-key", "pk-123", "--endpoint", srv.URL, "--count", "3", "--name", "cli_test"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "delivered 3")
}

func TestSendCommandRejectsBadKey(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"send", "--api-key", "bad key", "--endpoint", "https://ingest.example.com"})
	require.Error(t, cmd.Execute())
}

func TestViewsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"variant":"b"}`))
	}))
	t.Cleanup(srv.Close)

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"views", "exp", "--api-key", "pk-123", "--endpoint", srv.URL})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), `exp: {"variant":"b"}`)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dev\n", out.String())
}
