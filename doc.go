// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

// Package pulselog is an embeddable telemetry client. Events logged through
// a Client are buffered in a bounded, optionally durable local store and
// uploaded in batches in the background; the logging calls never block on
// the network and never fail.
//
//	cfg := pulselog.NewDefaultConfig()
//	cfg.APIKey = "pk-123"
//	cfg.Endpoint = "https://ingest.example.com"
//	cfg.Storage.Directory = "/var/lib/myapp/pulselog"
//
//	client, err := pulselog.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = client.Start(ctx)
//	defer client.Shutdown(ctx)
//
//	client.LogEvent("app_opened")
//	client.LogEventAttrs("purchase", map[string]string{"sku": "a-1"})
//
// Delivery policy (batch size, cadence, offline mode, pending bound) can be
// changed at runtime through the Set methods. The two side channels,
// LogUserInfo and DynamicViews, talk to the service directly without going
// through the event queue.
package pulselog
