// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCommand(opts *clientOptions) *cobra.Command {
	var (
		name  string
		count int
		attrs []string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Log events, flush them to the service and print the counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			attributes, err := parseAttrs(attrs)
			if err != nil {
				return err
			}
			client, err := opts.build()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := client.Start(ctx); err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				client.LogEventAttrs(name, attributes)
			}
			client.Flush()
			if err := client.Shutdown(ctx); err != nil {
				return err
			}

			st := client.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d, delivered %d, dropped %d, still pending %d\n",
				st.Enqueued, st.Delivered, st.Dropped, client.Pending())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "smoke_test", "event name")
	cmd.Flags().IntVar(&count, "count", 1, "how many events to log")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "event attribute as key=value (repeatable)")
	return cmd
}

func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("attribute %q is not key=value", pair)
		}
		attrs[key] = value
	}
	return attrs, nil
}
