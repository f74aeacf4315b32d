// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newViewsCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views id [id...]",
		Short: "Resolve dynamic view definitions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.build()
			if err != nil {
				return err
			}
			views := client.DynamicViews(cmd.Context(), args...)
			for _, id := range args {
				def, ok := views[id]
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: <unresolved>\n", id)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, def)
			}
			return client.Shutdown(cmd.Context())
		},
	}
}
