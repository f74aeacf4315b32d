// Copyright The PulseLog Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pulselog/pulselog-go"
	"github.com/pulselog/pulselog-go/internal/version"
)

// clientOptions carries the persistent flags shared by every subcommand.
type clientOptions struct {
	configFile string
	apiKey     string
	endpoint   string
	storageDir string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:           "pulselog",
		Short:         "Exercise the PulseLog SDK against a collection service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", "", "API key (overrides the configuration)")
	cmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "service base URL (overrides the configuration)")
	cmd.PersistentFlags().StringVar(&opts.storageDir, "storage-dir", "", "journal directory (overrides the configuration)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log SDK diagnostics to stderr")

	cmd.AddCommand(newSendCommand(opts), newViewsCommand(opts), newVersionCommand())
	return cmd
}

// build loads the configuration, applies the flag overrides and constructs
// the client.
func (o *clientOptions) build() (*pulselog.Client, error) {
	cfg, err := pulselog.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}
	// One-shot invocations are not sessions.
	cfg.TrackSessions = false
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	if o.endpoint != "" {
		cfg.Endpoint = o.endpoint
	}
	if o.storageDir != "" {
		cfg.Storage.Directory = o.storageDir
	}
	if o.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		cfg.Logger = logger
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return pulselog.New(cfg)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the SDK version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
}
