// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/replayprobe/pkg/logging"
	"github.com/AleutianAI/replayprobe/pkg/ux"
	"github.com/AleutianAI/replayprobe/services/replay/config"
)

const serviceName = "replayprobe"

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

// app carries state shared by every command.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	machine    bool

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Explore replay recordings through the replay protocol",
		Long: `replayprobe opens a session on a recorded browser execution, samples
a random logpoint and exercises the pause, preview and step commands
against it. Every run is kept in a local history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultFile+" when present)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: auto, text, json")
	flags.BoolVar(&a.machine, "machine", false, "tab separated output without decoration")

	root.AddCommand(
		newExploreCmd(a),
		newPointCmd(a),
		newHistoryCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

// init loads the configuration and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	cfg.Log.Service = serviceName
	cfg.Log.Output = cmd.ErrOrStderr()

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	slog.SetDefault(logger.Slog())
	return nil
}

func (a *app) slog() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger.Slog()
}

func (a *app) printer(w io.Writer) *ux.Printer {
	return ux.ForWriter(w, a.machine)
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.printer(cmd.OutOrStdout()).Fields([]ux.Field{
				{Key: "version", Value: version},
				{Key: "commit", Value: commit},
				{Key: "go", Value: runtime.Version()},
				{Key: "platform", Value: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)},
			})
		},
	}
}
