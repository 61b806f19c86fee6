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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/replayprobe/services/replay/config"
	"github.com/AleutianAI/replayprobe/services/replay/explore"
	"github.com/AleutianAI/replayprobe/services/replay/protocol"
	"github.com/AleutianAI/replayprobe/services/replay/telemetry"
)

var errNoRecording = errors.New("a recording id is required (--recording or exploration.recording_id)")

func newExploreCmd(a *app) *cobra.Command {
	var (
		recording   string
		dispatch    string
		labelURL    string
		seed        uint64
		runs        int
		metricsAddr string
		perSecond   float64
	)

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Run explorations of a recording",
		Example: `  replayprobe explore --recording 5f3c... --dispatch wss://dispatch.example/
  replayprobe explore --recording 5f3c... --runs 10 --seed 42 --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("recording") {
				cfg.Exploration.RecordingID = recording
			}
			if flags.Changed("dispatch") {
				cfg.Dispatch.Address = dispatch
			}
			if flags.Changed("url") {
				cfg.Exploration.LabelURL = labelURL
			}
			if flags.Changed("seed") {
				cfg.Exploration.Seed = seed
			}
			if flags.Changed("runs") {
				cfg.Exploration.Runs = runs
			}
			if flags.Changed("metrics-addr") {
				cfg.Telemetry.MetricsAddr = metricsAddr
			}
			if flags.Changed("rate") {
				cfg.Dispatch.CommandsPerSecond = perSecond
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Exploration.RecordingID == "" {
				return errNoRecording
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.explore(ctx, cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&recording, "recording", "", "recording id to explore")
	flags.StringVar(&dispatch, "dispatch", "", "dispatch WebSocket address")
	flags.StringVar(&labelURL, "url", "", "URL attached to the session label")
	flags.Uint64Var(&seed, "seed", 0, "random seed, 0 for a time based seed")
	flags.IntVar(&runs, "runs", 1, "number of sequential explorations")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	flags.Float64Var(&perSecond, "rate", 0, "maximum commands per second, 0 for unlimited")
	return cmd
}

// explore runs the configured explorations and, when asked, the metrics
// server next to them.
func (a *app) explore(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := a.slog()
	out := a.printer(cmd.OutOrStdout())

	tcfg := cfg.Telemetry
	tcfg.ServiceName = serviceName
	tcfg.ServiceVersion = version
	if tcfg.MetricsAddr != "" && (tcfg.MetricExporter == "" || tcfg.MetricExporter == telemetry.ExporterNone) {
		tcfg.MetricExporter = telemetry.ExporterPrometheus
	}
	providers, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	var opts []explore.RunnerOption
	if !cfg.History.Disabled {
		hist, err := a.openHistory()
		if err != nil {
			return err
		}
		defer hist.Close()
		opts = append(opts, explore.WithRecorder(hist))
	}

	runner := explore.NewRunner(connector(cfg.Dispatch, logger), explore.Config{
		Picker:          explore.NewPicker(cfg.Exploration.Seed),
		Logger:          logger,
		TeardownTimeout: cfg.Exploration.TeardownTimeout,
	}, opts...)
	defer runner.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := tcfg.MetricsAddr; addr != "" {
		router := telemetry.NewRouter(serviceName, providers.MetricsHandler(), nil)
		g.Go(func() error {
			return telemetry.Serve(gctx, addr, router, logger)
		})
	}

	total := cfg.Exploration.Runs
	var aborted int
	g.Go(func() error {
		defer cancel()
		for i := 0; i < total; i++ {
			if gctx.Err() != nil {
				return nil
			}
			report, err := runner.Explore(gctx, cfg.Exploration.RecordingID, cfg.Exploration.LabelURL)
			if report == nil {
				return err
			}
			renderReport(out, report)
			if err != nil {
				aborted++
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if aborted > 0 {
		return fmt.Errorf("%d of %d explorations aborted", aborted, total)
	}
	return ctx.Err()
}

// connector dials a fresh channel to the dispatch address and waits until it
// is open.
func connector(dc config.DispatchConfig, logger *slog.Logger) explore.Connector {
	ws := protocol.DefaultWebSocketConfig()
	if dc.HandshakeTimeout > 0 {
		ws.HandshakeTimeout = dc.HandshakeTimeout
	}
	if dc.MaxMessageBytes > 0 {
		ws.MaxMessageBytes = dc.MaxMessageBytes
	}

	opts := []protocol.Option{
		protocol.WithLogger(logger),
		protocol.WithDialer(protocol.NewWebSocketDialer(ws)),
		protocol.WithCallbacks(protocol.Callbacks{
			OnError: func(err error) {
				logger.Warn("command channel error", slog.String("error", err.Error()))
			},
			OnClose: func() {
				logger.Debug("command channel closed")
			},
		}),
	}

	return func(ctx context.Context) (explore.Conn, error) {
		chOpts := opts
		if dc.CommandsPerSecond > 0 {
			burst := max(1, int(dc.CommandsPerSecond))
			chOpts = append(chOpts[:len(chOpts):len(chOpts)],
				protocol.WithRateLimit(rate.NewLimiter(rate.Limit(dc.CommandsPerSecond), burst)))
		}

		ch := protocol.Dial(ctx, dc.Address, chOpts...)
		if err := ch.Ready(ctx); err != nil {
			_ = ch.Close()
			return nil, err
		}
		return ch, nil
	}
}
