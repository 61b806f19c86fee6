// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Connector opens a fresh connection for one exploration.
type Connector func(ctx context.Context) (Conn, error)

// Recorder stores finished reports.
type Recorder interface {
	Record(ctx context.Context, report *Report) error
}

// Runner runs explorations one at a time.
//
// Only one exploration is active per Runner. Starting a new one closes the
// connection of the previous one first.
type Runner struct {
	connect  Connector
	base     Config
	recorder Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	current Conn
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder stores every report in rec.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// NewRunner creates a runner. base supplies the Config of every
// exploration except RecordingID and LabelURL, which Explore sets.
func NewRunner(connect Connector, base Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		connect: connect,
		base:    base,
		logger:  base.Logger,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Explore runs one exploration of recordingID.
//
// Outputs:
//
//	*Report - Non-nil once a connection was opened.
//	error - Connection failure or the error of an aborted exploration.
func (r *Runner) Explore(ctx context.Context, recordingID, labelURL string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		_ = r.current.Close()
		r.current = nil
	}

	conn, err := r.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	r.current = conn

	cfg := r.base
	cfg.RecordingID = recordingID
	cfg.LabelURL = labelURL
	driver, err := NewDriver(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	report, runErr := driver.Run(ctx)
	if r.recorder != nil {
		if err := r.recorder.Record(ctx, report); err != nil {
			r.logger.Warn("recording exploration report",
				slog.String("run_id", report.RunID),
				slog.String("error", err.Error()))
		}
	}
	return report, runErr
}

// Close closes the connection of the last exploration, if any.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
