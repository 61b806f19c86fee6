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
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/replayprobe/services/replay/api"
	"github.com/AleutianAI/replayprobe/services/replay/point"
)

// DefaultTeardownTimeout bounds session release when the run context has
// already ended.
const DefaultTeardownTimeout = 30 * time.Second

// descriptionPlaceholder stands in for a recording description that could
// not be fetched.
const descriptionPlaceholder = "<none>"

// Picker draws uniform indexes. *rand.Rand satisfies it.
type Picker interface {
	// IntN returns a value in [0, n). n is always positive.
	IntN(n int) int
}

// NewPicker returns a seeded Picker. Seed 0 seeds from the clock.
func NewPicker(seed uint64) Picker {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Conn is a command connection the driver owns for one exploration.
type Conn interface {
	api.Commander
	Close() error
}

// Config configures a Driver.
type Config struct {
	// RecordingID is the recording to explore. Required.
	RecordingID string

	// LabelURL is attached to the session with Internal.labelTestSession.
	LabelURL string

	// Picker supplies randomness. Defaults to a clock-seeded generator.
	Picker Picker

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// TeardownTimeout bounds session release. Defaults to
	// DefaultTeardownTimeout.
	TeardownTimeout time.Duration
}

// Driver runs one exploration over a connection.
type Driver struct {
	conn   Conn
	client *api.Client
	cfg    Config
	logger *slog.Logger
	picker Picker
}

// NewDriver creates a driver that owns conn. Run closes conn.
func NewDriver(conn Conn, cfg Config) (*Driver, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if cfg.RecordingID == "" {
		return nil, ErrEmptyRecordingID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Picker == nil {
		cfg.Picker = NewPicker(0)
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	return &Driver{
		conn:   conn,
		client: api.NewClient(conn, cfg.Logger),
		cfg:    cfg,
		logger: cfg.Logger,
		picker: cfg.Picker,
	}, nil
}

// Run performs the exploration.
//
// Description:
//
//	Setup failures (session creation, labeling, processing) abort the run.
//	Failures after setup are logged and recorded in the report with
//	OutcomeFailed. Invariant violations and an exhausted logpoint search
//	abort the run. The session is released and the connection closed in
//	every case.
//
// Outputs:
//
//	*Report - Always non-nil.
//	error - Non-nil only when the outcome is OutcomeAborted.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	s := NewSession(d.cfg.RecordingID)
	report := newReport(d.cfg.RecordingID)
	logger := d.logger.With(
		slog.String("run_id", report.RunID),
		slog.String("recording_id", d.cfg.RecordingID),
	)

	ctx, span := tracer.Start(ctx, "Driver.Run", trace.WithAttributes(
		attribute.String("replay.run_id", report.RunID),
		attribute.String("replay.recording_id", d.cfg.RecordingID),
	))
	defer span.End()

	outcome, err := d.run(ctx, s, report, logger)
	d.teardown(ctx, s, report, logger)

	report.Outcome = outcome
	report.FinishedAt = time.Now().UTC()
	report.FinalState = s.State()
	if err != nil {
		report.Error = err.Error()
	}
	recordRunMetrics(ctx, outcome, report.Duration(), report.CandidatesTried)
	span.SetAttributes(attribute.String("replay.outcome", string(outcome)))

	switch outcome {
	case OutcomeAborted:
		s.setState(StateAborted)
		report.FinalState = StateAborted
		logger.Error("exploration aborted", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	case OutcomeFailed:
		logger.Error("exploration step failed", slog.String("error", err.Error()))
		span.SetStatus(codes.Error, err.Error())
	default:
		logger.Info("exploration finished",
			slog.String("outcome", string(outcome)),
			slog.Duration("duration", report.Duration()))
		span.SetStatus(codes.Ok, "")
	}
	return report, nil
}

func (d *Driver) run(ctx context.Context, s *Session, r *Report, logger *slog.Logger) (Outcome, error) {
	if err := d.setup(ctx, s, r, logger); err != nil {
		return OutcomeAborted, &StepError{State: s.State(), Err: err}
	}

	sources, err := d.enumerateSources(ctx, s, r, logger)
	if err != nil {
		return classify(&StepError{State: s.State(), Err: err})
	}
	if len(sources) == 0 {
		logger.Info("recording has no sources")
		s.setState(StateNoSources)
		return OutcomeNoSources, nil
	}

	if err := d.probe(ctx, s, r, sources, logger); err != nil {
		return classify(&StepError{State: s.State(), Err: err})
	}
	s.setState(StateDone)
	return OutcomeCompleted, nil
}

func classify(err error) (Outcome, error) {
	if isFatal(err) {
		return OutcomeAborted, err
	}
	return OutcomeFailed, err
}

// setup opens and prepares the session.
func (d *Driver) setup(ctx context.Context, s *Session, r *Report, logger *slog.Logger) error {
	d.client.OnMissingRegions(func(regions api.Regions) {
		logger.Info("missing regions", slog.Any("regions", regions.Regions))
	})
	d.client.OnUnprocessedRegions(func(regions api.Regions) {
		logger.Info("unprocessed regions", slog.Any("regions", regions.Regions))
	})

	desc, err := d.client.GetDescription(ctx, s.RecordingID)
	if err != nil {
		logger.Warn("recording description unavailable", slog.String("error", err.Error()))
		r.Description = descriptionPlaceholder
	} else {
		r.Description = string(desc.Raw)
	}
	logger.Info("starting exploration", slog.String("description", r.Description))

	sessionID, err := d.client.CreateSession(ctx, s.RecordingID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.SessionID = sessionID
	r.SessionID = sessionID
	s.setState(StateHaveSession)
	logger.Info("session created", slog.String("session_id", sessionID))

	if err := d.client.LabelTestSession(ctx, sessionID, d.cfg.LabelURL); err != nil {
		return fmt.Errorf("label session: %w", err)
	}
	if err := d.client.EnsureProcessed(ctx, sessionID); err != nil {
		return fmt.Errorf("ensure processed: %w", err)
	}
	return nil
}

func (d *Driver) enumerateSources(ctx context.Context, s *Session, r *Report, logger *slog.Logger) ([]api.Source, error) {
	d.client.OnNewSource(s.addSource)
	if err := d.client.FindSources(ctx, s.SessionID); err != nil {
		return nil, fmt.Errorf("find sources: %w", err)
	}

	sources := s.Sources()
	r.Sources = len(sources)
	s.setState(StateSourcesEnumerated)
	logger.Info("sources enumerated", slog.Int("count", len(sources)))
	return sources, nil
}

// probe runs the logpoint search, then pauses, previews and steps.
func (d *Driver) probe(ctx context.Context, s *Session, r *Report, sources []api.Source, logger *slog.Logger) error {
	loc, lp, err := d.chooseLogpoint(ctx, s, r, sources, logger)
	if err != nil {
		return err
	}
	s.setState(StateLogpointChosen)
	r.Location = &loc
	r.Logpoint = &lp

	at, err := s.Codec.Parse(lp.Point)
	if err != nil {
		return fmt.Errorf("logpoint %s: %w", lp.Point, err)
	}
	pointText, err := s.Codec.Stringify(at)
	if err != nil {
		return fmt.Errorf("logpoint %s: %w", lp.Point, err)
	}
	r.Position = at.String()
	logger.Info("logpoint chosen",
		slog.String("source_id", loc.SourceID),
		slog.Int("line", loc.Line),
		slog.Int("column", loc.Column),
		slog.String("point", pointText),
		slog.String("position", r.Position))

	pause, err := d.client.CreatePause(ctx, s.SessionID, pointText)
	if err != nil {
		return fmt.Errorf("create pause: %w", err)
	}
	s.setState(StatePaused)
	r.PauseID = pause.PauseID
	logger.Info("paused", slog.String("pause_id", pause.PauseID), slog.Int("objects", len(pause.Data.Objects)))

	if n := len(pause.Data.Objects); n > 0 {
		obj := pause.Data.Objects[d.picker.IntN(n)]
		if _, err := d.client.GetObjectPreview(ctx, s.SessionID, pause.PauseID, obj.ObjectID); err != nil {
			return fmt.Errorf("object preview %s: %w", obj.ObjectID, err)
		}
		s.setState(StateObjectPreviewed)
		r.ObjectID = obj.ObjectID
		logger.Info("object previewed", slog.String("object_id", obj.ObjectID), slog.String("class", obj.ClassName))
	} else {
		logger.Info("pause has no objects, skipping preview")
	}

	step, err := d.client.FindStepOverTarget(ctx, s.SessionID, pointText)
	if err != nil {
		return fmt.Errorf("step over: %w", err)
	}
	s.setState(StateStepped)
	r.StepTarget = step.Target.Point

	if step.Target.Point != "" {
		target, err := s.Codec.Parse(step.Target.Point)
		if err != nil {
			return fmt.Errorf("step target %s: %w", step.Target.Point, err)
		}
		forward, err := point.Precedes(at, target)
		if err != nil {
			return fmt.Errorf("step target %s: %w", step.Target.Point, err)
		}
		if !forward {
			logger.Warn("step target does not follow the logpoint",
				slog.String("from", at.String()),
				slog.String("to", target.String()))
		}
	}
	logger.Info("stepped over", slog.String("target", step.Target.Point))
	return nil
}

// teardown releases the session and closes the connection. Release runs
// even when ctx has ended.
func (d *Driver) teardown(ctx context.Context, s *Session, r *Report, logger *slog.Logger) {
	if s.SessionID != "" {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.TeardownTimeout)
		if err := d.client.ReleaseSession(relCtx, s.SessionID); err != nil {
			r.ReleaseError = err.Error()
			logger.Warn("release session failed",
				slog.String("session_id", s.SessionID),
				slog.String("error", err.Error()))
		}
		cancel()
	}
	if err := d.conn.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("closing connection", slog.String("error", err.Error()))
	}
}
