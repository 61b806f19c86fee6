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

	"github.com/AleutianAI/replayprobe/services/replay/api"
)

// chooseLogpoint searches one randomly chosen source for a hit location.
//
// Line locations are drawn uniformly without replacement. Each drawn line
// is tried once at a uniformly chosen column; a line with no hits (or no
// columns) is discarded. The search ends with ErrSearchExhausted once every
// line has been discarded.
func (d *Driver) chooseLogpoint(ctx context.Context, s *Session, r *Report, sources []api.Source, logger *slog.Logger) (api.Location, api.Logpoint, error) {
	source := sources[d.picker.IntN(len(sources))]
	r.SourceID = source.SourceID
	s.setState(StateSearchingLineLocation)

	lines, err := d.client.GetPossibleBreakpoints(ctx, s.SessionID, source.SourceID)
	if err != nil {
		return api.Location{}, api.Logpoint{}, fmt.Errorf("possible breakpoints for %s: %w", source.SourceID, err)
	}
	r.LineLocations = len(lines)
	logger.Info("searching source",
		slog.String("source_id", source.SourceID),
		slog.String("url", source.URL),
		slog.Int("line_locations", len(lines)))

	collector := &logpointCollector{}
	d.client.OnAnalysisResult(func(res api.AnalysisResult) {
		if !collector.add(res) {
			logger.Debug("ignoring result for another analysis", slog.String("analysis_id", res.AnalysisID))
		}
	})

	remaining := make([]api.LineLocations, len(lines))
	copy(remaining, lines)

	for len(remaining) > 0 {
		i := d.picker.IntN(len(remaining))
		line := remaining[i]
		r.CandidatesTried++

		if len(line.Columns) == 0 {
			logger.Debug("line has no columns", slog.Int("line", line.Line))
			remaining = removeAt(remaining, i)
			continue
		}

		loc := api.Location{
			SourceID: source.SourceID,
			Line:     line.Line,
			Column:   line.Columns[d.picker.IntN(len(line.Columns))],
		}
		logpoints, err := d.logpoints(ctx, s, collector, loc)
		if err != nil {
			return api.Location{}, api.Logpoint{}, err
		}
		if len(logpoints) == 0 {
			logger.Debug("no hits, backtracking",
				slog.Int("line", loc.Line),
				slog.Int("column", loc.Column),
				slog.Int("remaining", len(remaining)-1))
			remaining = removeAt(remaining, i)
			continue
		}

		logger.Info("location hit",
			slog.Int("line", loc.Line),
			slog.Int("column", loc.Column),
			slog.Int("logpoints", len(logpoints)))
		return loc, logpoints[d.picker.IntN(len(logpoints))], nil
	}

	return api.Location{}, api.Logpoint{}, fmt.Errorf("source %s after %d line locations: %w",
		source.SourceID, r.CandidatesTried, ErrSearchExhausted)
}

// logpoints runs an effectful analysis over loc and returns every value it
// produced. Result events arrive before the run command completes.
func (d *Driver) logpoints(ctx context.Context, s *Session, collector *logpointCollector, loc api.Location) ([]api.Logpoint, error) {
	analysisID, err := d.client.CreateAnalysis(ctx, api.LogpointMapper, true)
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}
	collector.reset(analysisID)

	if err := d.client.AddLocation(ctx, analysisID, s.SessionID, loc); err != nil {
		return nil, fmt.Errorf("add location %s:%d:%d: %w", loc.SourceID, loc.Line, loc.Column, err)
	}
	if err := d.client.RunAnalysis(ctx, analysisID); err != nil {
		return nil, fmt.Errorf("run analysis %s: %w", analysisID, err)
	}
	return collector.take(), nil
}

// removeAt swaps the last element into i and shrinks the slice.
func removeAt[T any](s []T, i int) []T {
	last := len(s) - 1
	s[i] = s[last]
	return s[:last]
}
