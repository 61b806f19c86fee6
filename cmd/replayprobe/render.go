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
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/replayprobe/pkg/ux"
	"github.com/AleutianAI/replayprobe/services/replay/explore"
	"github.com/AleutianAI/replayprobe/services/replay/point"
)

func reportFields(r *explore.Report) []ux.Field {
	fields := []ux.Field{
		{Key: "run", Value: r.RunID},
		{Key: "recording", Value: r.RecordingID},
		{Key: "session", Value: r.SessionID},
		{Key: "description", Value: r.Description},
		{Key: "outcome", Value: string(r.Outcome)},
		{Key: "state", Value: r.FinalState.String()},
		{Key: "duration", Value: r.Duration().Round(time.Millisecond).String()},
		{Key: "sources", Value: strconv.Itoa(r.Sources)},
		{Key: "source", Value: r.SourceID},
	}
	if r.LineLocations > 0 {
		fields = append(fields,
			ux.Field{Key: "lines", Value: strconv.Itoa(r.LineLocations)},
			ux.Field{Key: "tried", Value: strconv.Itoa(r.CandidatesTried)},
		)
	}
	if r.Location != nil {
		fields = append(fields, ux.Field{
			Key:   "location",
			Value: fmt.Sprintf("%s:%d:%d", r.Location.SourceID, r.Location.Line, r.Location.Column),
		})
	}
	if r.Logpoint != nil {
		fields = append(fields,
			ux.Field{Key: "point", Value: r.Logpoint.Point},
			ux.Field{Key: "time", Value: strconv.FormatFloat(r.Logpoint.Time, 'f', -1, 64)},
		)
	}
	fields = append(fields,
		ux.Field{Key: "position", Value: r.Position},
		ux.Field{Key: "pause", Value: r.PauseID},
		ux.Field{Key: "object", Value: r.ObjectID},
		ux.Field{Key: "step", Value: r.StepTarget},
		ux.Field{Key: "error", Value: r.Error},
		ux.Field{Key: "release", Value: r.ReleaseError},
	)
	return fields
}

func renderReport(p *ux.Printer, r *explore.Report) {
	if p.Mode() == ux.ModeMachine {
		p.Fields(reportFields(r))
		return
	}

	var b strings.Builder
	sub := ux.NewPrinter(&b, ux.ModePlain)
	sub.Fields(reportFields(r))
	p.Box("Exploration "+string(r.Outcome), strings.TrimRight(b.String(), "\n"), !r.Outcome.Success())
}

func renderPoint(p *ux.Printer, text string, pt point.Point) {
	fields := []ux.Field{
		{Key: "point", Value: text},
		{Key: "checkpoint", Value: strconv.FormatInt(pt.Checkpoint, 10)},
		{Key: "progress", Value: strconv.FormatInt(pt.Progress, 10)},
	}
	if pos := pt.Position; pos != nil {
		fields = append(fields,
			ux.Field{Key: "kind", Value: string(pos.Kind)},
			ux.Field{Key: "offset", Value: strconv.FormatInt(pos.Offset, 10)},
			ux.Field{Key: "frame", Value: strconv.FormatInt(pos.FrameIndex, 10)},
			ux.Field{Key: "function", Value: pos.FunctionID},
		)
	}
	p.Fields(fields)
}

func historyRows(reports []*explore.Report) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.RunID,
			r.StartedAt.Local().Format(time.DateTime),
			r.RecordingID,
			string(r.Outcome),
			r.FinalState.String(),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	return rows
}

var historyHeader = []string{"RUN", "STARTED", "RECORDING", "OUTCOME", "STATE", "DURATION"}
