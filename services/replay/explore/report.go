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
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/replayprobe/services/replay/api"
)

// Report describes one finished exploration.
type Report struct {
	RunID       string    `json:"run_id"`
	RecordingID string    `json:"recording_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Description string    `json:"description,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	Outcome    Outcome `json:"outcome"`
	FinalState State   `json:"final_state"`
	Error      string  `json:"error,omitempty"`

	Sources         int           `json:"sources"`
	SourceID        string        `json:"source_id,omitempty"`
	LineLocations   int           `json:"line_locations"`
	CandidatesTried int           `json:"candidates_tried"`
	Location        *api.Location `json:"location,omitempty"`
	Logpoint        *api.Logpoint `json:"logpoint,omitempty"`
	Position        string        `json:"position,omitempty"`
	PauseID         string        `json:"pause_id,omitempty"`
	ObjectID        string        `json:"object_id,omitempty"`
	StepTarget      string        `json:"step_target,omitempty"`

	ReleaseError string `json:"release_error,omitempty"`
}

func newReport(recordingID string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		RecordingID: recordingID,
		StartedAt:   time.Now().UTC(),
		FinalState:  StateStart,
	}
}

// Duration returns how long the exploration ran.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
