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

// State is a step of an exploration.
type State int

const (
	StateStart State = iota
	StateHaveSession
	StateSourcesEnumerated
	StateSearchingLineLocation
	StateLogpointChosen
	StatePaused
	StateObjectPreviewed
	StateStepped
	StateDone
	StateNoSources
	StateAborted
)

var stateNames = [...]string{
	StateStart:                 "start",
	StateHaveSession:           "have_session",
	StateSourcesEnumerated:     "sources_enumerated",
	StateSearchingLineLocation: "searching_line_location",
	StateLogpointChosen:        "logpoint_chosen",
	StatePaused:                "paused",
	StateObjectPreviewed:       "object_previewed",
	StateStepped:               "stepped",
	StateDone:                  "done",
	StateNoSources:             "no_sources",
	StateAborted:               "aborted",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further step follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateNoSources || s == StateAborted
}

// Outcome summarizes how an exploration ended.
type Outcome string

const (
	// OutcomeCompleted means every step ran.
	OutcomeCompleted Outcome = "completed"

	// OutcomeNoSources means the recording had no sources. A success.
	OutcomeNoSources Outcome = "no_sources"

	// OutcomeFailed means a step after setup failed and was logged.
	OutcomeFailed Outcome = "failed"

	// OutcomeAborted means setup failed or an invariant was violated.
	OutcomeAborted Outcome = "aborted"
)

// Success reports whether the outcome counts as a successful run.
func (o Outcome) Success() bool {
	return o == OutcomeCompleted || o == OutcomeNoSources
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unknown names decode to StateStart.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	*s = StateStart
	return nil
}
