// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import "encoding/json"

// LogpointMapper is the analysis mapper used for logpoint discovery. It
// emits one result per hit, keyed by point.
const LogpointMapper = `
    const { point, time, pauseId } = input;
    return [{
      key: point,
      value: { time, pauseId, point }
    }];`

// SourceKind classifies a script source.
type SourceKind string

const (
	SourceKindScriptSource  SourceKind = "scriptSource"
	SourceKindInlineScript  SourceKind = "inlineScript"
	SourceKindOtherScript   SourceKind = "otherScript"
	SourceKindHTML          SourceKind = "html"
	SourceKindPrettyPrinted SourceKind = "prettyPrinted"
	SourceKindSourceMapped  SourceKind = "sourceMapped"
)

// Source is the params of a Debugger.newSource event.
type Source struct {
	SourceID string     `json:"sourceId"`
	Kind     SourceKind `json:"kind,omitempty"`
	URL      string     `json:"url,omitempty"`
}

// LineLocations lists the breakable columns on one line.
type LineLocations struct {
	Line    int   `json:"line"`
	Columns []int `json:"columns"`
}

// Location is a concrete position in a source.
type Location struct {
	SourceID string `json:"sourceId"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Logpoint is one value produced by the logpoint mapper.
type Logpoint struct {
	Time    float64 `json:"time"`
	PauseID string  `json:"pauseId,omitempty"`
	Point   string  `json:"point"`
}

// AnalysisEntry is one key/value pair of an analysis result.
type AnalysisEntry struct {
	Key   json.RawMessage `json:"key"`
	Value Logpoint        `json:"value"`
}

// AnalysisResult is the params of an Analysis.analysisResult event.
type AnalysisResult struct {
	AnalysisID string          `json:"analysisId"`
	Results    []AnalysisEntry `json:"results"`
}

// Region is a span of execution time.
type Region struct {
	Begin json.RawMessage `json:"begin"`
	End   json.RawMessage `json:"end"`
}

// Regions is the params of Session.missingRegions and
// Session.unprocessedRegions.
type Regions struct {
	Regions []Region `json:"regions"`
}

// ObjectRef identifies an object within a pause.
type ObjectRef struct {
	ObjectID  string `json:"objectId"`
	ClassName string `json:"className,omitempty"`
}

// PauseData carries the objects known at a pause.
type PauseData struct {
	Objects []ObjectRef `json:"objects,omitempty"`
}

// Pause is the result of Session.createPause.
type Pause struct {
	PauseID string    `json:"pauseId"`
	Data    PauseData `json:"data"`
}

// StepTarget is where a step lands.
type StepTarget struct {
	Point string  `json:"point"`
	Time  float64 `json:"time"`
}

// StepResult is the result of Debugger.findStepOverTarget.
type StepResult struct {
	Target StepTarget `json:"target"`
}

// RecordingDescription is the result of Recording.getDescription. Fields
// are best-effort; Raw keeps the full payload.
type RecordingDescription struct {
	Duration float64         `json:"duration,omitempty"`
	Title    string          `json:"title,omitempty"`
	URL      string          `json:"url,omitempty"`
	Raw      json.RawMessage `json:"-"`
}
