// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api provides typed commands and events over a replay command
// channel.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/replayprobe/services/replay/protocol"
)

// Command methods.
const (
	MethodGetDescription         = "Recording.getDescription"
	MethodCreateSession          = "Recording.createSession"
	MethodReleaseSession         = "Recording.releaseSession"
	MethodLabelTestSession       = "Internal.labelTestSession"
	MethodEnsureProcessed        = "Session.ensureProcessed"
	MethodCreatePause            = "Session.createPause"
	MethodFindSources            = "Debugger.findSources"
	MethodGetPossibleBreakpoints = "Debugger.getPossibleBreakpoints"
	MethodFindStepOverTarget     = "Debugger.findStepOverTarget"
	MethodCreateAnalysis         = "Analysis.createAnalysis"
	MethodAddLocation            = "Analysis.addLocation"
	MethodRunAnalysis            = "Analysis.runAnalysis"
	MethodGetObjectPreview       = "Pause.getObjectPreview"
)

// ErrMissingField indicates a response without a required member.
var ErrMissingField = errors.New("response missing required field")

// Commander sends commands and registers event handlers.
// *protocol.Channel satisfies it.
type Commander interface {
	Send(ctx context.Context, method string, params any, opts ...protocol.SendOption) (json.RawMessage, error)
	On(kind protocol.EventKind, h protocol.Handler) bool
}

// Client issues typed commands through a Commander.
type Client struct {
	cmd    Commander
	logger *slog.Logger
}

// NewClient wraps cmd. A nil logger uses slog.Default().
func NewClient(cmd Commander, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cmd: cmd, logger: logger}
}

func call[T any](ctx context.Context, c *Client, method string, params any, opts ...protocol.SendOption) (T, error) {
	var out T
	raw, err := c.cmd.Send(ctx, method, params, opts...)
	if err != nil {
		return out, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil
}

func (c *Client) exec(ctx context.Context, method string, params any, opts ...protocol.SendOption) error {
	_, err := c.cmd.Send(ctx, method, params, opts...)
	return err
}

// GetDescription fetches recording metadata.
func (c *Client) GetDescription(ctx context.Context, recordingID string) (RecordingDescription, error) {
	raw, err := c.cmd.Send(ctx, MethodGetDescription, map[string]string{"recordingId": recordingID})
	if err != nil {
		return RecordingDescription{}, err
	}
	var desc RecordingDescription
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &desc); err != nil {
			return RecordingDescription{}, fmt.Errorf("decode %s result: %w", MethodGetDescription, err)
		}
	}
	desc.Raw = raw
	return desc, nil
}

// CreateSession opens a replay session for a recording.
func (c *Client) CreateSession(ctx context.Context, recordingID string) (string, error) {
	res, err := call[struct {
		SessionID string `json:"sessionId"`
	}](ctx, c, MethodCreateSession, map[string]string{"recordingId": recordingID})
	if err != nil {
		return "", err
	}
	if res.SessionID == "" {
		return "", fmt.Errorf("%s: %w: sessionId", MethodCreateSession, ErrMissingField)
	}
	return res.SessionID, nil
}

// LabelTestSession tags a session with the URL under test.
func (c *Client) LabelTestSession(ctx context.Context, sessionID, url string) error {
	return c.exec(ctx, MethodLabelTestSession, map[string]string{"sessionId": sessionID, "url": url})
}

// EnsureProcessed waits until the backend has processed the session.
func (c *Client) EnsureProcessed(ctx context.Context, sessionID string) error {
	return c.exec(ctx, MethodEnsureProcessed, nil, protocol.WithSession(sessionID))
}

// FindSources asks for every source. Sources arrive as Debugger.newSource
// events before this returns.
func (c *Client) FindSources(ctx context.Context, sessionID string) error {
	return c.exec(ctx, MethodFindSources, nil, protocol.WithSession(sessionID))
}

// GetPossibleBreakpoints lists the breakable line locations of a source.
func (c *Client) GetPossibleBreakpoints(ctx context.Context, sessionID, sourceID string) ([]LineLocations, error) {
	res, err := call[struct {
		LineLocations []LineLocations `json:"lineLocations"`
	}](ctx, c, MethodGetPossibleBreakpoints, map[string]string{"sourceId": sourceID}, protocol.WithSession(sessionID))
	if err != nil {
		return nil, err
	}
	return res.LineLocations, nil
}

// CreateAnalysis registers an analysis with the given mapper.
func (c *Client) CreateAnalysis(ctx context.Context, mapper string, effectful bool) (string, error) {
	res, err := call[struct {
		AnalysisID string `json:"analysisId"`
	}](ctx, c, MethodCreateAnalysis, map[string]any{"mapper": mapper, "effectful": effectful})
	if err != nil {
		return "", err
	}
	if res.AnalysisID == "" {
		return "", fmt.Errorf("%s: %w: analysisId", MethodCreateAnalysis, ErrMissingField)
	}
	return res.AnalysisID, nil
}

// AddLocation adds a location to an analysis.
func (c *Client) AddLocation(ctx context.Context, analysisID, sessionID string, loc Location) error {
	return c.exec(ctx, MethodAddLocation, map[string]any{
		"location":   loc,
		"analysisId": analysisID,
		"sessionId":  sessionID,
	})
}

// RunAnalysis runs an analysis. Every Analysis.analysisResult event for it
// is delivered before this returns.
func (c *Client) RunAnalysis(ctx context.Context, analysisID string) error {
	return c.exec(ctx, MethodRunAnalysis, map[string]string{"analysisId": analysisID})
}

// CreatePause pauses the session at point.
func (c *Client) CreatePause(ctx context.Context, sessionID, point string) (Pause, error) {
	return call[Pause](ctx, c, MethodCreatePause, map[string]string{"point": point}, protocol.WithSession(sessionID))
}

// GetObjectPreview loads a preview of an object at a pause.
func (c *Client) GetObjectPreview(ctx context.Context, sessionID, pauseID, objectID string) (json.RawMessage, error) {
	return c.cmd.Send(ctx, MethodGetObjectPreview, map[string]string{"object": objectID},
		protocol.WithSession(sessionID), protocol.WithPause(pauseID))
}

// FindStepOverTarget finds where stepping over from point lands.
func (c *Client) FindStepOverTarget(ctx context.Context, sessionID, point string) (StepResult, error) {
	return call[StepResult](ctx, c, MethodFindStepOverTarget, map[string]string{"point": point}, protocol.WithSession(sessionID))
}

// ReleaseSession releases the session's backend resources.
func (c *Client) ReleaseSession(ctx context.Context, sessionID string) error {
	return c.exec(ctx, MethodReleaseSession, map[string]string{"sessionId": sessionID})
}
