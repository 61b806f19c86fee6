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

import (
	"encoding/json"
	"log/slog"

	"github.com/AleutianAI/replayprobe/services/replay/protocol"
)

// on decodes params into T before calling fn. Undecodable params are
// logged and dropped.
func on[T any](c *Client, kind protocol.EventKind, fn func(T)) bool {
	if fn == nil {
		return c.cmd.On(kind, nil)
	}
	return c.cmd.On(kind, func(params json.RawMessage) {
		var v T
		if len(params) > 0 {
			if err := json.Unmarshal(params, &v); err != nil {
				c.logger.Warn("dropping undecodable event",
					slog.String("event", string(kind)),
					slog.String("error", err.Error()))
				return
			}
		}
		fn(v)
	})
}

// OnNewSource registers the Debugger.newSource handler.
func (c *Client) OnNewSource(fn func(Source)) bool {
	return on(c, protocol.EventNewSource, fn)
}

// OnAnalysisResult registers the Analysis.analysisResult handler.
func (c *Client) OnAnalysisResult(fn func(AnalysisResult)) bool {
	return on(c, protocol.EventAnalysisResult, fn)
}

// OnMissingRegions registers the Session.missingRegions handler.
func (c *Client) OnMissingRegions(fn func(Regions)) bool {
	return on(c, protocol.EventMissingRegions, fn)
}

// OnUnprocessedRegions registers the Session.unprocessedRegions handler.
func (c *Client) OnUnprocessedRegions(fn func(Regions)) bool {
	return on(c, protocol.EventUnprocessedRegions, fn)
}
