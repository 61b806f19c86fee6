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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("replayprobe.explore")
	meter  = otel.Meter("replayprobe.explore")
)

var (
	runTotal        metric.Int64Counter
	runDuration     metric.Float64Histogram
	candidatesTried metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runTotal, err = meter.Int64Counter(
			"replay_exploration_total",
			metric.WithDescription("Total number of explorations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runDuration, err = meter.Float64Histogram(
			"replay_exploration_duration_seconds",
			metric.WithDescription("Duration of explorations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		candidatesTried, err = meter.Int64Histogram(
			"replay_exploration_candidates",
			metric.WithDescription("Line locations tried before a logpoint was found"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRunMetrics(ctx context.Context, outcome Outcome, duration time.Duration, candidates int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	runTotal.Add(ctx, 1, attrs)
	runDuration.Record(ctx, duration.Seconds(), attrs)
	candidatesTried.Record(ctx, int64(candidates), attrs)
}
