// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protocol

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for command channel operations.
var (
	tracer = otel.Tracer("replayprobe.protocol")
	meter  = otel.Meter("replayprobe.protocol")
)

var (
	commandLatency metric.Float64Histogram
	commandTotal   metric.Int64Counter
	eventTotal     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commandLatency, err = meter.Float64Histogram(
			"replay_command_duration_seconds",
			metric.WithDescription("Round-trip duration of backend commands"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commandTotal, err = meter.Int64Counter(
			"replay_command_total",
			metric.WithDescription("Total number of backend commands"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		eventTotal, err = meter.Int64Counter(
			"replay_event_total",
			metric.WithDescription("Total number of backend events received"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startCommandSpan creates a span for one command round trip.
func startCommandSpan(ctx context.Context, id int64, method string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Channel."+method,
		trace.WithAttributes(
			attribute.Int64("replay.request_id", id),
			attribute.String("replay.method", method),
		),
	)
}

func recordCommandMetrics(ctx context.Context, method string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", success),
	)
	commandLatency.Record(ctx, duration.Seconds(), attrs)
	commandTotal.Add(ctx, 1, attrs)
}

func recordEventMetrics(ctx context.Context, method string, handled bool) {
	if err := initMetrics(); err != nil {
		return
	}

	eventTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("handled", handled),
	))
}
