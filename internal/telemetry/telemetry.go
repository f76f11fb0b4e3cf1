/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package telemetry wires the process-wide logger and tracer. Components
// never reach for a package-level logger; they receive a logr.Logger (or
// trace.Tracer) from their constructor.
package telemetry

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// NewLogger builds a logr.Logger backed by zap, formatted according to
// format ("json" or "console") and level ("debug", "info", "warn", "error").
func NewLogger(level, format string) (logr.Logger, error) {
	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapCfg.Level = lvl

	zl, err := zapCfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// WithTrace annotates a logger with the trace_id/run_id fields every
// pipeline-touching log line is required to carry.
func WithTrace(log logr.Logger, traceID, runID string) logr.Logger {
	return log.WithValues("trace_id", traceID, "run_id", runID)
}

// NewTracerProvider builds an in-process tracer provider with no exporter
// wired (spans are dropped) unless the caller attaches one, which keeps the
// default footprint small.
func NewTracerProvider() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider()
}

// Tracer returns a named tracer from the given provider, or a no-op tracer
// when tp is nil.
func Tracer(tp trace.TracerProvider, name string) trace.Tracer {
	if tp == nil {
		return otelGlobalTracer(name)
	}
	return tp.Tracer(name)
}

func otelGlobalTracer(name string) trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer(name)
}

// StartSpan starts a span named op carrying trace_id/run_id attributes. No
// stage or node executor in this module calls it.
func StartSpan(ctx context.Context, tracer trace.Tracer, op, traceID, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("trace_id", traceID),
		attribute.String("run_id", runID),
	))
}
