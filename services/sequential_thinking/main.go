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
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/handlers"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/observability"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/routes"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/session"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/tools/cleanhtml"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/tools/weather"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("sequential-thinking-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("THINK_PORT")
	if port == "" {
		port = "8002"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	maxSessions := session.DefaultMaxSessions
	if v := os.Getenv("THINK_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxSessions = n
		} else {
			slog.Warn("THINK_MAX_SESSIONS is invalid, using default", "value", v)
		}
	}

	heartbeat := handlers.DefaultHeartbeatInterval
	if v := os.Getenv("THINK_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			heartbeat = d
		} else {
			slog.Warn("THINK_HEARTBEAT_INTERVAL is invalid, using default", "value", v)
		}
	}

	// The store is owned here and handed to the handlers; its lifecycle is
	// the process lifecycle, there is no package-level registry.
	store := session.NewStore(
		session.WithMaxSessions(maxSessions),
		session.WithEvictionHook(func(int64) {
			metrics.SessionsEvictedTotal.Inc()
		}),
		session.WithCreationHook(func(int64) {
			metrics.SessionsCreatedTotal.Inc()
		}),
	)

	dispatcher := handlers.NewDispatcher()
	dispatcher.Register("sequentialthinking", handlers.SequentialThinkingTool())
	dispatcher.Register("get_weather", weather.NewClient(os.Getenv("AMAP_API_KEY")).Tool())
	dispatcher.Register("clean_html", cleanhtml.Tool())

	stream := handlers.NewStreamHandler(store, dispatcher, heartbeat)

	router := gin.Default()
	router.Use(otelgin.Middleware("sequential-thinking-service"))

	routes.SetupRoutes(router, stream)

	slog.Info("Starting the sequential thinking server",
		"port", port,
		"maxSessions", maxSessions,
		"heartbeatInterval", heartbeat.String(),
	)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
