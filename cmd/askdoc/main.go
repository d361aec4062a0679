package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/m3y/askdoc/configs"
	"github.com/m3y/askdoc/internal/adapter/inbound/chathook"
	"github.com/m3y/askdoc/internal/adapter/outbound/chatreply"
	"github.com/m3y/askdoc/internal/adapter/outbound/gemini"
	"github.com/m3y/askdoc/internal/adapter/outbound/mcptools"
	"github.com/m3y/askdoc/internal/adapter/outbound/scopedoc"
	"github.com/m3y/askdoc/internal/dispatch"
	"github.com/m3y/askdoc/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Configuration ===
	cfg, err := configs.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	// === Logging ===
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.ParsedLogLevel()}))
	slog.SetDefault(logger)
	logger.Info("Logger initialized.", slog.String("level", cfg.ParsedLogLevel().String()))

	// === OpenTelemetry Initialization ===
	shutdownOtel, err := initOtelProvider(cfg)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry.", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			logger.Error("Failed to shutdown OpenTelemetry TracerProvider.", slog.Any("error", err))
		}
	}()

	// === Dependency Injection ===
	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}

	catalog := mcptools.NewCatalog(cfg.MCPServerURL, logger)
	scope := scopedoc.NewCache(cfg.ScopeDocURL, httpClient, logger)
	model := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	replier := chatreply.New(cfg.ReplyEndpoint, cfg.ChannelAccessToken, httpClient, logger)

	answerer := usecase.NewAnswerQuestionUseCase(catalog, model, scope, logger)
	dispatcher := dispatch.New(answerer, replier, cfg.QueueSize, cfg.QuestionWorkers, logger)

	// === Webhook Server ===
	webhookMux := http.NewServeMux()
	chathook.NewHandler(cfg.ChannelSecret, dispatcher, logger).RegisterRoutes(webhookMux)
	webhookServer := &http.Server{Addr: cfg.ListenAddr, Handler: webhookMux}

	// === Admin Server (health + metrics, separate port) ===
	adminMux := http.NewServeMux()
	adminMux.Handle("GET /metrics", promhttp.Handler())
	adminMux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: adminMux}

	// === Startup ===
	go func() {
		logger.Info("Webhook server starting.", slog.String("address", webhookServer.Addr))
		if err := webhookServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Webhook server failed.", slog.Any("error", err))
			stop()
		}
	}()
	go func() {
		logger.Info("Admin server starting.", slog.String("address", adminServer.Addr))
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Admin server failed.", slog.Any("error", err))
		}
	}()

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("Dispatcher stopped with error.", slog.Any("error", err))
		}
	}()
	logger.Info("askdoc ready.",
		slog.String("mcp_server", cfg.MCPServerURL),
		slog.String("model", cfg.GeminiModel),
		slog.Int("workers", cfg.QuestionWorkers))

	// Wait for interrupt signal.
	<-ctx.Done()

	// === Shutdown ===
	logger.Info("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := webhookServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Webhook server graceful shutdown failed.", slog.Any("error", err))
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Admin server graceful shutdown failed.", slog.Any("error", err))
	}

	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("Dispatcher did not drain before shutdown deadline.")
	}
	logger.Info("Servers shut down gracefully.")
}

// initOtelProvider initializes the OpenTelemetry SDK and sets up the OTLP
// trace exporter. It returns a shutdown function to be called on application
// exit.
func initOtelProvider(cfg *configs.Config) (func(context.Context) error, error) {
	ctx := context.Background()

	if cfg.OtelExporterOtlpEndpoint == "" {
		slog.Info("OTEL_EXPORTER_OTLP_ENDPOINT not set, OpenTelemetry tracing disabled.")
		return func(context.Context) error { return nil }, nil
	}

	slog.Info("Initializing OTLP exporter.", slog.String("endpoint", cfg.OtelExporterOtlpEndpoint))

	grpcOpts := []grpc.DialOption{}
	if cfg.OtelExporterOtlpInsecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		slog.Warn("Using insecure connection for OTLP exporter.")
	}

	conn, err := grpc.NewClient(cfg.OtelExporterOtlpEndpoint, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTLP endpoint: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("askdoc"),
		),
	)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		providerErr := tp.Shutdown(ctx)
		connErr := conn.Close()
		return errors.Join(providerErr, connErr)
	}, nil
}
