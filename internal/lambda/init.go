// Package lambda runs the sensor API behind an API Gateway HTTP API.
package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/dwsmith1983/trashcan/internal/config"
	"github.com/dwsmith1983/trashcan/internal/logging"
	"github.com/dwsmith1983/trashcan/internal/observability"
	"github.com/dwsmith1983/trashcan/internal/provider"
	"github.com/dwsmith1983/trashcan/internal/provider/dynamodb"
	"github.com/dwsmith1983/trashcan/internal/server"
)

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Provider provider.Provider
	Handler  http.Handler
	Adapter  *Adapter
	Logger   *slog.Logger

	// Shutdown flushes pending spans. Call it when the runtime sends SIGTERM.
	Shutdown func(context.Context) error
}

// Init creates shared dependencies from environment variables.
// Reads: TABLE_NAME, AWS_REGION, DYNAMODB_ENDPOINT, LOG_LEVEL, LOG_FORMAT, HISTORY_LIMIT,
// OTEL_EXPORTER_OTLP_ENDPOINT
func Init(ctx context.Context) (*Deps, error) {
	if os.Getenv("TABLE_NAME") == "" {
		return nil, fmt.Errorf("TABLE_NAME environment variable required")
	}
	if os.Getenv("AWS_REGION") == "" {
		return nil, fmt.Errorf("AWS_REGION environment variable required")
	}

	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	// Lambda ships logs to CloudWatch; JSON unless explicitly overridden.
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Log.Format = logging.FormatJSON
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	prov, err := dynamodb.New(&cfg.DynamoDB)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("creating DynamoDB provider: %w", err)
	}
	prov.SetLogger(logger)

	h := server.New(cfg.Server.Addr, prov, server.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	}).Handler()

	return &Deps{
		Provider: prov,
		Handler:  h,
		Adapter:  NewAdapter(h),
		Logger:   logger,
		Shutdown: shutdown,
	}, nil
}
