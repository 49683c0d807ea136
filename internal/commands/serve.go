package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/trashcan/internal/ingest"
	"github.com/dwsmith1983/trashcan/internal/observability"
	"github.com/dwsmith1983/trashcan/internal/server"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sensor HTTP API server (and MQTT ingest when configured)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	addConfigFlag(cmd)
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, prov, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = prov.Start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connecting to DynamoDB: %w", err)
	}

	srv := server.New(cfg.Server.Addr, prov, server.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			color.Yellow("\nShutting down...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return prov.Stop(shutdownCtx)
	})

	if cfg.MQTT.Enabled() {
		client, err := ingest.Connect(cfg.MQTT, logger)
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		ing := ingest.New(prov, cfg.MQTT)
		ing.SetLogger(logger)
		g.Go(func() error {
			defer client.Close()
			return ing.Run(gctx, client)
		})
	}

	color.Green("Trash Can Sensor API listening on %s (stage %s, table %s)", cfg.Server.Addr, cfg.Stage, cfg.DynamoDB.TableName)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	color.Green("Server stopped gracefully")
	return nil
}
