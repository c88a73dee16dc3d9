// Package main provides the strata binary entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/strata/internal/activity"
	"github.com/matthewbaird/strata/internal/config"
	"github.com/matthewbaird/strata/internal/document"
	"github.com/matthewbaird/strata/internal/eventbus"
	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/rsvp"
	"github.com/matthewbaird/strata/internal/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "strata",
		Short:         "Strata building services API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath), tablesCmd(&configPath))
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides config and PORT)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	tables, err := loadTables(cfg.Reference.Path)
	if err != nil {
		return err
	}

	var store activity.Store = activity.NewMemoryStore()
	if cfg.Database.URL != "" {
		s, err := activity.OpenSQLite(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		logger.Info("activity store ready", slog.String("driver", "sqlite"))
	}

	var sink document.Sink = document.NewMemorySink()
	if cfg.Documents.Bucket != "" {
		s, err := document.NewS3Sink(ctx, cfg.Documents.Bucket, cfg.Documents.Region)
		if err != nil {
			return err
		}
		sink = s
		logger.Info("document sink ready",
			slog.String("bucket", cfg.Documents.Bucket),
			slog.String("region", cfg.Documents.Region))
	}

	forwarders := map[string]eventbus.Handler{}
	if cfg.NATS.URL != "" {
		nc, err := eventbus.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Drain()
		forwarders["nats"] = eventbus.NewNATSConsumer(nc)
		logger.Info("forwarding domain events", slog.String("nats_url", cfg.NATS.URL))
	}

	app, err := server.New(server.Config{
		Addr:            cfg.Addr(),
		Logger:          logger,
		Tables:          tables,
		Store:           store,
		Sink:            sink,
		BusBuffer:       cfg.EventBus.Buffer,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Forwarders:      forwarders,
	})
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func loadTables(path string) (*reference.Tables, error) {
	if path == "" {
		return reference.Load()
	}
	return reference.LoadFile(path)
}

func tablesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tables [file]",
		Short: "Validate the reference tables and print a summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				path = cfg.Reference.Path
			}

			name := path
			if name == "" {
				name = "embedded tables.cue"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating %s...\n", name)
			t, err := loadTables(path)
			if err != nil {
				return err
			}
			if _, err := rsvp.NewRegistry(t.Events()); err != nil {
				return fmt.Errorf("events: %w", err)
			}

			rates := t.Levy()
			fmt.Fprintf(out, "  currency:      %s\n", t.Currency())
			fmt.Fprintf(out, "  levy:          %.2f/sqm, %d unit types\n", rates.BaseRatePerSqm, len(t.UnitTypes()))
			fmt.Fprintf(out, "  request types: %d\n", len(t.RequestTypes()))
			fmt.Fprintf(out, "  urgencies:     %d\n", len(t.Urgencies()))
			fmt.Fprintf(out, "  keywords:      %d\n", len(t.EmergencyKeywords()))
			fmt.Fprintf(out, "  events:        %d\n", len(t.Events()))
			fmt.Fprintln(out, "tables: OK")
			return nil
		},
	}
}
