// Package server assembles all HTTP handlers and runs the server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/strata/internal/activity"
	"github.com/matthewbaird/strata/internal/document"
	"github.com/matthewbaird/strata/internal/event"
	"github.com/matthewbaird/strata/internal/eventbus"
	"github.com/matthewbaird/strata/internal/handler"
	"github.com/matthewbaird/strata/internal/levy"
	"github.com/matthewbaird/strata/internal/maintenance"
	"github.com/matthewbaird/strata/internal/metrics"
	"github.com/matthewbaird/strata/internal/reference"
	"github.com/matthewbaird/strata/internal/rsvp"
	"github.com/matthewbaird/strata/internal/stream"
)

// Config holds the server's collaborators. Zero values get in-memory defaults.
type Config struct {
	Addr            string
	Logger          *slog.Logger
	Tables          *reference.Tables
	Store           activity.Store
	Sink            document.Sink
	Metrics         *metrics.Metrics
	BusBuffer       int
	ShutdownTimeout time.Duration
	Now             func() time.Time

	// Forwarders are extra bus subscribers, such as the NATS forwarder.
	Forwarders map[string]eventbus.Handler
}

// App is the assembled service.
type App struct {
	Router   chi.Router
	Bus      *eventbus.Bus
	Registry *rsvp.Registry
	Hub      *stream.Hub
	Metrics  *metrics.Metrics
	Store    activity.Store

	cfg Config
}

// New wires every component and registers the routes.
func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tables == nil {
		t, err := reference.Load()
		if err != nil {
			return nil, err
		}
		cfg.Tables = t
	}
	if cfg.Store == nil {
		cfg.Store = activity.NewMemoryStore()
	}
	if cfg.Sink == nil {
		cfg.Sink = document.NewMemorySink()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := cfg.Logger

	registry, err := rsvp.NewRegistry(cfg.Tables.Events())
	if err != nil {
		return nil, err
	}
	for _, ev := range registry.List() {
		cfg.Metrics.EventOccupancy.WithLabelValues(ev.ID).Set(float64(ev.CurrentRSVPs) / float64(ev.MaxCapacity))
	}

	bus := eventbus.New(cfg.BusBuffer, logger)
	hub := stream.NewHub(registry, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("metrics", cfg.Metrics)
	bus.Subscribe("stream", hub)
	for name, h := range cfg.Forwarders {
		bus.Subscribe(name, h)
	}
	cfg.Metrics.Registry().MustRegister(busDropped(bus))

	rec := event.NewActivityRecorder(cfg.Store, bus)

	lh := handler.NewLevyHandler(levy.NewCalculator(cfg.Tables, cfg.Now), rec, logger)
	mh := handler.NewMaintenanceHandler(maintenance.NewTriage(cfg.Tables, cfg.Now), rec, logger)
	rh := handler.NewRSVPHandler(rsvp.NewAllocator(registry, cfg.Now), rec, logger)
	dh := handler.NewDocumentHandler(document.NewRegistrar(cfg.Sink, cfg.Now), rec, logger)
	ah := handler.NewActivityHandler(cfg.Store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(handler.Logging(logger, cfg.Metrics))
	r.Use(handler.Recovery(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/levy", lh.Calculate)
		r.Get("/levy", lh.Describe)

		r.Post("/maintenance/requests", mh.Submit)
		r.Get("/maintenance/requests", mh.Query)

		r.Get("/events", rh.Events)
		r.Post("/events/rsvp", rh.Submit)
		r.Get("/events/rsvp", rh.Describe)
		r.Get("/events/stream", hub.ServeHTTP)

		// Catch-all first: it covers every method and Post then claims POST.
		r.HandleFunc("/documents", dh.MethodNotAllowed)
		r.Post("/documents", dh.Upload)

		r.Post("/activity/search", ah.HandleSearchActivity)
		r.Get("/activity/{entity_type}/{entity_id}", ah.HandleGetEntityActivity)
	})

	return &App{
		Router:   r,
		Bus:      bus,
		Registry: registry,
		Hub:      hub,
		Metrics:  cfg.Metrics,
		Store:    cfg.Store,
		cfg:      cfg,
	}, nil
}

// Run starts the bus and serves HTTP until ctx is cancelled, then shuts down
// gracefully and drains the bus.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.Bus.Start(context.WithoutCancel(ctx))
	defer a.Bus.Stop()

	srv := &http.Server{
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.cfg.Logger.Info("server listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.cfg.Logger.Info("server stopped")
	return nil
}
