// Package app wires the data store, planner, engine and controller to the
// configured transports and sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/cargoplan/api/schedule"
	"github.com/kilianp07/cargoplan/config"
	"github.com/kilianp07/cargoplan/core/command"
	"github.com/kilianp07/cargoplan/core/history"
	coremetrics "github.com/kilianp07/cargoplan/core/metrics"
	"github.com/kilianp07/cargoplan/core/monitoring"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/core/reopt"
	"github.com/kilianp07/cargoplan/core/solver/engines"
	"github.com/kilianp07/cargoplan/core/store"
	"github.com/kilianp07/cargoplan/infra/audit"
	"github.com/kilianp07/cargoplan/infra/csvstore"
	"github.com/kilianp07/cargoplan/infra/logger"
	"github.com/kilianp07/cargoplan/infra/metrics"
	inframon "github.com/kilianp07/cargoplan/infra/monitoring"
	"github.com/kilianp07/cargoplan/infra/mqtt"
	"github.com/kilianp07/cargoplan/internal/eventbus"
)

// Service owns every long-lived component of the scheduler.
type Service struct {
	Store      *store.Store
	Controller *reopt.Controller
	Dispatcher *command.Dispatcher
	History    history.Store

	cfg     *config.Config
	bus     *eventbus.Bus
	sink    coremetrics.Sink
	monitor monitoring.Monitor
	audit   *audit.Log
	log     logger.Logger
}

// New builds a Service reading the dataset from the configured CSV directory.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	return NewWithRepository(ctx, cfg, csvstore.New(cfg.Data))
}

// NewWithRepository builds a Service on top of repo.
func NewWithRepository(ctx context.Context, cfg *config.Config, repo store.Repository) (svc *Service, err error) {
	logger.SetLevel(cfg.Log.Level)
	logg := logger.New("service")

	params, err := cfg.Planner.Params()
	if err != nil {
		return nil, err
	}
	eng, err := engines.New(cfg.Solver.Module())
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}

	s := &Service{cfg: cfg, log: logg, monitor: mon, bus: eventbus.New()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.audit, err = audit.New(cfg.Audit); err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}
	if s.Store, err = store.Open(ctx, repo, s.audit, store.Options{StrictIDs: cfg.Data.StrictIDs, Logger: logger.New("store")}); err != nil {
		return nil, err
	}
	if s.History, err = history.New(cfg.History); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if s.sink, err = coremetrics.NewSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	s.Controller, err = reopt.New(s.Store, planner.NewBuilder(params, logger.New("planner")), eng, reopt.Options{
		Budget:  cfg.Solver.Budget(),
		Logger:  logger.New("reopt"),
		Metrics: s.sink,
		Bus:     s.bus,
		History: s.History,
		Monitor: mon,
	})
	if err != nil {
		return nil, err
	}
	s.Dispatcher = command.New(s.Controller, logger.New("command"))
	logg.Infow("service ready", map[string]any{"engine": eng.Name(), "history": cfg.History.Backend})
	return s, nil
}

// Run starts the configured transports, computes the initial schedule and
// blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer s.monitor.Recover()
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	errCh := make(chan error, 2)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, s.log); err != nil {
				errCh <- fmt.Errorf("prom server: %w", err)
			}
		}()
	}

	if _, err := s.Controller.Recompute(ctx); err != nil {
		s.log.Errorf("initial optimization: %v", err)
	}

	if s.cfg.MQTT.Enabled {
		l, err := mqtt.NewListener(s.cfg.MQTT, s.Dispatcher, s.cfg.HTTP.CommandTimeout, logger.New("mqtt"))
		if err != nil {
			return fmt.Errorf("mqtt listener: %w", err)
		}
		defer l.Disconnect()
		l.ForwardRuns(ctx, s.bus)
	}

	if addr := s.cfg.HTTP.Addr; addr != "" {
		go func() {
			if err := s.serveHTTP(ctx, addr); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	schedule.Routes(mux, s.Controller, s.Dispatcher, s.History, s.cfg.HTTP.Token)
	return mux
}

func (s *Service) serveHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http server shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("HTTP API listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.bus != nil {
		s.bus.Close()
	}
	if s.History != nil {
		errs = append(errs, s.History.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
