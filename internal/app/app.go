// Package app runs the bridge's services as an ordered lifecycle: start in
// dependency order, stop in reverse, shut down on SIGINT/SIGTERM.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Starter is implemented by services that need to start background work
// (goroutines, listeners, connections).
type Starter interface {
	Start() error
}

// Stopper is implemented by services that need to clean up resources.
// Called during shutdown in reverse order of Start().
type Stopper interface {
	Stop(ctx context.Context) error
}

type service struct {
	name    string
	impl    any
	started bool
}

// App owns the ordered service list.
type App struct {
	services []service
	logger   *slog.Logger
}

// New creates an empty App.
func New(logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{logger: logger}
}

// Add appends a named service. Services are started in the order added.
// Implementations may satisfy Starter, Stopper, both, or neither.
func (a *App) Add(name string, impl any) {
	a.services = append(a.services, service{name: name, impl: impl})
}

// Start starts every service in order. On failure the already-started
// services are stopped in reverse before returning.
func (a *App) Start() error {
	for i := range a.services {
		svc := &a.services[i]
		s, ok := svc.impl.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting service", "service", svc.name)
		if err := s.Start(); err != nil {
			a.logger.Error("service start failed", "service", svc.name, "error", err)
			a.stopServices(i - 1)
			return fmt.Errorf("app: starting %s: %w", svc.name, err)
		}
		svc.started = true
	}
	a.logger.Info("all services started")
	return nil
}

// Stop stops all started services in reverse order with a timeout.
func (a *App) Stop() {
	a.stopServices(len(a.services) - 1)
}

func (a *App) stopServices(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		svc := &a.services[i]
		if !svc.started {
			continue
		}
		if s, ok := svc.impl.(Stopper); ok {
			a.logger.Info("stopping service", "service", svc.name)
			if err := s.Stop(ctx); err != nil {
				a.logger.Error("service stop error", "service", svc.name, "error", err)
			}
		}
		svc.started = false
	}
}

// Run starts all services and blocks until a shutdown signal arrives, then
// stops them.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	a.logger.Info("shutdown signal received", "signal", sig.String())
	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
