package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MarketBrief/pkg/config"
	applogger "MarketBrief/pkg/logger"
)

// Component is a long-running part of the application. Start must not block.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name string
	c    Component
}

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	components []namedComponent
	closers    []closer
}

// New creates a new App instance.
func New(cfg *config.Config, l *applogger.Logger) *App {
	return &App{cfg: cfg, l: l}
}

// Add registers a component. Components start in registration order and
// stop in reverse.
func (a *App) Add(name string, c Component) {
	if c == nil {
		return
	}
	a.components = append(a.components, namedComponent{name: name, c: c})
}

// OnClose registers a resource to release after every component stopped.
func (a *App) OnClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then
// shuts down gracefully.
func (a *App) RunContext(ctx context.Context) error {
	for i, nc := range a.components {
		if err := nc.c.Start(); err != nil {
			a.l.Error("component start failed", applogger.String("component", nc.name), applogger.Error(err))
			_ = a.shutdown(a.components[:i])
			return fmt.Errorf("start %s: %w", nc.name, err)
		}
		a.l.Info("component started", applogger.String("component", nc.name))
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown(a.components)
}

func (a *App) shutdown(started []namedComponent) error {
	timeout := 15 * time.Second
	if a.cfg != nil && a.cfg.Server.ShutdownTimeout > 0 {
		timeout = a.cfg.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		nc := started[i]
		if err := nc.c.Stop(ctx); err != nil {
			a.l.Warn("component stop error", applogger.String("component", nc.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", nc.name, err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.l.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
