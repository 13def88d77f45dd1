package httpapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// App owns the HTTP server lifecycle.
type App struct {
	log        *slog.Logger
	httpServer *http.Server
	port       int
}

// New creates new HTTP server app
func New(
	log *slog.Logger,
	handler http.Handler,
	port int,
	timeout time.Duration,
) *App {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  time.Minute,
	}

	return &App{
		log:        log,
		httpServer: srv,
		port:       port,
	}
}

// MustRun runs HTTP server and panics if any error occurs
func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

// Run http server
func (a *App) Run() error {
	const op = "httpapp.Run"

	log := a.log.With(slog.String("op", op),
		slog.Int("port", a.port),
	)

	log.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))

	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop http server gracefully
func (a *App) Stop() {
	const op = "httpapp.Stop"

	a.log.With(slog.String("op", op)).Info("stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}
}
