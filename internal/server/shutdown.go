package server

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is canceled on an interrupt or
// terminate signal.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Shutdown stops accepting requests, waits for in-flight ones, then stops
// the event subscribers and closes the bus and the database.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down server")

	var errs []error
	if err := s.E.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.stopSubscribers != nil {
		s.stopSubscribers()
	}
	if s.bridge != nil {
		if err := s.bridge.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("Server shutdown incomplete", "error", err)
		return err
	}
	slog.Info("Server stopped")
	return nil
}
