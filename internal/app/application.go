// Package app wires the scoring service, its store and the HTTP handler
// into one application instance.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fennr/scoring-api/internal/app/httpapi"
	scoringsvc "github.com/fennr/scoring-api/internal/app/services/scoring"
	"github.com/fennr/scoring-api/internal/app/storage"
	"github.com/fennr/scoring-api/internal/app/storage/redisstore"
	"github.com/fennr/scoring-api/internal/config"
	"github.com/fennr/scoring-api/internal/logging"
)

// Application holds the long-lived service graph: one store shared by all
// in-flight requests, the scoring service on top of it, and the handler.
type Application struct {
	Store   storage.KeyValue
	Scoring *scoringsvc.Service
	Handler http.Handler

	log     *logging.Logger
	closers []func() error
}

// New builds the application against a Redis backend. Construction fails
// when the backend stays unreachable through the configured attempts.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("scoring-api", cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := redisstore.New(ctx, redisstore.Config{
		Addr:              cfg.StoreAddr(),
		DB:                cfg.Store.DB,
		ReconnectAttempts: cfg.Store.ReconnectAttempts,
		ReconnectDelay:    cfg.Store.ReconnectDelay.Std(),
		ConnectTimeout:    cfg.Store.ConnectTimeout.Std(),
		ReadTimeout:       cfg.Store.ReadTimeout.Std(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	application, err := NewWithStore(store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	application.closers = append(application.closers, store.Close)
	return application, nil
}

// NewWithStore builds the application over an existing store. Used by
// tests with the in-memory implementation.
func NewWithStore(store storage.KeyValue, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("scoring-api", "info", "text")
	}

	scores := scoringsvc.New(store, log)
	handler, err := httpapi.NewHandler(scores, log, httpapi.Options{})
	if err != nil {
		return nil, fmt.Errorf("build handler: %w", err)
	}

	return &Application{
		Store:   store,
		Scoring: scores,
		Handler: handler,
		log:     log,
	}, nil
}

// Close releases held resources.
func (a *Application) Close() error {
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
