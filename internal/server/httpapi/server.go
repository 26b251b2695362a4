// Package httpapi exposes the record service over HTTP. The surface is a
// thin JSON/multipart layer; all semantics live in the service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hushdrop/hushdrop/internal/logging"
	"github.com/hushdrop/hushdrop/internal/server/config"
	"github.com/hushdrop/hushdrop/internal/server/services"
)

// WipeInfo reports the next scheduled full wipe, when one is configured.
type WipeInfo interface {
	NextWipe() (time.Time, bool)
}

// Server serves the public HTTP API.
type Server struct {
	service *services.RecordService
	wipes   WipeInfo
	logger  logging.Logger
	config  *config.Config

	http *http.Server
}

// NewServer builds the HTTP server. wipes may be nil when no wipe schedule
// exists.
func NewServer(service *services.RecordService, wipes WipeInfo, logger logging.Logger, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		wipes:   wipes,
		logger:  logger,
		config:  cfg,
	}
	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Router(),
	}
	return s
}

// Router wires all API routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/api/admin-motd", s.adminMOTD).Methods(http.MethodGet)

	router.HandleFunc("/api/upload", s.upload).Methods(http.MethodPost)

	router.HandleFunc("/api/files/{id}", s.downloadFile).Methods(http.MethodGet)
	router.HandleFunc("/api/files/{id}", s.deleteRecord).Methods(http.MethodDelete)

	router.HandleFunc("/api/posts/{id}", s.viewPost).Methods(http.MethodGet)
	router.HandleFunc("/api/posts/{id}", s.deleteRecord).Methods(http.MethodDelete)
	router.HandleFunc("/api/posts/{id}/append", s.appendToPost).Methods(http.MethodPost)

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info(ctx, "http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}
