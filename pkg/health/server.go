// Package health serves liveness and readiness checks for the gateway.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
)

// ReadyFunc reports whether the gateway can serve traffic, with optional
// detail fields for the response body.
type ReadyFunc func() (bool, map[string]interface{})

type Server struct {
	addr   string
	router chi.Router
	server *http.Server
}

type statusResponse struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime"`
	Checks map[string]interface{} `json:"checks,omitempty"`
}

func NewServer(host string, port int, ready ReadyFunc) *Server {
	started := time.Now()
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{
			Status: "ok",
			Uptime: time.Since(started).Round(time.Second).String(),
		})
	})
	r.Get("/ready", func(w http.ResponseWriter, _ *http.Request) {
		ok, checks := true, map[string]interface{}(nil)
		if ready != nil {
			ok, checks = ready()
		}
		status, code := "ready", http.StatusOK
		if !ok {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, statusResponse{
			Status: status,
			Uptime: time.Since(started).Round(time.Second).String(),
			Checks: checks,
		})
	})

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return &Server{
		addr:   addr,
		router: r,
		server: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("health", "Health server listening", map[string]interface{}{"addr": s.addr})
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown health server: %w", err)
	}
	return <-errCh
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
