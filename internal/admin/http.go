// Package admin serves the operational HTTP endpoints: health, Prometheus
// metrics, table summaries and compressed table exports read through the
// reactor.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pairdb/internal/logger"
	"pairdb/internal/storage"
	"pairdb/internal/types"
)

// Source reads table state through the reactor. transaction.Manager
// implements it.
type Source interface {
	Stats(ctx context.Context) ([]types.TableStats, error)
	Export(ctx context.Context, table string) ([]byte, error)
}

const requestTimeout = 5 * time.Second

// NewHandler builds the admin router. Responses are gzip-compressed for
// clients that accept it.
func NewHandler(src Source) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/tables", tablesHandler(src))
	r.Get("/tables/{name}/export", exportHandler(src))

	return gzhttp.GzipHandler(r)
}

func tablesHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		stats, err := src.Stats(ctx)
		if err != nil {
			logger.Error("admin: table stats: %v", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.Error("admin: encode table stats: %v", err)
		}
	}
}

func exportHandler(src Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		name := chi.URLParam(r, "name")
		data, err := src.Export(ctx, name)
		switch {
		case errors.Is(err, storage.ErrTableNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case err != nil:
			logger.Error("admin: export %s: %v", name, err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/zstd")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zst"))
		_, _ = w.Write(data)
	}
}

// Server is the admin HTTP listener.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates an admin server for addr.
func NewServer(addr string, src Source) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           NewHandler(src),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	logger.Info("admin HTTP listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
