package main

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Swind/go-thread-pool/core"
	tpprom "github.com/Swind/go-thread-pool/observability/prometheus"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Error: message})
}

// newRouter serves health, per-pool stats snapshots and the Prometheus
// registry. An empty origins list allows any origin.
func newRouter(gatherer prom.Gatherer, pools map[string]tpprom.PoolSnapshotProvider, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/stats", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			names := make([]string, 0, len(pools))
			for name := range pools {
				names = append(names, name)
			}
			sort.Strings(names)

			stats := make([]core.PoolStats, 0, len(names))
			for _, name := range names {
				stats = append(stats, pools[name].Stats())
			}
			writeJSON(w, http.StatusOK, stats)
		})
		r.Get("/{pool}", func(w http.ResponseWriter, req *http.Request) {
			provider, ok := pools[chi.URLParam(req, "pool")]
			if !ok {
				writeError(w, http.StatusNotFound, "pool not found")
				return
			}
			writeJSON(w, http.StatusOK, provider.Stats())
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
