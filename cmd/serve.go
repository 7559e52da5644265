package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/cache"
	"github.com/sells-group/risk-enrichment/internal/enrich"
	"github.com/sells-group/risk-enrichment/internal/model"
	"github.com/sells-group/risk-enrichment/internal/quota"
	"github.com/sells-group/risk-enrichment/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment trigger server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Store, env.Orch, env.Tracker, env.Cache, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			env.Close(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// entityStore is the part of store.Store the trigger handlers use.
type entityStore interface {
	CreateEntity(ctx context.Context, e model.Entity) (*model.Entity, error)
	ReadBase(ctx context.Context, id string) (*model.Entity, error)
}

// fieldCache reads cached enrichment values. Misses and errors look alike.
type fieldCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
}

type trigger interface {
	Trigger(req enrich.Request) error
}

type usageReporter interface {
	Snapshot(ctx context.Context) ([]quota.Usage, error)
}

type enrichRequest struct {
	EntityID string           `json:"entity_id"`
	Type     model.EntityType `json:"entity_type"`
	Base     model.Attributes `json:"base"`
}

// buildRouter wires the HTTP trigger surface.
func buildRouter(st entityStore, trg trigger, usage usageReporter, fc fieldCache, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/enrich", handleEnrich(st, trg))
		r.Get("/entities/{id}", handleGetEntity(st, fc))
		r.Get("/quota", handleQuota(usage))
	})
	return r
}

// handleEnrich creates or locates the entity and schedules a pass. It
// answers before the pass runs.
func handleEnrich(st entityStore, trg trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id := req.EntityID
		if id == "" {
			if !req.Type.Valid() {
				writeError(w, http.StatusBadRequest, "entity_type must be person or business")
				return
			}
			if req.Base.DisplayName() == "" {
				writeError(w, http.StatusBadRequest, "base name is required")
				return
			}
			ent, err := st.CreateEntity(r.Context(), model.Entity{Type: req.Type, Base: req.Base})
			if err != nil {
				zap.L().Error("create entity failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "could not create entity")
				return
			}
			id = ent.ID
		}

		err := trg.Trigger(enrich.Request{EntityID: id, Type: req.Type, Base: req.Base})
		switch {
		case errors.Is(err, enrich.ErrQueueFull), errors.Is(err, enrich.ErrQueueClosed):
			w.Header().Set("Retry-After", "5")
			writeError(w, http.StatusServiceUnavailable, "enrichment queue unavailable")
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":    "accepted",
			"entity_id": id,
		})
	}
}

// handleGetEntity returns the stored entity with any cache-only fields
// merged into its enrichment.
func handleGetEntity(st entityStore, fc fieldCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ent, err := st.ReadBase(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		if err != nil {
			zap.L().Error("read entity failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not read entity")
			return
		}
		if fc != nil {
			mergeCached(r.Context(), fc, ent)
		}
		writeJSON(w, http.StatusOK, ent)
	}
}

// mergeCached fills fields missing from ent's stored enrichment with
// present cached values. Stored values win.
func mergeCached(ctx context.Context, fc fieldCache, ent *model.Entity) {
	if ent.Enrichment == nil {
		ent.Enrichment = make(model.Record)
	}
	for _, f := range model.FieldsFor(ent.Type) {
		p, _ := model.PolicyFor(f)
		if p.Present(ent.Enrichment[f]) {
			continue
		}
		if raw, ok := fc.Get(ctx, cache.Key(ent.ID, f)); ok && p.Present(raw) {
			ent.Enrichment[f] = json.RawMessage(raw)
		}
	}
}

func handleQuota(usage usageReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := usage.Snapshot(r.Context())
		if err != nil {
			zap.L().Error("quota snapshot failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "quota usage unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sources": snap})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
