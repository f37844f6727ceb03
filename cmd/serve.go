package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crisisobs/shockwatch/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the detection query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/detections", func(w http.ResponseWriter, req *http.Request) {
		filter, err := filterFromQuery(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		detections, err := st.ListDetections(req.Context(), filter)
		if err != nil {
			zap.L().Error("serve: list detections failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list detections"})
			return
		}
		if detections == nil {
			detections = []store.StoredDetection{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"detections": detections})
	})

	r.Get("/detections/count", func(w http.ResponseWriter, req *http.Request) {
		count, err := st.CountDetections(req.Context())
		if err != nil {
			zap.L().Error("serve: count detections failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "count detections"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	})

	return r
}

func filterFromQuery(req *http.Request) (store.DetectionFilter, error) {
	q := req.URL.Query()
	filter := store.DetectionFilter{
		Detector:  q.Get("detector"),
		ShockType: q.Get("shock_type"),
	}

	parseTime := func(key string) (time.Time, error) {
		raw := q.Get(key)
		if raw == "" {
			return time.Time{}, nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, eris.Errorf("bad %s value %q", key, raw)
	}

	var err error
	if filter.Since, err = parseTime("since"); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTime("until"); err != nil {
		return filter, err
	}

	if raw := q.Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, eris.Errorf("bad min_confidence value %q", raw)
		}
		filter.MinConfidence = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, eris.Errorf("bad limit value %q", raw)
		}
		filter.Limit = v
	}
	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return filter, eris.Errorf("bad offset value %q", raw)
		}
		filter.Offset = v
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
