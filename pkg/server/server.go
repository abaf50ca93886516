package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/richard-senior/nbaml/internal/logger"
	"github.com/richard-senior/nbaml/pkg/util/nbaml"
)

// Server exposes stored features, predictions and model runs over HTTP
type Server struct {
	store        *nbaml.Store
	source       nbaml.GameLogSource
	artifactPath string
	router       *mux.Router
}

// New builds a server over store. When source is non-nil, odds for a season with no
// stored predictions are computed on request with the artifact at artifactPath.
func New(store *nbaml.Store, source nbaml.GameLogSource, artifactPath string) *Server {
	s := &Server{
		store:        store,
		source:       source,
		artifactPath: artifactPath,
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/model", s.handleModel).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/latest", s.handleLatestRun).Methods(http.MethodGet)
	s.router.HandleFunc("/seasons/{season}/teams", s.handleTeams).Methods(http.MethodGet)
	s.router.HandleFunc("/seasons/{season}/odds", s.handleOdds).Methods(http.MethodGet)
	s.router.Use(logRequests)
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr until the context is cancelled or SIGINT/SIGTERM arrives
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening on", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigChan:
		logger.Info("Received signal:", sig)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("HTTP", r.Method, r.URL.Path, time.Since(start).String())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", err)
	}
}

// writeError maps the pipeline's error taxonomy onto status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var nf *nbaml.NotFoundError
	var se *nbaml.SchemaError
	switch {
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &se):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, nbaml.ErrFetchFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func seasonVar(r *http.Request) (string, error) {
	return nbaml.ParseSeason(mux.Vars(r)["season"])
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	artifact, err := nbaml.LoadArtifact(s.artifactPath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              artifact.ID,
		"created_at":      artifact.CreatedAt,
		"feature_columns": artifact.FeatureColumns,
		"metrics":         artifact.Metrics,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestModelRun()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	season, err := seasonVar(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rows, err := s.store.LoadTeamSeasons(season)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(rows) == 0 {
		writeError(w, &nbaml.NotFoundError{What: "team seasons", Path: season})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleOdds(w http.ResponseWriter, r *http.Request) {
	season, err := seasonVar(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	odds, err := s.store.LoadChampionOdds(season)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(odds) == 0 {
		if s.source == nil {
			writeError(w, &nbaml.NotFoundError{What: "champion odds", Path: season})
			return
		}
		if odds, err = s.predict(r.Context(), season); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, odds)
}

// predict scores a season on demand and stores the result
func (s *Server) predict(ctx context.Context, season string) ([]nbaml.ChampionOdds, error) {
	artifact, err := nbaml.LoadArtifact(s.artifactPath)
	if err != nil {
		return nil, err
	}
	odds, err := nbaml.NewPredictor(s.source, artifact).PredictSeason(ctx, season)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveChampionOdds(odds); err != nil {
		logger.Warn("Failed to store predictions", season, err)
	}
	return odds, nil
}
