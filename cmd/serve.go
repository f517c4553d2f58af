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
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flip-estimator/internal/analysis"
	"github.com/sells-group/flip-estimator/internal/cost"
	"github.com/sells-group/flip-estimator/internal/estimate"
	"github.com/sells-group/flip-estimator/internal/ingest"
	"github.com/sells-group/flip-estimator/internal/model"
	"github.com/sells-group/flip-estimator/internal/store"
)

const maxBodyBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		eng, err := openEngine(ctx, cfg, engineOptions{Mode: "serve"})
		if err != nil {
			return err
		}
		defer eng.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(eng, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// service is what the HTTP API needs from the engine.
type service interface {
	Estimate(ctx context.Context, target model.TargetProperty) (*model.PriceEstimationResult, error)
	Reform(surface float64, category, quality, zone string) (*model.ReformEstimate, error)
	Analyze(ctx context.Context, in analyzeInput) (*analysis.Result, error)
	Save(ctx context.Context, reference string, res *analysis.Result) (string, error)
	GetEstimation(ctx context.Context, id string) (*store.EstimationRecord, error)
}

func buildRouter(svc service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &apiHandler{svc: svc}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/estimate", h.estimate)
		r.Post("/reform", h.reform)
		r.Post("/analyze", h.analyze)
		r.Get("/analyses/{id}", h.getAnalysis)
	})
	return r
}

type apiHandler struct {
	svc service
}

type estimateRequest struct {
	Target model.TargetProperty `json:"target"`
}

type reformRequest struct {
	Surface  float64 `json:"surface"`
	Category string  `json:"category,omitempty"`
	Quality  string  `json:"quality,omitempty"`
	Zone     string  `json:"zone,omitempty"`
}

type analyzeRequest struct {
	analyzeInput
	Save bool `json:"save,omitempty"`
}

func (h *apiHandler) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target.Surface <= 0 {
		writeError(w, http.StatusBadRequest, "target.surface must be > 0")
		return
	}

	res, err := h.svc.Estimate(r.Context(), req.Target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) reform(w http.ResponseWriter, r *http.Request) {
	var req reformRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Surface <= 0 {
		writeError(w, http.StatusBadRequest, "surface must be > 0")
		return
	}
	if msg := checkReformChoice(req.Category, req.Quality); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.svc.Reform(req.Surface, req.Category, req.Quality, ingest.NormalizeZone(req.Zone))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *apiHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Target.Surface <= 0 {
		writeError(w, http.StatusBadRequest, "target.surface must be > 0")
		return
	}
	if msg := checkReformChoice(req.ReformCategory, req.ReformQuality); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.svc.Analyze(r.Context(), req.analyzeInput)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := analyzeOutput{Result: res}
	if req.Save {
		id, err := h.svc.Save(r.Context(), req.Target.Reference, res)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out.ID = id
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *apiHandler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetEstimation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// checkReformChoice validates optional category and quality names.
func checkReformChoice(category, quality string) string {
	if category != "" {
		if _, err := model.ParseReformCategory(category); err != nil {
			return err.Error()
		}
	}
	if quality != "" {
		if _, err := model.ParseReformQuality(quality); err != nil {
			return err.Error()
		}
	}
	return ""
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, estimate.ErrNoData), errors.Is(err, cost.ErrNoCostProfile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request with the response status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
