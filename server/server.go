package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/krelinga/vod-trigger/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBatchBytes = 8 << 20

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AcceptedResponse is returned once a batch has been handled.
type AcceptedResponse struct {
	RequestID uuid.UUID `json:"requestId"`
}

// Server receives storage notification batches over HTTP and hands them to
// the router.
type Server struct {
	router *internal.Router
	api    *internal.API
	logger *zap.Logger
}

// NewServer creates a new Server instance.
func NewServer(router *internal.Router, api *internal.API, logger *zap.Logger) *Server {
	return &Server{
		router: router,
		api:    api,
		logger: logger,
	}
}

// Handler wires the routes. gatherer backs /metrics.
func (s *Server) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", s.HandleEvents)
	mux.HandleFunc("GET /healthz", s.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return otelhttp.NewHandler(mux, "vod-trigger")
}

// HandleEvents handles POST /events requests.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	logger := s.logger.With(zap.String("requestId", requestID.String()))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		logger.Error("failed to read notification body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "failed to read request body",
		})
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		logger.Error("notification body is not JSON", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_JSON",
			Message: err.Error(),
		})
		return
	}
	if err := s.api.Validate(internal.SchemaEventBatch, raw); err != nil {
		logger.Error("notification body is not a batch", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_BATCH",
			Message: err.Error(),
		})
		return
	}

	var batch internal.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		logger.Error("failed to decode notification batch", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_BATCH",
			Message: err.Error(),
		})
		return
	}

	// A client hanging up must not abort records that are mid-retry.
	s.router.HandleWithLogger(context.WithoutCancel(r.Context()), &batch, logger)

	writeJSON(w, http.StatusOK, AcceptedResponse{RequestID: requestID})
}

// Health handles GET /healthz requests.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
