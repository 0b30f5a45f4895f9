package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalgrid/healthwatch/pkg/analysis"
	"github.com/vitalgrid/healthwatch/pkg/health"
	"github.com/vitalgrid/healthwatch/pkg/logging"
	"github.com/vitalgrid/healthwatch/pkg/store"
	"github.com/vitalgrid/healthwatch/pkg/stream"
)

// pointSink records ingested points into the backing store so batch
// analyses observe the same data the stream does.
type pointSink interface {
	Record(ctx context.Context, userID string, point health.MetricPoint) error
}

type memorySink struct{ store *store.MemoryStore }

func (s memorySink) Record(_ context.Context, userID string, point health.MetricPoint) error {
	s.store.Add(userID, point)
	return nil
}

type redisSink struct{ store *store.RedisStore }

func (s redisSink) Record(ctx context.Context, userID string, point health.MetricPoint) error {
	return s.store.Add(ctx, userID, point)
}

type server struct {
	engine    *analysis.Engine
	processor *stream.Processor
	sink      pointSink
	logger    *logging.StructuredLogger
}

func newRouter(engine *analysis.Engine, processor *stream.Processor, sink pointSink, registry *prometheus.Registry, logger *logging.StructuredLogger) http.Handler {
	s := &server{
		engine:    engine,
		processor: processor,
		sink:      sink,
		logger:    logger.WithComponent("http"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1/users/{id}").Subrouter()
	v1.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodPost)
	v1.HandleFunc("/trends", s.handleTrends).Methods(http.MethodGet)
	v1.HandleFunc("/anomalies", s.handleAnomalies).Methods(http.MethodGet)
	v1.HandleFunc("/correlations", s.handleCorrelations).Methods(http.MethodGet)
	v1.HandleFunc("/risk", s.handleRisk).Methods(http.MethodGet)
	v1.HandleFunc("/thresholds", s.handleThresholds).Methods(http.MethodGet)
	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_streams": s.processor.ActiveStreams(),
	})
}

type ingestRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"metric_kind"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind := health.ParseMetricKind(req.Kind)
	if kind == health.KindUnknown {
		writeError(w, http.StatusBadRequest, "unknown metric kind")
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	point := health.MetricPoint{
		Timestamp: req.Timestamp,
		Kind:      kind,
		Value:     req.Value,
		Unit:      req.Unit,
	}

	if err := s.sink.Record(r.Context(), userID, point); err != nil {
		s.logger.Error("point record failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record point")
		return
	}

	tick, err := s.processor.Process(r.Context(), userID, point)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stream processing failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"alerts":       tick.Alerts,
		"correlations": tick.Correlations,
	})
}

// queryWindow reads the kinds and days query parameters, defaulting to
// all known kinds over the last 30 days.
func queryWindow(r *http.Request) ([]health.MetricKind, time.Time, time.Time) {
	kinds := allKinds()
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		kinds = kinds[:0]
		for _, part := range strings.Split(raw, ",") {
			if kind := health.ParseMetricKind(strings.TrimSpace(part)); kind != health.KindUnknown {
				kinds = append(kinds, kind)
			}
		}
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -days)
	return kinds, since, until
}

func allKinds() []health.MetricKind {
	return []health.MetricKind{
		health.KindHeartRate, health.KindSystolicBP, health.KindDiastolicBP,
		health.KindSpO2, health.KindTemperature, health.KindRespiratoryRate,
		health.KindGlucose, health.KindSteps, health.KindSleepHours, health.KindWeight,
	}
}

func (s *server) handleTrends(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	kinds, since, until := queryWindow(r)

	results, err := s.engine.TrendReport(r.Context(), userID, kinds, since, until)
	if err != nil {
		// Partial results on cancellation still go back to the caller.
		writeJSON(w, http.StatusOK, map[string]any{"trends": results, "partial": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": results})
}

func (s *server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	kinds, since, until := queryWindow(r)

	results, err := s.engine.AnomalyReport(r.Context(), userID, kinds, since, until)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"anomalies": results, "partial": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"anomalies": results})
}

func (s *server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	kinds, since, until := queryWindow(r)

	correlations, patterns, err := s.engine.CorrelationReport(r.Context(), userID, kinds, since, until)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"correlations": correlations, "patterns": patterns, "partial": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"correlations": correlations, "patterns": patterns,
	})
}

func (s *server) handleRisk(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	kinds, since, until := queryWindow(r)

	result, err := s.engine.RiskReport(r.Context(), userID, kinds, since, until)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "risk assessment cancelled")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, map[string]any{
		"adaptive_thresholds": s.processor.AdaptiveThresholds(userID),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
