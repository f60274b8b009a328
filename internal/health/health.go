package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/model"
)

// Prober is the health surface the registry exposes.
type Prober interface {
	CheckHealth(ctx context.Context) model.HealthReport
}

// HealthChecker provides health check endpoints over the pool registry
type HealthChecker struct {
	prober  Prober
	timeout time.Duration
	logger  *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(prober Prober, timeout time.Duration, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		prober:  prober,
		timeout: timeout,
		logger:  logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler probes every backend and reports per-backend state.
// Partial outages produce a 503 with the failing backends named, never an
// error response without detail.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	report := h.prober.CheckHealth(ctx)

	checks := make(map[string]string)
	checks["primary"] = stateString(report.Primary)
	for i, ok := range report.Replicas {
		checks["replica_"+strconv.Itoa(i)] = stateString(ok)
	}
	for i, ok := range report.Shards {
		checks["shard_"+strconv.Itoa(i)] = stateString(ok)
	}
	checks["analytics"] = stateString(report.Analytics)
	checks["cache"] = stateString(report.Cache)

	status := HealthStatus{
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")

	if report.Healthy() {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		h.logger.Warn("Readiness check found unhealthy backends")
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}

func stateString(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// StartHealthServer starts the health check HTTP server
func StartHealthServer(hc *HealthChecker, port int, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", hc.LivenessHandler)
	mux.HandleFunc("/health/ready", hc.ReadinessHandler)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting health check server", zap.String("address", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
