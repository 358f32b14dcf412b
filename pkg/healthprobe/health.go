// Package healthprobe exposes liveness and readiness handlers for the bot.
// Liveness only says the process is up; readiness flips once the scan loop
// and stream are running, and back off during shutdown so the load balancer
// drains us first.
package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a new HealthChecker.
func New() *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
	}
}

// SetReady marks the bot as ready to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// ProbeResponse is the body of both probe endpoints.
type ProbeResponse struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Message string `json:"message,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK while the process is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.write(w, http.StatusOK, ProbeResponse{
			Service: "skinarb",
			Status:  "healthy",
			Uptime:  time.Since(h.startTime).String(),
		})
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK once the trading loop is up, 503 before and during shutdown.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			h.write(w, http.StatusServiceUnavailable, ProbeResponse{
				Service: "skinarb",
				Status:  "not_ready",
				Message: "trading loop is not running",
			})
			return
		}

		h.write(w, http.StatusOK, ProbeResponse{
			Service: "skinarb",
			Status:  "ready",
			Uptime:  time.Since(h.startTime).String(),
		})
	}
}

func (h *HealthChecker) write(w http.ResponseWriter, code int, resp ProbeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
