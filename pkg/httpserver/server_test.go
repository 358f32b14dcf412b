package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

type fakeOpportunities struct {
	latest map[string]map[string][]scanner.Opportunity
}

func (f *fakeOpportunities) LatestOpportunities() map[string]map[string][]scanner.Opportunity {
	return f.latest
}

type fakeTargets struct {
	targets []types.Target
}

func (f *fakeTargets) Targets() []types.Target {
	return f.targets
}

func newTestServer() *Server {
	checker := healthprobe.New()
	checker.SetReady(true)

	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: checker,
		Opportunities: &fakeOpportunities{latest: map[string]map[string][]scanner.Opportunity{
			"csgo": {"boost": {{ID: "opp-1", TierName: "boost", ROIPercent: 23}}},
		}},
		Targets: &fakeTargets{targets: []types.Target{
			{RequestID: "req-1", Status: types.TargetActive},
			{RequestID: "req-2", Status: types.TargetFilled},
		}},
	})
}

func TestRoutes(t *testing.T) {
	server := newTestServer()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/health", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/opportunities", http.StatusOK},
		{"/api/targets", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			server.server.Handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestOpportunitiesHandler_TierFilter(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/opportunities?game=csgo&tier=boost", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	var payload map[string]map[string][]scanner.Opportunity
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload["csgo"]["boost"]) != 1 {
		t.Errorf("boost opportunities = %d, want 1", len(payload["csgo"]["boost"]))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/opportunities?game=dota2", nil)
	rec = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	payload = map[string]map[string][]scanner.Opportunity{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload) != 0 {
		t.Errorf("expected empty response for unknown game, got %v", payload)
	}
}

func TestTargetsHandler_StatusFilter(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/targets?status=active", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	var payload []types.Target
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload) != 1 || payload[0].RequestID != "req-1" {
		t.Errorf("targets = %+v, want only req-1", payload)
	}
}

func TestReady_NotReadyIs503(t *testing.T) {
	checker := healthprobe.New()
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: checker,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
