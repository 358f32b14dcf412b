package httpserver

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/skinarb/skinarb/internal/scanner"
	"github.com/skinarb/skinarb/pkg/types"
	"go.uber.org/zap"
)

// OpportunitySource exposes the most recent scan results.
type OpportunitySource interface {
	LatestOpportunities() map[string]map[string][]scanner.Opportunity
}

// TargetSource exposes the current target set.
type TargetSource interface {
	Targets() []types.Target
}

// OpportunitiesHandler serves the last cycle's ranked opportunities.
type OpportunitiesHandler struct {
	source OpportunitySource
	logger *zap.Logger
}

// NewOpportunitiesHandler creates the /api/opportunities handler.
func NewOpportunitiesHandler(source OpportunitySource, logger *zap.Logger) *OpportunitiesHandler {
	return &OpportunitiesHandler{source: source, logger: logger}
}

// ServeHTTP handles GET /api/opportunities. Optional query parameters
// `game` and `tier` narrow the response.
func (h *OpportunitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	latest := h.source.LatestOpportunities()
	if latest == nil {
		latest = map[string]map[string][]scanner.Opportunity{}
	}

	game := r.URL.Query().Get("game")
	tierName := r.URL.Query().Get("tier")

	out := make(map[string]map[string][]scanner.Opportunity, len(latest))
	for gameID, byTier := range latest {
		if game != "" && gameID != game {
			continue
		}
		filtered := make(map[string][]scanner.Opportunity, len(byTier))
		for name, opps := range byTier {
			if tierName != "" && name != tierName {
				continue
			}
			filtered[name] = opps
		}
		out[gameID] = filtered
	}

	writeJSON(w, h.logger, out)
}

// TargetsHandler serves the current target set.
type TargetsHandler struct {
	source TargetSource
	logger *zap.Logger
}

// NewTargetsHandler creates the /api/targets handler.
func NewTargetsHandler(source TargetSource, logger *zap.Logger) *TargetsHandler {
	return &TargetsHandler{source: source, logger: logger}
}

// ServeHTTP handles GET /api/targets. The optional `status` query
// parameter filters by lifecycle state.
func (h *TargetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	targets := h.source.Targets()

	status := r.URL.Query().Get("status")
	if status != "" {
		filtered := make([]types.Target, 0, len(targets))
		for _, t := range targets {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		targets = filtered
	}

	writeJSON(w, h.logger, targets)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		logger.Error("response-encode-failed", zap.Error(err))
	}
}
