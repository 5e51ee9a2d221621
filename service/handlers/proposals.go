package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/EthStaker/validator-watcher/watcher"
)

const ProposalsPattern = "GET /api/v1/proposals"

var _ Handler = (*ProposalsHandler)(nil)

// ProposalsHandler lists the upcoming block proposals of watched validators
// over the current and next epoch.
type ProposalsHandler struct {
	logger *slog.Logger
	state  WatchedState
}

func NewProposalsHandler(logger *slog.Logger, state WatchedState) Handler {
	logger = logger.With("component", "proposals-handler")
	return &ProposalsHandler{
		logger: logger,
		state:  state,
	}
}

func (h *ProposalsHandler) Pattern() string {
	return ProposalsPattern
}

func (h *ProposalsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	proposals := h.state.UpcomingProposals()
	if proposals == nil {
		proposals = []watcher.ProposalDuty{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(proposals); err != nil {
		h.logger.Debug("failed to encode proposals", "error", err)
	}
}
