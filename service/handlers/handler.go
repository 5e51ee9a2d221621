package handlers

import (
	"encoding/json"
	"net/http"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"

	"github.com/EthStaker/validator-watcher/watcher"
)

type Handler interface {
	Pattern() string
	http.Handler
}

// WatchedState is the view of the watcher the handlers serve from.
type WatchedState interface {
	Validator(pubkey string) (*apiv1.Validator, bool)
	UpcomingProposals() []watcher.ProposalDuty
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
