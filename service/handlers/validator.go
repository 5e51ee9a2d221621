package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"

	"github.com/EthStaker/validator-watcher/beacon"
)

const ByPubkeyPattern = "GET /api/v1/validator/{public_key}"

var _ Handler = (*ValidatorHandler)(nil)

type ValidatorHandler struct {
	logger *slog.Logger
	state  WatchedState
}

func NewValidatorHandler(logger *slog.Logger, state WatchedState) Handler {
	logger = logger.With("component", "validator-handler")
	return &ValidatorHandler{
		logger: logger,
		state:  state,
	}
}

func (h *ValidatorHandler) Pattern() string {
	return ByPubkeyPattern
}

func (h *ValidatorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	// Parse the public key from the request
	pubkeyString := r.PathValue("public_key")

	// There's no need to check for an empty public key string- the pattern doesn't match them.

	pubkey, err := beacon.ParsePubkey(pubkeyString)
	if errors.Is(err, beacon.ErrPubkeyPrefix) {
		h.logger.Debug("received request with public key that is not 0x-prefixed", "public_key", pubkeyString)
		writeError(w, http.StatusBadRequest, "Public key must be 0x-prefixed")
		return
	}
	if err != nil {
		h.logger.Debug("received request with invalid public key", "public_key", pubkeyString, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid public key")
		return
	}

	// Only watched validators are known, and only once the watcher has fetched them.
	validator, ok := h.state.Validator(beacon.PubkeyString(pubkey))
	if !ok {
		h.logger.Debug("validator not watched or not yet fetched", "public_key", pubkeyString)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	err = json.NewEncoder(w).Encode((*apiv1.Validator)(validator))
	if err != nil {
		h.logger.Debug("failed to encode validator", "public_key", pubkeyString, "error", err)
	}
}
