package watcher

import (
	"context"
	"log/slog"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/notify"
)

// SlotsPerEpoch is the mainnet value, used when the chain spec is not known.
const SlotsPerEpoch = 32

const shortPubkeyLength = 10

// WatchedValidator is the subset of a validator record the trackers look at.
type WatchedValidator struct {
	Index   phase0.ValidatorIndex
	Pubkey  string
	Slashed bool
}

// shortPubkey returns the prefix of a public key used in human-readable messages.
func shortPubkey(pubkey string) string {
	if len(pubkey) <= shortPubkeyLength {
		return pubkey
	}
	return pubkey[:shortPubkeyLength]
}

func toWatched(index phase0.ValidatorIndex, validator *apiv1.Validator) WatchedValidator {
	return WatchedValidator{
		Index:   index,
		Pubkey:  beacon.PubkeyString(validator.Validator.PublicKey),
		Slashed: validator.Validator.Slashed,
	}
}

// splitExited sorts validators into the two exit categories. Validators in
// any other state are ignored.
func splitExited(validators map[phase0.ValidatorIndex]*apiv1.Validator) (unslashedExited, withdrawal map[phase0.ValidatorIndex]WatchedValidator) {
	unslashedExited = make(map[phase0.ValidatorIndex]WatchedValidator)
	withdrawal = make(map[phase0.ValidatorIndex]WatchedValidator)
	for index, validator := range validators {
		if validator == nil || validator.Validator == nil {
			continue
		}
		switch validator.Status {
		case apiv1.ValidatorStateExitedUnslashed:
			unslashedExited[index] = toWatched(index, validator)
		case apiv1.ValidatorStateWithdrawalPossible, apiv1.ValidatorStateWithdrawalDone:
			withdrawal[index] = toWatched(index, validator)
		}
	}
	return unslashedExited, withdrawal
}

// send pushes text to the notifier, if any. Delivery failures are logged and
// counted, never returned.
func send(ctx context.Context, logger *slog.Logger, notifier notify.Notifier, failures prometheus.Counter, text string) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, text); err != nil {
		failures.Inc()
		logger.Warn("failed to send notification", "error", err)
	}
}
