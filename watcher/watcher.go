// Package watcher follows the watched validators slot by slot and reports
// exits, block proposals and upcoming proposal duties.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/labelset"
	"github.com/EthStaker/validator-watcher/metrics"
	"github.com/EthStaker/validator-watcher/notify"
)

// Snapshot is the state observed during the last processed slot.
type Snapshot struct {
	Slot       phase0.Slot
	Epoch      phase0.Epoch
	Validators map[string]*apiv1.Validator
	Proposals  []ProposalDuty
}

type Config struct {
	Logger   *slog.Logger
	Beacon   beacon.BeaconProvider
	Clock    *BeaconClock
	Metrics  *metrics.Metrics
	Notifier notify.Notifier
	// Pubkeys returns the currently watched public keys. It is called once per slot.
	Pubkeys func() labelset.Keys
}

type Watcher struct {
	logger  *slog.Logger
	beacon  beacon.BeaconProvider
	clock   *BeaconClock
	metrics *metrics.Metrics
	pubkeys func() labelset.Keys

	exited    *ExitedTracker
	proposals *Forecaster
	blocks    *BlockTracker

	// Keys the validators were last fetched for; only touched by ProcessSlot.
	fetchedKeys labelset.Keys
	snapshot    atomic.Pointer[Snapshot]
}

func New(cfg Config) *Watcher {
	logger := cfg.Logger.With("component", "watcher")
	slotsPerEpoch := cfg.Clock.SlotsPerEpoch()
	return &Watcher{
		logger:    logger,
		beacon:    cfg.Beacon,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		pubkeys:   cfg.Pubkeys,
		exited:    NewExitedTracker(cfg.Logger, cfg.Metrics, cfg.Notifier),
		proposals: NewForecaster(cfg.Logger, cfg.Metrics, slotsPerEpoch),
		blocks:    NewBlockTracker(cfg.Logger, cfg.Metrics, cfg.Notifier, slotsPerEpoch),
	}
}

// Run processes every slot from the current one until ctx is cancelled.
// Slots are never skipped: after a slow cycle the loop catches up.
func (w *Watcher) Run(ctx context.Context) error {
	slot := w.clock.CurrentSlot()
	w.logger.Info("starting watcher", "slot", slot, "epoch", w.clock.EpochOf(slot))

	for {
		if err := w.clock.WaitForSlot(ctx, slot); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("stopping watcher")
				return nil
			}
			return err
		}
		w.ProcessSlot(ctx, slot)
		slot++
	}
}

// ProcessSlot runs one cycle of every tracker for slot.
func (w *Watcher) ProcessSlot(ctx context.Context, slot phase0.Slot) {
	epoch := w.clock.EpochOf(slot)
	isEpochStart := w.clock.IsEpochStart(slot)
	pubkeys := w.pubkeys()
	if pubkeys == nil {
		pubkeys = labelset.Keys{}
	}

	w.logger.Debug("processing slot", "slot", slot, "epoch", epoch, "watched_keys", len(pubkeys))
	w.metrics.Slot.Set(float64(slot))
	w.metrics.Epoch.Set(float64(epoch))
	w.metrics.WatchedValidators.Set(float64(len(pubkeys)))

	snapshot := &Snapshot{Slot: slot, Epoch: epoch}
	previous := w.snapshot.Load()
	if previous != nil {
		snapshot.Validators = previous.Validators
	}

	if previous == nil || isEpochStart || keysChanged(w.fetchedKeys, pubkeys) {
		if validators, ok := w.refreshValidators(ctx, slot, pubkeys); ok {
			snapshot.Validators = validators
		}
	}

	duties := newDutiesCache(w.beacon, w.metrics.DutyFetchFailures)
	w.blocks.Process(ctx, duties, w.beacon, pubkeys, slot)
	snapshot.Proposals = w.proposals.Forecast(ctx, duties, pubkeys, slot, isEpochStart)

	w.snapshot.Store(snapshot)
}

// refreshValidators fetches the watched validators and runs the exit tracker.
// On failure the exit state is left untouched until the next attempt.
func (w *Watcher) refreshValidators(ctx context.Context, slot phase0.Slot, pubkeys labelset.Keys) (map[string]*apiv1.Validator, bool) {
	keys := make([]phase0.BLSPubKey, 0, len(pubkeys))
	for _, s := range pubkeys.Sorted() {
		key, err := beacon.ParsePubkey(s)
		if err != nil {
			w.logger.Warn("ignoring invalid watched public key", "public_key", s, "error", err)
			continue
		}
		keys = append(keys, key)
	}

	validators, err := w.beacon.WatchedValidators(ctx, slot, keys)
	if err != nil {
		w.logger.Warn("failed to fetch watched validators, retrying next slot", "slot", slot, "error", err)
		w.fetchedKeys = nil
		return nil, false
	}
	w.fetchedKeys = pubkeys

	unslashedExited, withdrawal := splitExited(validators)
	w.exited.Process(ctx, unslashedExited, withdrawal, pubkeys)

	byPubkey := make(map[string]*apiv1.Validator, len(validators))
	for _, validator := range validators {
		if validator == nil || validator.Validator == nil {
			continue
		}
		byPubkey[beacon.PubkeyString(validator.Validator.PublicKey)] = validator
	}
	return byPubkey, true
}

func keysChanged(previous, current labelset.Keys) bool {
	if previous == nil {
		return true
	}
	toCreate, toRemove := labelset.Diff(previous, current)
	return len(toCreate) > 0 || len(toRemove) > 0
}

// Snapshot returns the state of the last processed slot, or nil before the first one.
func (w *Watcher) Snapshot() *Snapshot {
	return w.snapshot.Load()
}

// Validator returns the last known record of a watched validator.
func (w *Watcher) Validator(pubkey string) (*apiv1.Validator, bool) {
	snapshot := w.snapshot.Load()
	if snapshot == nil {
		return nil, false
	}
	validator, ok := snapshot.Validators[pubkey]
	return validator, ok
}

// UpcomingProposals returns the proposal duties forecast during the last processed slot.
func (w *Watcher) UpcomingProposals() []ProposalDuty {
	snapshot := w.snapshot.Load()
	if snapshot == nil {
		return nil
	}
	return snapshot.Proposals
}
