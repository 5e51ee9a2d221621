package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/EthStaker/validator-watcher/labelset"
	"github.com/EthStaker/validator-watcher/metrics"
	"github.com/EthStaker/validator-watcher/notify"
)

type indexSet map[phase0.ValidatorIndex]struct{}

// ExitedTracker reports watched validators entering the exited state.
//
// The first call only records a baseline: validators that exited before the
// watcher started are counted but never alerted on. Afterwards every index
// newly present in the unslashed-exited map is alerted exactly once.
type ExitedTracker struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notifier notify.Notifier
	labels   *labelset.Registry

	mu sync.Mutex
	// nil until the baseline cycle has run.
	previous indexSet
}

func NewExitedTracker(logger *slog.Logger, m *metrics.Metrics, notifier notify.Notifier) *ExitedTracker {
	return &ExitedTracker{
		logger:   logger.With("component", "exited-tracker"),
		metrics:  m,
		notifier: notifier,
		labels:   labelset.NewRegistry(),
	}
}

// Process updates the exit metrics from this cycle's exit maps and alerts on
// validators that exited since the previous cycle.
func (t *ExitedTracker) Process(
	ctx context.Context,
	unslashedExited map[phase0.ValidatorIndex]WatchedValidator,
	withdrawal map[phase0.ValidatorIndex]WatchedValidator,
	desired labelset.Keys,
) {
	messages := t.process(unslashedExited, withdrawal, desired)

	for _, message := range messages {
		send(ctx, t.logger, t.notifier, t.metrics.NotificationFailures, message)
	}
}

func (t *ExitedTracker) process(
	unslashedExited map[phase0.ValidatorIndex]WatchedValidator,
	withdrawal map[phase0.ValidatorIndex]WatchedValidator,
	desired labelset.Keys,
) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.labels.Synchronize(desired,
		func(key string) { t.metrics.KeyExitedValidators.WithLabelValues(key) },
		func(key string) { t.metrics.KeyExitedValidators.DeleteLabelValues(key) },
	)

	current := make(indexSet, len(unslashedExited))
	for index := range unslashedExited {
		current[index] = struct{}{}
	}

	exited := maps.Clone(current)
	for index, validator := range withdrawal {
		if !validator.Slashed {
			exited[index] = struct{}{}
		}
	}

	t.metrics.OurExitedValidators.Set(float64(len(exited)))

	if t.previous == nil {
		t.previous = current
		t.logger.Debug("recorded exited validators baseline", "count", len(current))
		return nil
	}

	newlyExited := make([]phase0.ValidatorIndex, 0)
	for index := range current {
		if _, ok := t.previous[index]; !ok {
			newlyExited = append(newlyExited, index)
		}
	}
	slices.Sort(newlyExited)

	var messages []string
	for _, index := range newlyExited {
		validator := unslashedExited[index]
		short := shortPubkey(validator.Pubkey)
		t.logger.Info("our validator is exited", "validator", short, "index", index)
		messages = append(messages, fmt.Sprintf("🚶 Our validator `%s` is exited", short))
	}

	t.previous = current

	for index := range exited {
		validator, ok := unslashedExited[index]
		if !ok {
			validator = withdrawal[index]
		}
		// Only keys with a live label series are set, so removed keys stay removed.
		if !desired.Contains(validator.Pubkey) {
			continue
		}
		t.metrics.KeyExitedValidators.WithLabelValues(validator.Pubkey).Set(1)
	}

	return messages
}
