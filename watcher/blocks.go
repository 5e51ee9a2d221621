package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/labelset"
	"github.com/EthStaker/validator-watcher/metrics"
	"github.com/EthStaker/validator-watcher/notify"
)

// BlockTracker checks whether the proposer of a slot produced its block and
// counts proposed and missed blocks of watched validators.
type BlockTracker struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	notifier      notify.Notifier
	slotsPerEpoch uint64
	labels        *labelset.Registry

	mu sync.Mutex
}

func NewBlockTracker(logger *slog.Logger, m *metrics.Metrics, notifier notify.Notifier, slotsPerEpoch uint64) *BlockTracker {
	if slotsPerEpoch == 0 {
		slotsPerEpoch = SlotsPerEpoch
	}
	return &BlockTracker{
		logger:        logger.With("component", "block-tracker"),
		metrics:       m,
		notifier:      notifier,
		slotsPerEpoch: slotsPerEpoch,
		labels:        labelset.NewRegistry(),
	}
}

// Process returns true if one of the watched validators had to propose at slot.
func (t *BlockTracker) Process(ctx context.Context, duties beacon.ProposerDutiesProvider, blocks beacon.BlockProvider, watched labelset.Keys, slot phase0.Slot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.labels.Synchronize(watched,
		func(key string) {
			t.metrics.KeyProposedBlocks.WithLabelValues(key)
			t.metrics.KeyMissedBlocks.WithLabelValues(key)
		},
		func(key string) {
			t.metrics.KeyProposedBlocks.DeleteLabelValues(key)
			t.metrics.KeyMissedBlocks.DeleteLabelValues(key)
		},
	)

	epoch := phase0.Epoch(uint64(slot) / t.slotsPerEpoch)
	result := FetchDuties(ctx, duties, epoch)
	if result.Err != nil {
		t.logger.Warn("failed to fetch proposer duties, skipping block check", "epoch", epoch, "slot", slot, "error", result.Err)
		return false
	}

	var proposer string
	for _, duty := range result.Duties() {
		if duty.Slot == slot {
			proposer = duty.Pubkey
			break
		}
	}
	if proposer == "" {
		t.logger.Debug("no proposer duty for slot", "slot", slot)
		return false
	}

	hasBlock, err := blocks.HasBlockAtSlot(ctx, slot)
	if err != nil {
		t.logger.Warn("failed to check block at slot", "slot", slot, "error", err)
		return false
	}

	ours := watched.Contains(proposer)
	short := shortPubkey(proposer)
	attrs := []any{"validator", short, "ours", ours, "epoch", epoch, "slot", slot, "watched_keys", len(watched)}
	if hasBlock {
		t.logger.Info("block proposed", attrs...)
	} else {
		t.logger.Info("block missed", attrs...)
	}

	if !ours {
		return false
	}

	if hasBlock {
		t.metrics.ProposedBlocks.Inc()
		t.metrics.KeyProposedBlocks.WithLabelValues(proposer).Inc()
		return true
	}

	t.metrics.MissedBlocks.Inc()
	t.metrics.KeyMissedBlocks.WithLabelValues(proposer).Inc()
	send(ctx, t.logger, t.notifier, t.metrics.NotificationFailures,
		fmt.Sprintf("❌ Our validator `%s` missed block at epoch `%d` - slot `%d` ❌", short, epoch, slot))
	return true
}
