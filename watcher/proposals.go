package watcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"golang.org/x/sync/errgroup"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/labelset"
	"github.com/EthStaker/validator-watcher/metrics"
)

// ProposalDuty is a proposer assignment of a validator to a slot.
type ProposalDuty struct {
	Pubkey string      `json:"pubkey"`
	Slot   phase0.Slot `json:"slot"`
}

// DutyFetchResult is the outcome of fetching the proposer duties of one epoch.
type DutyFetchResult struct {
	Epoch  phase0.Epoch
	Err    error
	duties []ProposalDuty
}

// FetchDuties fetches the proposer duties of epoch. It never fails: errors are
// carried in the result.
func FetchDuties(ctx context.Context, fetcher beacon.ProposerDutiesProvider, epoch phase0.Epoch) DutyFetchResult {
	raw, err := fetcher.ProposerDuties(ctx, epoch)
	if err != nil {
		return DutyFetchResult{Epoch: epoch, Err: err}
	}
	duties := make([]ProposalDuty, 0, len(raw))
	for _, duty := range raw {
		if duty == nil {
			continue
		}
		duties = append(duties, ProposalDuty{
			Pubkey: beacon.PubkeyString(duty.PubKey),
			Slot:   duty.Slot,
		})
	}
	return DutyFetchResult{Epoch: epoch, duties: duties}
}

// Duties returns the fetched duties, or an empty list if the fetch failed.
func (r DutyFetchResult) Duties() []ProposalDuty {
	if r.Err != nil {
		return nil
	}
	return r.duties
}

// FilterDuties keeps the duties of watched keys at or after slot, preserving order.
func FilterDuties(duties []ProposalDuty, watched labelset.Keys, slot phase0.Slot) []ProposalDuty {
	out := make([]ProposalDuty, 0)
	for _, duty := range duties {
		if watched.Contains(duty.Pubkey) && duty.Slot >= slot {
			out = append(out, duty)
		}
	}
	return out
}

// Forecaster reports the upcoming block proposals of watched validators over
// the current and next epoch.
type Forecaster struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	slotsPerEpoch uint64
	labels        *labelset.Registry

	mu sync.Mutex
}

func NewForecaster(logger *slog.Logger, m *metrics.Metrics, slotsPerEpoch uint64) *Forecaster {
	if slotsPerEpoch == 0 {
		slotsPerEpoch = SlotsPerEpoch
	}
	return &Forecaster{
		logger:        logger.With("component", "proposal-forecaster"),
		metrics:       m,
		slotsPerEpoch: slotsPerEpoch,
		labels:        labelset.NewRegistry(),
	}
}

// Process forecasts the upcoming proposals and returns how many there are.
func (f *Forecaster) Process(ctx context.Context, fetcher beacon.ProposerDutiesProvider, watched labelset.Keys, currentSlot phase0.Slot, isEpochBoundary bool) int {
	return len(f.Forecast(ctx, fetcher, watched, currentSlot, isEpochBoundary))
}

// Forecast is Process returning the matched duties themselves, current epoch
// first. A failed fetch contributes no duties.
func (f *Forecaster) Forecast(ctx context.Context, fetcher beacon.ProposerDutiesProvider, watched labelset.Keys, currentSlot phase0.Slot, isEpochBoundary bool) []ProposalDuty {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.labels.Synchronize(watched,
		func(key string) { f.metrics.KeyFutureProposals.WithLabelValues(key) },
		func(key string) { f.metrics.KeyFutureProposals.DeleteLabelValues(key) },
	)

	epoch := phase0.Epoch(uint64(currentSlot) / f.slotsPerEpoch)

	var results [2]DutyFetchResult
	var group errgroup.Group
	for i := range results {
		group.Go(func() error {
			results[i] = FetchDuties(ctx, fetcher, epoch+phase0.Epoch(i))
			return nil
		})
	}
	_ = group.Wait()

	var all []ProposalDuty
	for _, result := range results {
		if result.Err != nil {
			f.logger.Warn("failed to fetch proposer duties, treating as empty",
				"epoch", result.Epoch, "current_epoch", epoch, "error", result.Err)
		}
		all = append(all, result.Duties()...)
	}

	filtered := FilterDuties(all, watched, currentSlot)

	f.metrics.FutureBlockProposals.Set(float64(len(filtered)))

	perKey := make(map[string]int, len(watched))
	for _, duty := range filtered {
		perKey[duty.Pubkey]++
	}
	for key := range watched {
		f.metrics.KeyFutureProposals.WithLabelValues(key).Add(float64(perKey[key]))
	}

	if isEpochBoundary {
		for _, duty := range filtered {
			f.logger.Info("our validator is going to propose a block",
				"validator", shortPubkey(duty.Pubkey),
				"slot", duty.Slot,
				"in_slots", duty.Slot-currentSlot,
			)
		}
	}

	return filtered
}
