package watcher

import (
	"context"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/jonboulle/clockwork"

	"github.com/EthStaker/validator-watcher/beacon"
)

// DefaultSlotLag is how long after the start of a slot it is processed, so
// the block has had time to propagate.
const DefaultSlotLag = 4 * time.Second

// BeaconClock maps wall time onto slots and epochs.
type BeaconClock struct {
	clock         clockwork.Clock
	genesis       time.Time
	slotDuration  time.Duration
	slotsPerEpoch uint64
	lag           time.Duration
}

func NewBeaconClock(clock clockwork.Clock, spec *beacon.ChainSpec, lag time.Duration) *BeaconClock {
	return &BeaconClock{
		clock:         clock,
		genesis:       spec.GenesisTime,
		slotDuration:  spec.SlotDuration,
		slotsPerEpoch: spec.SlotsPerEpoch,
		lag:           lag,
	}
}

func (c *BeaconClock) SlotsPerEpoch() uint64 {
	return c.slotsPerEpoch
}

// CurrentSlot returns the slot of the current wall time, or 0 before genesis.
func (c *BeaconClock) CurrentSlot() phase0.Slot {
	now := c.clock.Now()
	if now.Before(c.genesis) {
		return 0
	}
	return phase0.Slot(now.Sub(c.genesis) / c.slotDuration)
}

func (c *BeaconClock) EpochOf(slot phase0.Slot) phase0.Epoch {
	return phase0.Epoch(uint64(slot) / c.slotsPerEpoch)
}

func (c *BeaconClock) IsEpochStart(slot phase0.Slot) bool {
	return uint64(slot)%c.slotsPerEpoch == 0
}

func (c *BeaconClock) SlotStart(slot phase0.Slot) time.Time {
	return c.genesis.Add(time.Duration(slot) * c.slotDuration)
}

// WaitForSlot blocks until the slot start plus the lag has passed, or ctx is done.
func (c *BeaconClock) WaitForSlot(ctx context.Context, slot phase0.Slot) error {
	wait := c.SlotStart(slot).Add(c.lag).Sub(c.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := c.clock.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
