package beacon

import (
	"context"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// ChainSpec holds the chain parameters the watcher needs to follow the slot clock.
type ChainSpec struct {
	GenesisTime   time.Time
	SlotDuration  time.Duration
	SlotsPerEpoch uint64
}

type SpecProvider interface {
	ChainSpec(ctx context.Context) (*ChainSpec, error)
}

type ValidatorsProvider interface {
	// WatchedValidators returns the validators with the given public keys at
	// the given slot, keyed by index. Unknown keys are omitted.
	WatchedValidators(ctx context.Context, slot phase0.Slot, pubkeys []phase0.BLSPubKey) (map[phase0.ValidatorIndex]*apiv1.Validator, error)
}

type ProposerDutiesProvider interface {
	ProposerDuties(ctx context.Context, epoch phase0.Epoch) ([]*apiv1.ProposerDuty, error)
}

type BlockProvider interface {
	// HasBlockAtSlot reports whether a canonical block exists at slot.
	HasBlockAtSlot(ctx context.Context, slot phase0.Slot) (bool, error)
}

type BeaconProvider interface {
	SpecProvider
	ValidatorsProvider
	ProposerDutiesProvider
	BlockProvider
}
