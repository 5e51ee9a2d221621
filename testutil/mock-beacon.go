package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/EthStaker/validator-watcher/beacon"
)

var ErrUnavailable = errors.New("beacon node unavailable")

type MockBeacon struct {
	Spec          *beacon.ChainSpec
	Validators    map[phase0.ValidatorIndex]*apiv1.Validator
	ValidatorsErr error
	Duties        map[phase0.Epoch][]*apiv1.ProposerDuty
	DutiesErr     map[phase0.Epoch]error
	Blocks        map[phase0.Slot]bool
	BlocksErr     error

	mu              sync.Mutex
	dutyCalls       []phase0.Epoch
	validatorsCalls int
}

var _ beacon.BeaconProvider = (*MockBeacon)(nil)

func NewMockBeacon() *MockBeacon {
	return &MockBeacon{
		Spec: &beacon.ChainSpec{
			GenesisTime:   time.Unix(1606824023, 0),
			SlotDuration:  12 * time.Second,
			SlotsPerEpoch: 32,
		},
		Validators: make(map[phase0.ValidatorIndex]*apiv1.Validator),
		Duties:     make(map[phase0.Epoch][]*apiv1.ProposerDuty),
		DutiesErr:  make(map[phase0.Epoch]error),
		Blocks:     make(map[phase0.Slot]bool),
	}
}

func (m *MockBeacon) ChainSpec(ctx context.Context) (*beacon.ChainSpec, error) {
	return m.Spec, nil
}

func (m *MockBeacon) WatchedValidators(ctx context.Context, slot phase0.Slot, pubkeys []phase0.BLSPubKey) (map[phase0.ValidatorIndex]*apiv1.Validator, error) {
	m.mu.Lock()
	m.validatorsCalls++
	m.mu.Unlock()

	if m.ValidatorsErr != nil {
		return nil, m.ValidatorsErr
	}
	wanted := make(map[phase0.BLSPubKey]bool, len(pubkeys))
	for _, pubkey := range pubkeys {
		wanted[pubkey] = true
	}
	out := make(map[phase0.ValidatorIndex]*apiv1.Validator)
	for index, validator := range m.Validators {
		if wanted[validator.Validator.PublicKey] {
			out[index] = validator
		}
	}
	return out, nil
}

func (m *MockBeacon) ProposerDuties(ctx context.Context, epoch phase0.Epoch) ([]*apiv1.ProposerDuty, error) {
	m.mu.Lock()
	m.dutyCalls = append(m.dutyCalls, epoch)
	m.mu.Unlock()

	if err := m.DutiesErr[epoch]; err != nil {
		return nil, err
	}
	return m.Duties[epoch], nil
}

func (m *MockBeacon) HasBlockAtSlot(ctx context.Context, slot phase0.Slot) (bool, error) {
	if m.BlocksErr != nil {
		return false, m.BlocksErr
	}
	return m.Blocks[slot], nil
}

// DutyCalls returns the epochs proposer duties were requested for.
func (m *MockBeacon) DutyCalls() []phase0.Epoch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]phase0.Epoch(nil), m.dutyCalls...)
}

func (m *MockBeacon) ValidatorsCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validatorsCalls
}

// AddValidator registers a validator with the given index, public key, status
// and slashed flag.
func (m *MockBeacon) AddValidator(index phase0.ValidatorIndex, pubkey string, status apiv1.ValidatorState, slashed bool) {
	key, err := beacon.ParsePubkey(pubkey)
	if err != nil {
		panic(err)
	}
	m.Validators[index] = &apiv1.Validator{
		Index:  index,
		Status: status,
		Validator: &phase0.Validator{
			PublicKey: key,
			Slashed:   slashed,
		},
	}
}

// AddDuty registers a proposer duty for pubkey at slot.
func (m *MockBeacon) AddDuty(pubkey string, slot phase0.Slot) {
	key, err := beacon.ParsePubkey(pubkey)
	if err != nil {
		panic(err)
	}
	epoch := phase0.Epoch(uint64(slot) / m.Spec.SlotsPerEpoch)
	m.Duties[epoch] = append(m.Duties[epoch], &apiv1.ProposerDuty{
		PubKey: key,
		Slot:   slot,
	})
}
