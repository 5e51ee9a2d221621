package watcher

import (
	"context"
	"testing"
	"time"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/EthStaker/validator-watcher/labelset"
	"github.com/EthStaker/validator-watcher/metrics"
	tu "github.com/EthStaker/validator-watcher/testutil"
)

type watcherFixture struct {
	mock     *tu.MockBeacon
	clock    *clockwork.FakeClock
	metrics  *metrics.Metrics
	notifier *recordingNotifier
	keys     labelset.Keys
	watcher  *Watcher
}

func newWatcherFixture(t *testing.T, slot phase0.Slot, keys ...string) *watcherFixture {
	t.Helper()
	f := &watcherFixture{
		mock:     tu.NewMockBeacon(),
		metrics:  newTestMetrics(),
		notifier: new(recordingNotifier),
		keys:     labelset.FromSlice(keys),
	}
	start := f.mock.Spec.GenesisTime.Add(time.Duration(slot)*f.mock.Spec.SlotDuration + DefaultSlotLag)
	f.clock = clockwork.NewFakeClockAt(start)
	f.watcher = New(Config{
		Logger:   tu.NewTestLogger(t),
		Beacon:   f.mock,
		Clock:    NewBeaconClock(f.clock, f.mock.Spec, DefaultSlotLag),
		Metrics:  f.metrics,
		Notifier: f.notifier,
		Pubkeys:  func() labelset.Keys { return f.keys },
	})
	return f
}

func TestProcessSlotRefreshesValidatorsPerEpoch(t *testing.T) {
	a, b := testPubkey(0xaa), testPubkey(0xbb)
	f := newWatcherFixture(t, 100, a, b)
	f.mock.AddValidator(1, a, apiv1.ValidatorStateActiveOngoing, false)
	f.mock.AddValidator(2, b, apiv1.ValidatorStateExitedUnslashed, false)

	// First slot always fetches and only records the baseline.
	f.watcher.ProcessSlot(t.Context(), 100)
	require.Equal(t, 1, f.mock.ValidatorsCalls())
	require.Empty(t, f.notifier.Messages())
	require.InDelta(t, 100, testutil.ToFloat64(f.metrics.Slot), 0)
	require.InDelta(t, 3, testutil.ToFloat64(f.metrics.Epoch), 0)
	require.InDelta(t, 2, testutil.ToFloat64(f.metrics.WatchedValidators), 0)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.OurExitedValidators), 0)

	validator, ok := f.watcher.Validator(a)
	require.True(t, ok)
	require.Equal(t, phase0.ValidatorIndex(1), validator.Index)

	f.mock.Validators[1].Status = apiv1.ValidatorStateExitedUnslashed

	// Mid-epoch slots reuse the last validator records.
	f.watcher.ProcessSlot(t.Context(), 101)
	require.Equal(t, 1, f.mock.ValidatorsCalls())
	require.Empty(t, f.notifier.Messages())

	f.watcher.ProcessSlot(t.Context(), 128)
	require.Equal(t, 2, f.mock.ValidatorsCalls())
	require.Equal(t, []string{"🚶 Our validator `0xaaaaaaaa` is exited"}, f.notifier.Messages())
	require.InDelta(t, 2, testutil.ToFloat64(f.metrics.OurExitedValidators), 0)
}

func TestProcessSlotRefreshesOnKeyChange(t *testing.T) {
	a, b := testPubkey(0xaa), testPubkey(0xbb)
	f := newWatcherFixture(t, 100, a)
	f.mock.AddValidator(1, a, apiv1.ValidatorStateActiveOngoing, false)
	f.mock.AddValidator(2, b, apiv1.ValidatorStateActiveOngoing, false)

	f.watcher.ProcessSlot(t.Context(), 100)
	_, ok := f.watcher.Validator(b)
	require.False(t, ok)

	f.keys = labelset.FromSlice([]string{a, b})
	f.watcher.ProcessSlot(t.Context(), 101)
	require.Equal(t, 2, f.mock.ValidatorsCalls())
	_, ok = f.watcher.Validator(b)
	require.True(t, ok)
	require.Equal(t, 2, testutil.CollectAndCount(f.metrics.KeyExitedValidators))

	f.keys = labelset.FromSlice([]string{b})
	f.watcher.ProcessSlot(t.Context(), 102)
	require.Equal(t, 3, f.mock.ValidatorsCalls())
	require.Equal(t, 1, testutil.CollectAndCount(f.metrics.KeyExitedValidators))
	require.Equal(t, 1, testutil.CollectAndCount(f.metrics.KeyFutureProposals))
	require.Equal(t, 1, testutil.CollectAndCount(f.metrics.KeyMissedBlocks))
}

func TestProcessSlotRetriesFailedValidatorFetch(t *testing.T) {
	a := testPubkey(0xaa)
	f := newWatcherFixture(t, 100, a)
	f.mock.AddValidator(1, a, apiv1.ValidatorStateActiveOngoing, false)
	f.mock.ValidatorsErr = tu.ErrUnavailable

	f.watcher.ProcessSlot(t.Context(), 100)
	_, ok := f.watcher.Validator(a)
	require.False(t, ok)

	f.mock.ValidatorsErr = nil
	f.watcher.ProcessSlot(t.Context(), 101)
	require.Equal(t, 2, f.mock.ValidatorsCalls())
	_, ok = f.watcher.Validator(a)
	require.True(t, ok)
}

func TestProcessSlotBlocksAndProposals(t *testing.T) {
	a, b := testPubkey(0xaa), testPubkey(0xbb)
	f := newWatcherFixture(t, 100, a)
	f.mock.AddDuty(a, 100)
	f.mock.AddDuty(b, 101)
	f.mock.AddDuty(a, 130)

	f.watcher.ProcessSlot(t.Context(), 100)

	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.MissedBlocks), 0)
	require.Len(t, f.notifier.Messages(), 1)
	require.Equal(t, []ProposalDuty{{Pubkey: a, Slot: 100}, {Pubkey: a, Slot: 130}}, f.watcher.UpcomingProposals())
	require.InDelta(t, 2, testutil.ToFloat64(f.metrics.FutureBlockProposals), 0)

	// Epoch 3 duties are fetched once and shared by both trackers.
	require.ElementsMatch(t, []phase0.Epoch{3, 4}, f.mock.DutyCalls())

	snapshot := f.watcher.Snapshot()
	require.Equal(t, phase0.Slot(100), snapshot.Slot)
	require.Equal(t, phase0.Epoch(3), snapshot.Epoch)
}

func TestProcessSlotCountsDutyFailureOnce(t *testing.T) {
	a := testPubkey(0xaa)
	f := newWatcherFixture(t, 100, a)
	f.mock.AddDuty(a, 100)
	f.mock.DutiesErr[3] = tu.ErrUnavailable

	f.watcher.ProcessSlot(t.Context(), 100)

	// The block tracker and the forecaster both see the failed epoch.
	require.ElementsMatch(t, []phase0.Epoch{3, 4}, f.mock.DutyCalls())
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.DutyFetchFailures), 0)
	require.InDelta(t, 0, testutil.ToFloat64(f.metrics.MissedBlocks), 0)
	require.Empty(t, f.watcher.UpcomingProposals())
}

func TestWatcherBeforeFirstSlot(t *testing.T) {
	f := newWatcherFixture(t, 100)
	require.Nil(t, f.watcher.Snapshot())
	require.Nil(t, f.watcher.UpcomingProposals())
	_, ok := f.watcher.Validator(testPubkey(0xaa))
	require.False(t, ok)
}

func TestWatcherRun(t *testing.T) {
	a := testPubkey(0xaa)
	f := newWatcherFixture(t, 100, a)
	f.mock.AddValidator(1, a, apiv1.ValidatorStateActiveOngoing, false)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- f.watcher.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		snapshot := f.watcher.Snapshot()
		return snapshot != nil && snapshot.Slot == 100
	}, time.Second, time.Millisecond)

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(f.mock.Spec.SlotDuration)

	require.Eventually(t, func() bool {
		return f.watcher.Snapshot().Slot == 101
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
