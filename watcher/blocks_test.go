package watcher

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/EthStaker/validator-watcher/labelset"
	tu "github.com/EthStaker/validator-watcher/testutil"
)

func TestBlockTrackerProposed(t *testing.T) {
	a := testPubkey(0xaa)
	mock := tu.NewMockBeacon()
	mock.AddDuty(a, 100)
	mock.Blocks[100] = true

	m := newTestMetrics()
	notifier := new(recordingNotifier)
	tracker := NewBlockTracker(tu.NewTestLogger(t), m, notifier, 32)

	ours := tracker.Process(t.Context(), mock, mock, labelset.FromSlice([]string{a}), 100)

	require.True(t, ours)
	require.InDelta(t, 1, testutil.ToFloat64(m.ProposedBlocks), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.MissedBlocks), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.KeyProposedBlocks.WithLabelValues(a)), 0)
	require.Empty(t, notifier.Messages())
}

func TestBlockTrackerMissed(t *testing.T) {
	a := testPubkey(0xaa)
	mock := tu.NewMockBeacon()
	mock.AddDuty(a, 100)

	m := newTestMetrics()
	notifier := new(recordingNotifier)
	tracker := NewBlockTracker(tu.NewTestLogger(t), m, notifier, 32)

	ours := tracker.Process(t.Context(), mock, mock, labelset.FromSlice([]string{a}), 100)

	require.True(t, ours)
	require.InDelta(t, 1, testutil.ToFloat64(m.MissedBlocks), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.KeyMissedBlocks.WithLabelValues(a)), 0)
	require.Equal(t, []string{"❌ Our validator `0xaaaaaaaa` missed block at epoch `3` - slot `100` ❌"}, notifier.Messages())
}

func TestBlockTrackerOtherProposer(t *testing.T) {
	a, b := testPubkey(0xaa), testPubkey(0xbb)
	mock := tu.NewMockBeacon()
	mock.AddDuty(b, 100)

	m := newTestMetrics()
	notifier := new(recordingNotifier)
	tracker := NewBlockTracker(tu.NewTestLogger(t), m, notifier, 32)

	require.False(t, tracker.Process(t.Context(), mock, mock, labelset.FromSlice([]string{a}), 100))
	require.InDelta(t, 0, testutil.ToFloat64(m.MissedBlocks), 0)
	require.Empty(t, notifier.Messages())
}

func TestBlockTrackerUpstreamFailures(t *testing.T) {
	a := testPubkey(0xaa)
	watched := labelset.FromSlice([]string{a})

	mock := tu.NewMockBeacon()
	mock.AddDuty(a, 100)
	mock.DutiesErr[3] = tu.ErrUnavailable

	m := newTestMetrics()
	tracker := NewBlockTracker(tu.NewTestLogger(t), m, nil, 32)

	require.False(t, tracker.Process(t.Context(), mock, mock, watched, 100))
	require.InDelta(t, 0, testutil.ToFloat64(m.MissedBlocks), 0)

	delete(mock.DutiesErr, 3)
	mock.BlocksErr = tu.ErrUnavailable
	require.False(t, tracker.Process(t.Context(), mock, mock, watched, 100))
	require.InDelta(t, 0, testutil.ToFloat64(m.MissedBlocks), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.ProposedBlocks), 0)
}

func TestBlockTrackerSynchronizesLabels(t *testing.T) {
	a, b := testPubkey(0xaa), testPubkey(0xbb)
	mock := tu.NewMockBeacon()

	m := newTestMetrics()
	tracker := NewBlockTracker(tu.NewTestLogger(t), m, nil, 32)

	tracker.Process(t.Context(), mock, mock, labelset.FromSlice([]string{a, b}), 100)
	require.Equal(t, 2, testutil.CollectAndCount(m.KeyProposedBlocks))
	require.Equal(t, 2, testutil.CollectAndCount(m.KeyMissedBlocks))

	tracker.Process(t.Context(), mock, mock, labelset.FromSlice([]string{a}), 101)
	require.Equal(t, 1, testutil.CollectAndCount(m.KeyProposedBlocks))
	require.Equal(t, 1, testutil.CollectAndCount(m.KeyMissedBlocks))
}
