package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/metrics"
)

func testPubkey(b byte) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%02x", b), 48)
}

func testDuty(t *testing.T, pubkey string, slot phase0.Slot) *apiv1.ProposerDuty {
	t.Helper()
	key, err := beacon.ParsePubkey(pubkey)
	if err != nil {
		t.Fatalf("Failed to parse pubkey: %v", err)
	}
	return &apiv1.ProposerDuty{PubKey: key, Slot: slot}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	return n.err
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func watched(index phase0.ValidatorIndex, pubkey string, slashed bool) WatchedValidator {
	return WatchedValidator{Index: index, Pubkey: pubkey, Slashed: slashed}
}
