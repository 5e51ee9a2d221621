package watcher

import (
	"context"
	"sync"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/EthStaker/validator-watcher/beacon"
)

type dutiesEntry struct {
	ready  chan struct{}
	duties []*apiv1.ProposerDuty
	err    error
}

// dutiesCache memoizes proposer duty responses, failures included, so that
// every tracker in a cycle sees the same answer for an epoch. It lives for a
// single cycle since next-epoch duties may still change. Each failed upstream
// fetch is counted once in failures, however many callers observe it.
type dutiesCache struct {
	inner    beacon.ProposerDutiesProvider
	failures prometheus.Counter

	mu     sync.Mutex
	epochs map[phase0.Epoch]*dutiesEntry
}

var _ beacon.ProposerDutiesProvider = (*dutiesCache)(nil)

func newDutiesCache(inner beacon.ProposerDutiesProvider, failures prometheus.Counter) *dutiesCache {
	return &dutiesCache{
		inner:    inner,
		failures: failures,
		epochs:   make(map[phase0.Epoch]*dutiesEntry),
	}
}

func (c *dutiesCache) ProposerDuties(ctx context.Context, epoch phase0.Epoch) ([]*apiv1.ProposerDuty, error) {
	c.mu.Lock()
	entry, ok := c.epochs[epoch]
	if !ok {
		entry = &dutiesEntry{ready: make(chan struct{})}
		c.epochs[epoch] = entry
	}
	c.mu.Unlock()

	if !ok {
		entry.duties, entry.err = c.inner.ProposerDuties(ctx, epoch)
		if entry.err != nil && c.failures != nil {
			c.failures.Inc()
		}
		close(entry.ready)
		return entry.duties, entry.err
	}

	select {
	case <-entry.ready:
		return entry.duties, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
