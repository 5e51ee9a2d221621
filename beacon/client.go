package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nativehttp "net/http"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	http "github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Client struct {
	logger  *slog.Logger
	beacon  eth2client.Service
	timeout time.Duration

	cancel context.CancelFunc
}

var _ BeaconProvider = (*Client)(nil)

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch level {
	case slog.LevelDebug:
		return zerolog.DebugLevel
	case slog.LevelInfo:
		return zerolog.InfoLevel
	case slog.LevelWarn:
		return zerolog.WarnLevel
	case slog.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func NewClient(ctx context.Context, logger *slog.Logger, level slog.Level, beaconUrl string, timeout time.Duration) (*Client, error) {
	ctx, cancel := context.WithCancel(ctx)
	client, err := http.New(ctx,
		http.WithAddress(beaconUrl),
		http.WithLogLevel(slogToZerologLevel(level)),
		http.WithTimeout(timeout),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create beacon client: %w", err)
	}

	return &Client{
		logger:  logger.With("component", "beacon"),
		beacon:  client,
		timeout: timeout,
		cancel:  cancel,
	}, nil
}

func errorIs404(err error) bool {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == nativehttp.StatusNotFound
	}
	return false
}

func (c *Client) commonOpts(ctx context.Context) api.CommonOpts {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	return api.CommonOpts{
		Timeout: time.Until(deadline),
	}
}

func (c *Client) Stop() {
	c.cancel()
}

// ChainSpec fetches the chain configuration and genesis in parallel.
func (c *Client) ChainSpec(ctx context.Context) (*ChainSpec, error) {
	client := c.beacon.(*http.Service)
	commonOpts := c.commonOpts(ctx)

	var (
		specData    map[string]any
		genesisTime time.Time
	)
	group, wgCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		specResponse, err := client.Spec(wgCtx, &api.SpecOpts{Common: commonOpts})
		if err != nil {
			return fmt.Errorf("failed to get spec: %w", err)
		}
		specData = specResponse.Data
		return nil
	})
	group.Go(func() error {
		genesisResponse, err := client.Genesis(wgCtx, &api.GenesisOpts{Common: commonOpts})
		if err != nil {
			return fmt.Errorf("failed to get genesis: %w", err)
		}
		genesisTime = genesisResponse.Data.GenesisTime
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return parseChainSpec(specData, genesisTime)
}

func parseChainSpec(data map[string]any, genesisTime time.Time) (*ChainSpec, error) {
	out := &ChainSpec{GenesisTime: genesisTime}

	switch v := data["SECONDS_PER_SLOT"].(type) {
	case time.Duration:
		out.SlotDuration = v
	case uint64:
		out.SlotDuration = time.Duration(v) * time.Second
	default:
		return nil, fmt.Errorf("unexpected SECONDS_PER_SLOT value %v", data["SECONDS_PER_SLOT"])
	}

	slotsPerEpoch, ok := data["SLOTS_PER_EPOCH"].(uint64)
	if !ok {
		return nil, fmt.Errorf("unexpected SLOTS_PER_EPOCH value %v", data["SLOTS_PER_EPOCH"])
	}
	out.SlotsPerEpoch = slotsPerEpoch

	if out.SlotDuration <= 0 || out.SlotsPerEpoch == 0 {
		return nil, fmt.Errorf("invalid chain spec: slot duration %s, slots per epoch %d", out.SlotDuration, out.SlotsPerEpoch)
	}
	return out, nil
}

func (c *Client) WatchedValidators(ctx context.Context, slot phase0.Slot, pubkeys []phase0.BLSPubKey) (map[phase0.ValidatorIndex]*apiv1.Validator, error) {
	// An empty filter would return the whole validator set.
	if len(pubkeys) == 0 {
		return map[phase0.ValidatorIndex]*apiv1.Validator{}, nil
	}

	start := time.Now()
	client := c.beacon.(*http.Service)
	validatorsResponse, err := client.Validators(ctx, &api.ValidatorsOpts{
		State:   fmt.Sprint(slot),
		PubKeys: pubkeys,
		Common:  c.commonOpts(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get validators: %w", err)
	}
	c.logger.Debug("fetched watched validators", "slot", slot, "count", len(validatorsResponse.Data), "duration", time.Since(start))
	return validatorsResponse.Data, nil
}

func (c *Client) ProposerDuties(ctx context.Context, epoch phase0.Epoch) ([]*apiv1.ProposerDuty, error) {
	client := c.beacon.(*http.Service)
	dutiesResponse, err := client.ProposerDuties(ctx, &api.ProposerDutiesOpts{
		Epoch:  epoch,
		Common: c.commonOpts(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get proposer duties for epoch %d: %w", epoch, err)
	}
	return dutiesResponse.Data, nil
}

func (c *Client) HasBlockAtSlot(ctx context.Context, slot phase0.Slot) (bool, error) {
	client := c.beacon.(*http.Service)
	_, err := client.BeaconBlockHeader(ctx, &api.BeaconBlockHeaderOpts{
		Block:  fmt.Sprint(slot),
		Common: c.commonOpts(ctx),
	})
	if err != nil {
		if errorIs404(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get beacon block header at slot %d: %w", slot, err)
	}
	return true, nil
}
