package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/EthStaker/validator-watcher/beacon"
	"github.com/EthStaker/validator-watcher/config"
	"github.com/EthStaker/validator-watcher/metrics"
	"github.com/EthStaker/validator-watcher/notify"
	"github.com/EthStaker/validator-watcher/service"
	"github.com/EthStaker/validator-watcher/watcher"
)

var (
	port       = flag.Int("port", 8000, "The port to serve metrics and the API on")
	configPath = flag.String("config", "config.yaml", "The path of the YAML configuration file")
	beaconUrl  beaconUrlValue
	logLevel   logLevelValue
	logFormat  logFormatValue
)

func main() {
	// Initialize non-primitive flags
	flag.Var(&logLevel, "log-level", "The log level to use")
	logLevel.Set("info")
	flag.Var(&logFormat, "log-format", "The log format to use - 'text' or 'json'")
	logFormat.Set("text")
	flag.Var(&beaconUrl, "beacon-url", "The beacon URL to use, overriding the configuration file")
	flag.Parse()

	handler := logFormat.Handler(os.Stdout, &slog.HandlerOptions{Level: logLevel.Level})
	logger := slog.New(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := config.NewStore(logger, *configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	cfg := store.Current()

	beaconAddress := cfg.BeaconURL
	if beaconUrl.set {
		beaconAddress = beaconUrl.String()
	}

	// Create the beacon client
	beaconClient, err := beacon.NewClient(ctx, logger, logLevel.Level, beaconAddress, cfg.BeaconTimeout())
	if err != nil {
		logger.Error("Failed to create beacon client", "error", err)
		os.Exit(1)
	}
	defer beaconClient.Stop()

	spec, err := beaconClient.ChainSpec(ctx)
	if err != nil {
		logger.Error("Failed to fetch chain spec", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to beacon node",
		"network", cfg.Network,
		"genesis", spec.GenesisTime,
		"slot_duration", spec.SlotDuration,
		"slots_per_epoch", spec.SlotsPerEpoch,
	)

	registry := metrics.NewRegistry()
	m := metrics.New(prometheus.WrapRegistererWith(prometheus.Labels{"network": cfg.Network}, registry))

	var notifier notify.Notifier
	if cfg.SlackWebhook != "" {
		notifier = notify.NewSlack(cfg.SlackWebhook, cfg.BeaconTimeout())
	} else {
		logger.Info("No Slack webhook configured, notifications are only logged")
	}

	w := watcher.New(watcher.Config{
		Logger:   logger,
		Beacon:   beaconClient,
		Clock:    watcher.NewBeaconClock(clockwork.NewRealClock(), spec, watcher.DefaultSlotLag),
		Metrics:  m,
		Notifier: notifier,
		Pubkeys:  store.Pubkeys,
	})

	svc := service.Service{
		Logger:   logger,
		Context:  ctx,
		Port:     *port,
		State:    w,
		Gatherer: registry,
	}

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := store.Watch(ctx); err != nil {
			logger.Warn("Configuration hot reload disabled", "error", err)
		}
	}()

	go func() {
		if err := svc.Run(); err != nil {
			logger.Error("Failed to run service", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Error("Watcher stopped", "error", err)
			cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled")
			os.Exit(0)
		case <-signalChannel:
			logger.Info("Signal received")
			cancel()
			signal.Reset(os.Interrupt, syscall.SIGTERM)
		}
	}
}
