package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/gembot/config"
	"github.com/alejandrodnm/gembot/internal/adapters/notify"
	"github.com/alejandrodnm/gembot/internal/adapters/sim"
	"github.com/alejandrodnm/gembot/internal/adapters/storage"
	"github.com/alejandrodnm/gembot/internal/domain"
	"github.com/alejandrodnm/gembot/internal/engine"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full position table each tick (default: compact 1-line)")
	seed := flag.Int64("seed", 42, "seed for the simulated market (paper mode)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	mode := domain.Mode(cfg.Engine.Mode)
	slog.Info("gembot starting",
		"config", *configPath,
		"mode", mode,
		"tick", cfg.TickInterval(),
		"assets", cfg.Engine.Assets,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table)

	// Live mode necesita adapters de venue reales cableados aquí; hasta que
	// existan, el binario solo arranca en paper contra el mercado simulado.
	if mode == domain.ModeLive {
		slog.Error("live mode requires real venue adapters; run in paper mode")
		os.Exit(1)
	}

	spots := make(map[string]float64, len(cfg.Engine.Assets))
	for _, asset := range cfg.Engine.Assets {
		switch asset {
		case "BTC":
			spots[asset] = 67000
		case "ETH":
			spots[asset] = 3500
		default:
			spots[asset] = 100
		}
	}
	market := sim.NewMarket(*seed, spots, time.Now().Add(6*time.Hour))
	executor := sim.NewExecutor()

	engineCfg := engine.DefaultConfig()
	engineCfg.Mode = mode
	engineCfg.TickInterval = cfg.TickInterval()
	engineCfg.LearnInterval = cfg.LearnInterval()
	engineCfg.ReconcileInterval = cfg.ReconcileInterval()
	engineCfg.FeeRate = cfg.Engine.FeeRate
	engineCfg.InitialCapital = cfg.Engine.InitialCapital
	engineCfg.DefaultVol = cfg.Engine.DefaultVolatility
	engineCfg.VolWindow = cfg.VolWindow()
	engineCfg.VelocityWindow = cfg.VelocityWindow()
	engineCfg.OrdersPerCycle = cfg.Engine.MaxLiveOrdersPerCycle

	eng := engine.New(engineCfg, engine.Deps{
		Contracts: market,
		Venue:     market,
		Brackets:  market,
		Spot:      market,
		Executor:  executor,
		Storage:   store,
		Notifier:  notifier,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Bootstrap(ctx); err != nil {
		slog.Error("bootstrap failed", "err", err)
		os.Exit(1)
	}

	// El mercado simulado avanza su random walk en paralelo al tick loop.
	go stepMarket(ctx, market, cfg.TickInterval())

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("gembot stopped cleanly")
}

func stepMarket(ctx context.Context, market *sim.Market, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			market.Step(interval)
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
