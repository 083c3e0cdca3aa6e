// NSE Scanner Backend Server
// Entry point for the scanner control plane service

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/quantrail/nse-scanner/internal/api/http"
	"github.com/quantrail/nse-scanner/internal/calendar"
	"github.com/quantrail/nse-scanner/internal/clock"
	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/db"
	"github.com/quantrail/nse-scanner/internal/db/repository"
	"github.com/quantrail/nse-scanner/internal/events"
	"github.com/quantrail/nse-scanner/internal/ingest"
	"github.com/quantrail/nse-scanner/internal/provider"
	"github.com/quantrail/nse-scanner/internal/scanner"
	"github.com/quantrail/nse-scanner/internal/scheduler"
	"github.com/quantrail/nse-scanner/internal/simulation"
	"github.com/quantrail/nse-scanner/internal/state"
)

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting NSE Scanner",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Env),
		zap.Bool("simulation", cfg.Scanner.Simulation.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Application error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("NSE Scanner stopped")
}

// run initializes and runs all application components.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. Connect to PostgreSQL and apply the schema
	logger.Info("Connecting to PostgreSQL...")
	pool, err := db.NewPool(ctx, &cfg.Scanner.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	// 2. Repositories and the trading calendar
	repos := repository.NewRepositories(pool)

	holidays := calendar.NewNSEHolidays(repos.EmergencyClosure)
	cal := calendar.New(holidays)

	zone, err := time.LoadLocation(cfg.Scanner.Exchange.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load exchange timezone: %w", err)
	}

	// 3. Time authority: simulated timeline or the system clock
	var clk clock.Clock
	var simClock *clock.SimulationClock
	if cfg.Scanner.Simulation.Enabled {
		baseDate, err := cfg.Scanner.Simulation.ParsedBaseDate()
		if err != nil {
			return fmt.Errorf("failed to parse simulation base date: %w", err)
		}
		trading, err := cal.IsTradingDay(ctx, baseDate)
		if err != nil {
			return fmt.Errorf("failed to classify simulation base date: %w", err)
		}
		if !trading {
			return fmt.Errorf("simulation base date %s is not a trading day",
				cfg.Scanner.Simulation.BaseDate)
		}
		if _, err := repos.SimulationState.GetOrCreate(ctx, baseDate); err != nil {
			return fmt.Errorf("failed to initialize simulation state: %w", err)
		}
		simClock = clock.NewSimulationClock(zone, repos.SimulationState, cal)
		clk = simClock
		logger.Info("Simulation clock active", zap.String("base_date", cfg.Scanner.Simulation.BaseDate))
	} else {
		clk = clock.NewSystemClock(zone)
	}

	// 4. Event publishers: RabbitMQ when configured, plus the websocket hub
	hub := httpapi.NewHub(logger)
	go hub.Run()
	defer hub.Shutdown()

	var broker events.Publisher
	if cfg.Scanner.RabbitMQ.Enabled && cfg.Scanner.RabbitMQ.URL != "" {
		logger.Info("Connecting to RabbitMQ...")
		rabbit, err := events.NewRabbitMQPublisher(&cfg.Scanner.RabbitMQ, logger)
		if err != nil {
			logger.Warn("Failed to connect to RabbitMQ, using no-op publisher", zap.Error(err))
			broker = events.NewNoOpPublisher()
		} else {
			broker = rabbit
			defer rabbit.Close()
		}
	} else {
		logger.Info("RabbitMQ not configured, using no-op publisher")
		broker = events.NewNoOpPublisher()
	}
	publisher := events.NewFanout(broker, hub.Publisher())

	// 5. Market data provider behind the breaker and retry policy
	var raw provider.MarketDataProvider
	if cfg.Scanner.Simulation.Enabled || cfg.Scanner.Provider.Source == "synthetic" {
		raw = provider.NewSyntheticProvider(clk)
		logger.Info("Using synthetic market data provider")
	} else {
		live := provider.NewYahooProvider(cfg.Scanner.Provider.BaseURL, cfg.Scanner.Provider.Timeout(), clk, logger)
		raw = provider.NewSimulationGuard(live, false)
		logger.Info("Using Yahoo market data provider", zap.String("base_url", cfg.Scanner.Provider.BaseURL))
	}
	breaker := provider.NewCircuitBreaker(clk,
		cfg.Scanner.Provider.Breaker.FailureThreshold,
		cfg.Scanner.Provider.Breaker.Cooldown(),
		logger,
	)
	fetcher := provider.NewRetryService(raw, breaker, cfg.Scanner.Provider.Retry, logger)

	// 6. Pipeline services
	stateSvc := state.NewService(repos.ExecutionState, clk, logger)
	ingestSvc := ingest.NewService(repos.Universe, repos.StockPrice, stateSvc, fetcher, publisher, logger)
	engine := scanner.NewEngine(
		[]scanner.Rule{scanner.NewBreakoutConfirmedRule(cfg.Scanner.Scan.Breakout)},
		repos.StockPrice,
		repos.Universe,
		repos.ScanResult,
		repos.ScannerRun,
		stateSvc,
		clk,
		publisher,
		cfg.Scanner.Scan,
		Version,
		logger,
	)

	// 7. Simulation orchestrator (simulation mode only)
	var simControl httpapi.SimulationControl
	if cfg.Scanner.Simulation.Enabled {
		if err := ingest.EnsureUniverse(ctx, repos.Universe, logger); err != nil {
			return fmt.Errorf("failed to seed universe: %w", err)
		}
		simControl = simulation.NewOrchestrator(
			repos.SimulationState,
			cal,
			simClock,
			ingestSvc,
			engine,
			publisher,
			cfg.Scanner.Simulation,
			logger,
		)
	}

	// 8. Daily scheduler (live mode only)
	var sched *scheduler.Scheduler
	if !cfg.Scanner.Simulation.Enabled {
		sched = scheduler.New(ingestSvc, engine, stateSvc, clk, cfg.Scanner.Scheduler, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		logger.Info("Scheduler disabled in simulation mode")
	}

	// 9. HTTP server (health + REST API + websocket + dashboard)
	handler := httpapi.NewHandler(repos, stateSvc, ingestSvc, engine, simControl, holidays, cal, clk, logger)
	httpAddr := fmt.Sprintf(":%d", cfg.Scanner.HTTPPort)
	httpServer := httpapi.NewServer(httpAddr, pool, handler, hub, Version, logger)

	go func() {
		logger.Info("HTTP server starting", zap.String("address", httpAddr))
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	logger.Info("NSE Scanner initialized and running", zap.String("http_address", httpAddr))

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info("Shutting down NSE Scanner...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	if sched != nil {
		sched.Stop()
	}

	return nil
}

// initLogger initializes the zap logger based on configuration.
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Logging.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapCfg.Build()
}
