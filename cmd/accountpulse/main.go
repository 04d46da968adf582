package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/api"
	"github.com/accountpulse/accountpulse/internal/billing"
	"github.com/accountpulse/accountpulse/internal/cache"
	"github.com/accountpulse/accountpulse/internal/config"
	"github.com/accountpulse/accountpulse/internal/email"
	"github.com/accountpulse/accountpulse/internal/health"
	"github.com/accountpulse/accountpulse/internal/insights"
	"github.com/accountpulse/accountpulse/internal/kafka"
	"github.com/accountpulse/accountpulse/internal/monitor"
	"github.com/accountpulse/accountpulse/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		configFile  = flag.String("config", "config/config.yaml", "Configuration file path")
		showVer     = flag.Bool("version", false, "Show version information")
		help        = flag.Bool("help", false, "Show help information")
		memoryStore = flag.Bool("memory-store", false, "Use the in-memory store instead of Postgres (dev only)")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *showVer {
		showVersion()
		return
	}

	log.Printf("Starting AccountPulse v%s (commit: %s, built: %s)", version, commit, date)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker := health.NewHealthChecker()

	// Persistence
	var st account.Store
	if *memoryStore {
		log.Printf("Using in-memory store; data will not survive a restart")
		st = store.NewMemoryStore()
	} else {
		if cfg.Database.DSN == "" {
			log.Fatalf("database.dsn is required (or set DATABASE_DSN, or pass -memory-store)")
		}
		pg, err := store.NewPostgresStore(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("Failed to initialize postgres store: %v", err)
		}
		defer pg.Close()
		checker.Register(&health.PingCheck{CheckName: "database", Target: pg})
		st = pg
	}

	// Score cache (optional)
	var scoreCache api.ScoreCache
	if cfg.Redis.Addr != "" {
		rc := cache.NewScoreCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL.Duration)
		defer rc.Close()
		checker.Register(&health.PingCheck{CheckName: "redis", Target: rc})
		scoreCache = rc
	}

	// Event publishing (optional)
	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		if err := kafka.EnsureTopics(cfg.Kafka.Brokers); err != nil {
			log.Printf("Failed to ensure kafka topics: %v", err)
		}
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatalf("Failed to initialize kafka producer: %v", err)
		}
		defer producer.Close()
	}

	// Narrative insights (optional)
	var narrator api.Narrator
	if cfg.OpenAI.APIKey != "" {
		narrator = insights.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}

	// Billing signal enrichment (optional)
	var enricher monitor.SignalEnricher
	if cfg.Stripe.APIKey != "" {
		enricher = billing.NewSignalService(cfg.Stripe.APIKey)
	}

	gateway := api.NewGateway(api.GatewayConfig{
		Host:           "0.0.0.0",
		Port:           cfg.API.Port,
		ReadTimeout:    cfg.API.ReadTimeout.Duration,
		WriteTimeout:   cfg.API.WriteTimeout.Duration,
		IdleTimeout:    120 * time.Second,
		EnableCORS:     true,
		AllowedOrigins: cfg.API.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}, st, scoreCache, producer, narrator, checker)

	if cfg.Monitor.Enabled {
		sweeper := monitor.NewService(st, enricher, email.NewService(), producer, cfg.Monitor.Interval.Duration)
		go sweeper.Run(ctx)
	}

	go func() {
		if err := gateway.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Gateway failed: %v", err)
		}
	}()

	waitForShutdown(cancel, gateway)
}

func showHelp() {
	fmt.Printf(`AccountPulse - Account health and expansion intelligence service

Usage:
  accountpulse [flags]

Flags:
  -config string
        Configuration file path (default "config/config.yaml")
  -memory-store
        Use the in-memory store instead of Postgres (dev only)
  -version
        Show version information
  -help
        Show this help message

Examples:
  accountpulse                                   # Start with default config
  accountpulse -config config/production.yaml    # Start with production config
  accountpulse -memory-store                     # Dev run without Postgres
`)
}

func showVersion() {
	fmt.Printf("AccountPulse version %s\n", version)
	fmt.Printf("Commit: %s\n", commit)
	fmt.Printf("Built: %s\n", date)
}

func loadConfig(path string) (*config.Config, error) {
	if os.Getenv("CONFIG_PATH") != "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func waitForShutdown(cancel context.CancelFunc, gateway *api.Gateway) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := gateway.Stop(shutdownCtx); err != nil {
		log.Printf("Error during gateway shutdown: %v", err)
	}

	cancel()
	log.Println("AccountPulse stopped")
}
