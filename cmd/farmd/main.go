package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/elys-network/farmd/internal/config"
	"github.com/elys-network/farmd/internal/ledger"
	"github.com/elys-network/farmd/internal/logger"
	"github.com/elys-network/farmd/internal/registry"
	"github.com/elys-network/farmd/internal/state"
	"github.com/elys-network/farmd/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	SNAPSHOT_INTERVAL = 30 * time.Second
)

// main is the entry point for the farmd staking pool service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("farmd Staking Pool Service Starting...")

	// Initialize Database Connection (pool snapshots and event journal)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Ledger and Registry Wiring ---
	tokenLedger := ledger.NewMemoryLedger()

	reg, err := registry.New(registry.Config{
		Ledger:       tokenLedger,
		Sink:         state.NewJournal(),
		FeeCollector: config.FeeCollectorAddress,
		Recovery:     config.RecoveryAddress,
		DefaultFee:   config.DefaultFeeBps,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool registry")
	}
	log.Info().
		Str("feeCollector", config.FeeCollectorAddress).
		Str("recovery", config.RecoveryAddress).
		Uint64("defaultFeeBps", config.DefaultFeeBps).
		Msg("Pool registry created")

	// --- 3. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, reg, tokenLedger)
	go func() {
		log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting farmd API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Snapshot Loop ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runSnapshotLoop(ctx, reg)

	// Block until shutdown is requested.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutting down")
}

// runSnapshotLoop periodically persists every pool's snapshot and positions
// so the database mirrors the live ledger.
func runSnapshotLoop(ctx context.Context, reg *registry.Registry) {
	ticker := time.NewTicker(SNAPSHOT_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshotPools(reg)
		}
	}
}

func snapshotPools(reg *registry.Registry) {
	records := reg.Records()
	for _, rec := range records {
		if err := state.UpsertPoolSnapshot(rec); err != nil {
			log.Error().Err(err).Str("pool_id", rec.ID).Msg("Failed to persist pool snapshot")
			continue
		}
		p, err := reg.Get(rec.ID)
		if err != nil {
			continue
		}
		for _, pos := range p.Positions() {
			if err := state.UpsertUserPosition(pos); err != nil {
				log.Error().Err(err).
					Str("pool_id", pos.PoolID).
					Str("user", pos.Address).
					Msg("Failed to persist user position")
			}
		}
	}
	log.Debug().Int("pools", len(records)).Msg("Snapshot cycle complete")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
