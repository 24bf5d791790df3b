package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"streamvault/config"
	"streamvault/core"
	"streamvault/core/genesis"
	"streamvault/core/state"
	"streamvault/observability/logging"
	"streamvault/rpc"
	"streamvault/storage"
)

const (
	genesisPathEnv = "STREAMVAULT_GENESIS"
	rpcTokenEnv    = "STREAMVAULT_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides STREAMVAULT_GENESIS and config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("STREAMVAULT_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("streamvaultd", env, logging.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxBackups: cfg.LogBackups,
		MaxAgeDays: cfg.LogMaxAge,
	})

	db, err := openDatabase(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	spec, err := loadGenesis(*genesisFlag, cfg.GenesisFile)
	if err != nil {
		logger.Error("Failed to load genesis spec", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(state.NewManager(db), spec)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node, rpc.RateLimit{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateBurst,
	})

	logger.Info("Starting streamvault daemon",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc", cfg.RPCAddress),
		slog.String("backend", cfg.Backend),
		slog.Uint64("height", node.Height()),
		logging.MaskField("rpcToken", os.Getenv(rpcTokenEnv)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx, cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func loadGenesis(flagPath, cfgPath string) (*genesis.Spec, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(genesisPathEnv))
	}
	if path == "" {
		path = strings.TrimSpace(cfgPath)
	}
	if path == "" {
		return nil, nil
	}
	return genesis.LoadSpec(path)
}
