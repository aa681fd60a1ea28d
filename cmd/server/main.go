package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jordan/mailcache/internal/cache"
	"github.com/jordan/mailcache/internal/config"
	"github.com/jordan/mailcache/internal/imap"
	"github.com/jordan/mailcache/internal/secrets"
	syncengine "github.com/jordan/mailcache/internal/sync"
	"github.com/jordan/mailcache/pkg/types"
)

var (
	version     = "dev"
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("mailcache version %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration (.env first, then the environment)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.WithError(err).Warn("Failed to load .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.Info("Starting mailcache")

	// Initialize the credential store
	storage := secrets.NewKeyringStorage(cfg.KeyringService, cfg.KeyringFileDir)
	secretStore := secrets.NewStore(storage, logger)

	// Initialize the cache
	mailCache, err := cache.NewCache(cfg.CachePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize cache")
	}
	defer mailCache.Close()

	store := cache.NewStore(mailCache, secretStore, logger)

	// Re-encrypt any secrets stored as plaintext while secure storage
	// was unavailable.
	if _, err := store.ReencryptSecrets(); err != nil {
		logger.WithError(err).Warn("Secret re-encryption pass failed")
	}

	// Seed configured accounts into the cache
	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		err := store.AddAccount(&types.Account{
			ID:       acc.ID,
			Name:     acc.Name,
			Email:    acc.Email,
			Provider: acc.Provider,
			Color:    acc.Color,
			IMAPHost: acc.IMAPHost,
			IMAPPort: acc.IMAPPort,
			Username: acc.Username,
			Password: acc.Password,
		})
		if err != nil && !errors.Is(err, cache.ErrDuplicateKey) {
			logger.WithError(err).WithField("account", acc.ID).Warn("Failed to seed account")
		}
	}

	// Initialize the sync engine
	engine := syncengine.New(store, imap.NewDialer(logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go runSyncLoop(ctx, engine, cfg.SyncInterval, logger)

	sig := <-sigChan
	logger.WithField("signal", sig).Info("Received shutdown signal")
	cancel()

	logger.Info("Shutting down mailcache")
}

// runSyncLoop syncs all accounts immediately and then on every tick
// until the context is cancelled.
func runSyncLoop(ctx context.Context, engine *syncengine.Engine, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := engine.SyncAll(ctx); err != nil {
		logger.WithError(err).Error("Initial sync completed with failures")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.SyncAll(ctx); err != nil {
				logger.WithError(err).Error("Sync completed with failures")
			}
		}
	}
}
