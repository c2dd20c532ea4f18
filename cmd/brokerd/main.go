package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"credbroker/internal/config"
	"credbroker/internal/domain"
	"credbroker/internal/infra/adapters"
	"credbroker/internal/infra/crypto"
	httpinfra "credbroker/internal/infra/http"
	"credbroker/internal/infra/ledger"
	"credbroker/internal/infra/nonce"
	"credbroker/internal/infra/vault"
	"credbroker/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	led, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		log.Fatalf("failed to open ledger: %v", err)
	}
	defer led.Close()

	if cfg.VaultKey == "" {
		log.Fatalf("BROKER_VAULT_KEY is required")
	}
	cipher, err := vault.NewCipher(cfg.VaultKey)
	if err != nil {
		log.Fatalf("failed to init vault cipher: %v", err)
	}
	store, err := vault.Open(cfg.VaultDBPath, cipher, logger)
	if err != nil {
		log.Fatalf("failed to open vault store: %v", err)
	}

	var nonces nonce.Registry
	if cfg.RedisAddr != "" {
		nonces, err = nonce.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err != nil {
			log.Fatalf("failed to init redis nonce registry: %v", err)
		}
		logger.Info("nonce registry", "backend", "redis", "addr", cfg.RedisAddr)
	} else {
		nonces = nonce.NewMemoryRegistry(nonce.MemoryConfig{})
		logger.Info("nonce registry", "backend", "memory")
	}

	issuerKey, err := loadIssuerKey(cfg)
	if err != nil {
		log.Fatalf("failed to load issuer key: %v", err)
	}
	ownerKey, err := crypto.ParsePublicKeyHex(cfg.OwnerPublicKeyHex)
	if err != nil {
		log.Fatalf("failed to load owner public key: %v", err)
	}

	issuer := usecase.NewTokenIssuer(issuerKey, ownerKey, nonces,
		time.Duration(cfg.TokenTTLSeconds)*time.Second, time.Now)

	ctx := context.Background()
	registry := adapters.NewRegistry()
	defer registry.Close()
	if cfg.FilesAdapterVaultID != "" {
		files := adapters.NewFilesAdapter(logger)
		if err := files.Connect(ctx, cfg.FilesAdapterRoot, domain.AdapterCredentials{}); err != nil {
			log.Fatalf("failed to connect files adapter: %v", err)
		}
		registry.Register(cfg.FilesAdapterVaultID, files)
		logger.Info("registered files adapter", "vault_id", cfg.FilesAdapterVaultID, "root", cfg.FilesAdapterRoot)
	}
	if cfg.KVAdapterVaultID != "" {
		kv := adapters.NewHTTPKVAdapter(10 * time.Second)
		if err := kv.Connect(ctx, cfg.KVAdapterAddr, domain.AdapterCredentials{Token: cfg.KVAdapterToken}); err != nil {
			log.Fatalf("failed to connect kv adapter: %v", err)
		}
		registry.Register(cfg.KVAdapterVaultID, kv)
		logger.Info("registered kv adapter", "vault_id", cfg.KVAdapterVaultID, "addr", cfg.KVAdapterAddr)
	}

	go runSweeps(ctx, nonces, store, logger)

	broker := usecase.NewBroker(issuer, store, led, registry, time.Now, logger)
	tracker := usecase.NewRequestTracker(led, time.Duration(cfg.RequestSLASeconds)*time.Second, time.Now)

	srv := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Broker:   broker,
		Issuer:   issuer,
		Requests: tracker,
		Ledger:   led,
		Logger:   logger,
	})
	logger.Info("brokerd listening", "addr", cfg.HTTPAddr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// runSweeps periodically drops expired nonces and TTL-lapsed secrets.
// Both sweeps are bounded housekeeping; correctness never depends on
// them.
func runSweeps(ctx context.Context, nonces nonce.Registry, store *vault.Store, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sweeper, ok := nonces.(interface{ CleanupExpired() int }); ok {
				if removed := sweeper.CleanupExpired(); removed > 0 {
					logger.Debug("nonce sweep", "removed", removed)
				}
			}
			if _, err := store.CleanupExpired(ctx); err != nil {
				logger.Warn("vault ttl sweep failed", "error", err)
			}
		}
	}
}

func loadIssuerKey(cfg config.Config) (ed25519.PrivateKey, error) {
	switch {
	case cfg.IssuerKeySeedHex != "":
		return crypto.ParsePrivateKeyHex(cfg.IssuerKeySeedHex)
	case cfg.IssuerKeyBase64 != "":
		return crypto.ParsePrivateKeyBase64(cfg.IssuerKeyBase64)
	}
	return nil, errors.New("BROKER_ISSUER_KEY_SEED_HEX or BROKER_ISSUER_KEY_BASE64 is required")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
