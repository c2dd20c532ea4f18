package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	LedgerPath  string
	VaultDBPath string
	VaultKey    string

	OwnerPublicKeyHex string
	IssuerKeySeedHex  string
	IssuerKeyBase64   string
	TokenTTLSeconds   int
	RequestSLASeconds int
	AdminAPIKey       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	FilesAdapterVaultID string
	FilesAdapterRoot    string
	KVAdapterVaultID    string
	KVAdapterAddr       string
	KVAdapterToken      string
}

func FromEnv() Config {
	return Config{
		HTTPAddr: envDefault("BROKER_HTTP_ADDR", ":8080"),
		LogLevel: envDefault("LOG_LEVEL", "info"),

		LedgerPath:  envDefault("BROKER_LEDGER_PATH", "audit.ledger"),
		VaultDBPath: envDefault("BROKER_VAULT_DB", "vault.db"),
		VaultKey:    os.Getenv("BROKER_VAULT_KEY"),

		OwnerPublicKeyHex: os.Getenv("BROKER_OWNER_PUBKEY_HEX"),
		IssuerKeySeedHex:  os.Getenv("BROKER_ISSUER_KEY_SEED_HEX"),
		IssuerKeyBase64:   os.Getenv("BROKER_ISSUER_KEY_BASE64"),
		TokenTTLSeconds:   envIntDefault("BROKER_TOKEN_TTL_SECONDS", 120),
		RequestSLASeconds: envIntDefault("BROKER_REQUEST_SLA_SECONDS", 120),
		AdminAPIKey:       os.Getenv("BROKER_ADMIN_API_KEY"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntDefault("REDIS_DB", 0),

		FilesAdapterVaultID: os.Getenv("BROKER_FILES_ADAPTER_VAULT_ID"),
		FilesAdapterRoot:    os.Getenv("BROKER_FILES_ADAPTER_ROOT"),
		KVAdapterVaultID:    os.Getenv("BROKER_KV_ADAPTER_VAULT_ID"),
		KVAdapterAddr:       os.Getenv("BROKER_KV_ADAPTER_ADDR"),
		KVAdapterToken:      os.Getenv("BROKER_KV_ADAPTER_TOKEN"),
	}
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
