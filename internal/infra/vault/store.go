// Package vault is the local encrypted secret store: an embedded
// sqlite table keyed by (vault_id, path), values sealed by Cipher
// before they touch the database.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"credbroker/internal/domain"
)

type Store struct {
	db     *gorm.DB
	cipher *Cipher
	clock  func() time.Time
	logger *slog.Logger
}

// Open opens the sqlite-backed store at path and migrates the schema.
func Open(path string, cipher *Cipher, log *slog.Logger) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening vault db: %w", err)
	}
	return NewStore(gdb, cipher, log)
}

func NewStore(gdb *gorm.DB, cipher *Cipher, log *slog.Logger) (*Store, error) {
	if cipher == nil {
		return nil, fmt.Errorf("vault cipher is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := gdb.AutoMigrate(&SecretModel{}); err != nil {
		return nil, fmt.Errorf("migrating vault schema: %w", err)
	}
	return &Store{db: gdb, cipher: cipher, clock: time.Now, logger: log}, nil
}

// StoreSecret encrypts and upserts a secret. It reports failure as
// false rather than an error so callers can decide whether to retry;
// the cause is logged here.
func (s *Store) StoreSecret(ctx context.Context, vaultID, path, secret, ownerID string, cacheAllowed bool, ttlSeconds *int64) bool {
	encrypted, err := s.cipher.Encrypt([]byte(secret))
	if err != nil {
		s.logger.Error("vault encryption failed", "vault_id", vaultID, "path", path, "error", err)
		return false
	}
	model := SecretModel{
		VaultID:         vaultID,
		Path:            path,
		EncryptedSecret: encrypted,
		CreatedTS:       s.clock().UTC(),
		OwnerID:         ownerID,
		CacheAllowed:    cacheAllowed,
		TTLSeconds:      ttlSeconds,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "vault_id"}, {Name: "path"}},
		UpdateAll: true,
	}).Create(&model).Error
	if err != nil {
		s.logger.Error("vault write failed", "vault_id", vaultID, "path", path, "error", err)
		return false
	}
	return true
}

// GetSecret decrypts the stored value. A missing row is (_, false, nil)
// — absence is not exceptional. A decryption failure is an error, never
// an empty secret.
func (s *Store) GetSecret(ctx context.Context, vaultID, path string) (string, bool, error) {
	var model SecretModel
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND path = ?", vaultID, path).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("vault read %s/%s: %w", vaultID, path, err)
	}
	plaintext, err := s.cipher.Decrypt(model.EncryptedSecret)
	if err != nil {
		s.logger.Error("vault decryption failed", "vault_id", vaultID, "path", path, "error", err)
		return "", false, fmt.Errorf("vault decrypt %s/%s: %w", vaultID, path, err)
	}
	return string(plaintext), true, nil
}

// ListSecrets returns the paths in a vault in lexicographic order.
func (s *Store) ListSecrets(ctx context.Context, vaultID string) ([]string, error) {
	var paths []string
	err := s.db.WithContext(ctx).
		Model(&SecretModel{}).
		Where("vault_id = ?", vaultID).
		Order("path ASC").
		Pluck("path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("vault list %s: %w", vaultID, err)
	}
	return paths, nil
}

// DeleteSecret hard-deletes a secret. True iff a row was removed.
func (s *Store) DeleteSecret(ctx context.Context, vaultID, path string) bool {
	result := s.db.WithContext(ctx).
		Where("vault_id = ? AND path = ?", vaultID, path).
		Delete(&SecretModel{})
	if result.Error != nil {
		s.logger.Error("vault delete failed", "vault_id", vaultID, "path", path, "error", result.Error)
		return false
	}
	return result.RowsAffected > 0
}

// CleanupExpired removes rows whose TTL has lapsed. Each row is
// deleted by key in its own statement so the sweep never holds a lock
// longer than a single deletion.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	var models []SecretModel
	err := s.db.WithContext(ctx).
		Select("vault_id", "path", "created_ts", "ttl_seconds").
		Where("ttl_seconds IS NOT NULL").
		Find(&models).Error
	if err != nil {
		return 0, fmt.Errorf("vault ttl scan: %w", err)
	}

	now := s.clock().UTC()
	removed := 0
	for _, model := range models {
		if model.TTLSeconds == nil {
			continue
		}
		expiry := model.CreatedTS.Add(time.Duration(*model.TTLSeconds) * time.Second)
		if now.Before(expiry) {
			continue
		}
		if s.DeleteSecret(ctx, model.VaultID, model.Path) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("vault ttl sweep removed expired secrets", "count", removed)
	}
	return removed, nil
}

// Describe returns the metadata for a stored secret without decrypting
// it.
func (s *Store) Describe(ctx context.Context, vaultID, path string) (domain.VaultSecret, bool, error) {
	var model SecretModel
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND path = ?", vaultID, path).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.VaultSecret{}, false, nil
	}
	if err != nil {
		return domain.VaultSecret{}, false, fmt.Errorf("vault describe %s/%s: %w", vaultID, path, err)
	}
	return domain.VaultSecret{
		VaultID:      model.VaultID,
		Path:         model.Path,
		OwnerID:      model.OwnerID,
		CacheAllowed: model.CacheAllowed,
		TTLSeconds:   model.TTLSeconds,
		CreatedTS:    model.CreatedTS,
	}, true, nil
}
