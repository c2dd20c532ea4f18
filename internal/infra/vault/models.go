package vault

import "time"

type SecretModel struct {
	VaultID         string    `gorm:"column:vault_id;primaryKey"`
	Path            string    `gorm:"column:path;primaryKey"`
	EncryptedSecret []byte    `gorm:"column:encrypted_secret;not null"`
	CreatedTS       time.Time `gorm:"column:created_ts;not null"`
	OwnerID         string    `gorm:"column:owner_id;not null"`
	CacheAllowed    bool      `gorm:"column:cache_allowed;not null"`
	TTLSeconds      *int64    `gorm:"column:ttl_seconds"`
}

func (SecretModel) TableName() string {
	return "vault_secrets"
}
