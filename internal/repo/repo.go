package repo

import (
	"crypto/sha256"
	"encoding/hex"

	"gorm.io/gorm"
)

// GormRepo is the relational user and refresh-token store.
type GormRepo struct {
	DB *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
