package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/blog_auth/internal/models"
)

func (r *GormRepo) Put(ctx context.Context, ownerID uuid.UUID, token string) error {
	rec := models.RefreshToken{
		UserID:    ownerID,
		TokenHash: Sha256Hex(token),
	}
	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("put refresh token: %w", err)
	}
	return nil
}

func (r *GormRepo) FindByOwnerAndToken(ctx context.Context, ownerID uuid.UUID, token string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND token_hash = ?", ownerID, Sha256Hex(token)).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rec, nil
}

// Rotate replaces oldToken with newToken only while oldToken is still the
// stored value, so concurrent rotations of one token have a single winner.
func (r *GormRepo) Rotate(ctx context.Context, ownerID uuid.UUID, oldToken, newToken string) error {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash = ?", ownerID, Sha256Hex(oldToken)).
		Updates(map[string]any{
			"token_hash": Sha256Hex(newToken),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("rotate refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) DeleteByToken(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).
		Where("token_hash = ?", Sha256Hex(token)).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
