package repository

import (
	"context"

	"ai-chat-api/internal/models"
	"ai-chat-api/internal/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatRepository interface {
	CommitExchange(ctx context.Context, userID uuid.UUID, record *models.ChatRecord, limit int) (*models.User, error)
	ListByUserAndProvider(ctx context.Context, userID uuid.UUID, provider models.Provider) ([]models.ChatRecord, error)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CommitExchange stores record and charges one unit of quota in a single
// transaction. The increment only applies while usage_count < limit, so two
// concurrent commits can never push a user past the limit. When no row
// qualifies nothing is written and errors.ErrQuotaExceeded is returned.
// Unlimited users are never charged. The returned user reflects the committed
// counter.
func (r *chatRepository) CommitExchange(ctx context.Context, userID uuid.UUID, record *models.ChatRecord, limit int) (*models.User, error) {
	var updated models.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrNotFound
			}
			return err
		}

		if !user.Unlimited {
			result := tx.Model(&models.User{}).
				Where("id = ? AND usage_count < ?", userID, limit).
				UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errors.ErrQuotaExceeded
			}
		}

		record.UserID = userID
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		return tx.First(&updated, "id = ?", userID).Error
	})

	if err != nil {
		if errors.Is(err, errors.ErrQuotaExceeded) || errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		return nil, errors.WrapCode(err, "failed to commit chat exchange", errors.CodeDatabase)
	}

	return &updated, nil
}

// ListByUserAndProvider returns a user's exchanges with one provider, oldest
// first.
func (r *chatRepository) ListByUserAndProvider(ctx context.Context, userID uuid.UUID, provider models.Provider) ([]models.ChatRecord, error) {
	var records []models.ChatRecord
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Order("created_at ASC, id ASC").
		Find(&records)

	if result.Error != nil {
		return nil, errors.WrapCode(result.Error, "failed to list chat history", errors.CodeDatabase)
	}

	return records, nil
}
