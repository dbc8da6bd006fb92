package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
)

// GormReadStateRepository implements ReadStateRepository using GORM.
type GormReadStateRepository struct {
	db *gorm.DB
}

// NewGormReadStateRepository creates a new GORM-based read-state repository.
func NewGormReadStateRepository(db *gorm.DB) *GormReadStateRepository {
	return &GormReadStateRepository{db: db}
}

func (r *GormReadStateRepository) Upsert(ctx context.Context, userID, conversationID string, at time.Time) error {
	model := domain.ReadStateModel{
		UserID:         userID,
		ConversationID: conversationID,
		LastReadAt:     at.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(&model).Error
}

func (r *GormReadStateRepository) Get(ctx context.Context, userID string) (domain.ReadState, error) {
	var models []domain.ReadStateModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}

	state := make(domain.ReadState, len(models))
	for _, m := range models {
		state[m.ConversationID] = m.LastReadAt.UTC()
	}
	return state, nil
}
