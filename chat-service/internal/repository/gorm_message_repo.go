package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	msg.ID = uuid.New().String()

	model := domain.MessageToModel(msg)
	model.CreatedAt = r.db.NowFunc()
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	msg.CreatedAt = model.CreatedAt
	return nil
}

func (r *GormMessageRepository) Find(ctx context.Context, filter MessageFilter, order SortOrder, page Pagination) ([]*domain.Message, error) {
	q := applyFilter(r.db.WithContext(ctx).Model(&domain.MessageModel{}), filter)
	if order == SortDescending {
		q = q.Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("created_at ASC").Order("id ASC")
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit).Offset(page.Offset())
	}

	var models []domain.MessageModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Message, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToDomain())
	}
	return out, nil
}

func (r *GormMessageRepository) Count(ctx context.Context, filter MessageFilter) (int64, error) {
	var n int64
	err := applyFilter(r.db.WithContext(ctx).Model(&domain.MessageModel{}), filter).Count(&n).Error
	return n, err
}

func (r *GormMessageRepository) Delete(ctx context.Context, filter MessageFilter) (int64, error) {
	if filter.empty() {
		return 0, ErrEmptyFilter
	}
	result := applyFilter(r.db.WithContext(ctx), filter).Delete(&domain.MessageModel{})
	return result.RowsAffected, result.Error
}

func (r *GormMessageRepository) DirectSenders(ctx context.Context, recipientID string) ([]string, error) {
	var senders []string
	err := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("recipient_id = ? AND kind = ?", recipientID, string(domain.MessageKindDirect)).
		Distinct().
		Pluck("sender_id", &senders).Error
	return senders, err
}

func applyFilter(q *gorm.DB, f MessageFilter) *gorm.DB {
	if f.Kind != "" {
		q = q.Where("kind = ?", string(f.Kind))
	}
	if f.SenderID != "" {
		q = q.Where("sender_id = ?", f.SenderID)
	}
	if f.ExcludeSenderID != "" {
		q = q.Where("sender_id <> ?", f.ExcludeSenderID)
	}
	if f.RecipientID != "" {
		q = q.Where("recipient_id = ?", f.RecipientID)
	}
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.ConversationID != "" {
		q = q.Where("conversation_id = ?", f.ConversationID)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at > ?", f.CreatedAfter.UTC())
	}
	return q
}
