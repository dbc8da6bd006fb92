package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
)

// GormGroupRepository implements GroupRepository using GORM.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GORM-based group repository.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

func (r *GormGroupRepository) Create(ctx context.Context, group *domain.Group) error {
	group.ID = uuid.New().String()
	group.Version = 1

	model := domain.GroupToModel(group)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	group.CreatedAt = model.CreatedAt
	group.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *GormGroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	var model domain.GroupModel
	result := r.db.WithContext(ctx).Preload("Members").First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

func (r *GormGroupRepository) FindByMember(ctx context.Context, userID string) ([]*domain.Group, error) {
	db := r.db.WithContext(ctx)
	memberOf := db.Model(&domain.GroupMemberModel{}).Select("group_id").Where("user_id = ?", userID)

	var models []domain.GroupModel
	err := db.Preload("Members").
		Where("id IN (?)", memberOf).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Group, 0, len(models))
	for i := range models {
		out = append(out, models[i].ToDomain())
	}
	return out, nil
}

func (r *GormGroupRepository) UpdateMembers(ctx context.Context, group *domain.Group, expectedVersion int) error {
	var updated domain.GroupModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.GroupModel{}).
			Where("id = ? AND version = ?", group.ID, expectedVersion).
			Updates(map[string]interface{}{
				"version":    gorm.Expr("version + 1"),
				"updated_at": tx.NowFunc(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&domain.GroupModel{}).Where("id = ?", group.ID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrGroupNotFound
			}
			return ErrVersionConflict
		}

		if err := tx.Where("group_id = ?", group.ID).Delete(&domain.GroupMemberModel{}).Error; err != nil {
			return err
		}
		if len(group.MemberIDs) > 0 {
			if err := tx.Create(domain.MembersToModels(group.ID, group.MemberIDs)).Error; err != nil {
				return err
			}
		}
		return tx.First(&updated, "id = ?", group.ID).Error
	})
	if err != nil {
		return err
	}

	group.Version = updated.Version
	group.UpdatedAt = updated.UpdatedAt
	return nil
}

// Delete removes the group and its membership rows. Messages are not touched.
func (r *GormGroupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&domain.GroupMemberModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&domain.GroupModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
}
