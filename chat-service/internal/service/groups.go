package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
)

func loadGroup(ctx context.Context, groups repository.GroupRepository, groupID string) (*domain.Group, error) {
	group, err := groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, domain.NewNotFoundError("group not found")
		}
		return nil, domain.NewPersistenceError("failed to load group", err)
	}
	return group, nil
}

// memberGroup loads the group and rejects callers outside its membership.
func memberGroup(ctx context.Context, groups repository.GroupRepository, userID, groupID string) (*domain.Group, error) {
	group, err := loadGroup(ctx, groups, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, domain.NewForbiddenError("you are not a member of this group")
	}
	return group, nil
}
