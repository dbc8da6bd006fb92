package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
)

func (f *repoFixture) userService() service.UserService {
	return service.NewUserService(f.users, f.agg)
}

func TestUserService_GetUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		req := require.New(t)
		f := newRepoFixture(t)
		f.users.EXPECT().GetByID(gomock.Any(), "a").Return(&domain.User{ID: "a", Username: "alice", PasswordHash: "secret"}, nil)

		resp, err := f.userService().GetUser(context.Background(), "a")

		req.NoError(err)
		req.Equal("alice", resp.Username)
	})

	t.Run("missing", func(t *testing.T) {
		f := newRepoFixture(t)
		f.users.EXPECT().GetByID(gomock.Any(), "x").Return(nil, repository.ErrUserNotFound)

		_, err := f.userService().GetUser(context.Background(), "x")

		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUserService_ListUsers_WithUnread(t *testing.T) {
	req := require.New(t)
	f := newRepoFixture(t)

	// Given
	f.users.EXPECT().List(gomock.Any(), "me").Return([]*domain.User{{ID: "a"}, {ID: "b"}}, nil)
	f.reads.EXPECT().Get(gomock.Any(), "me").Return(domain.ReadState{}, nil)
	f.messages.EXPECT().DirectSenders(gomock.Any(), "me").Return([]string{"b"}, nil)
	f.groups.EXPECT().FindByMember(gomock.Any(), "me").Return(nil, nil)
	f.messages.EXPECT().Count(gomock.Any(), gomock.Any()).Return(int64(3), nil)

	// When
	users, err := f.userService().ListUsers(context.Background(), "me")

	// Then
	req.NoError(err)
	req.Len(users, 2)
	req.Equal(0, *users[0].UnreadCount)
	req.Equal(3, *users[1].UnreadCount)
}

func TestUserService_UpdateUser(t *testing.T) {
	name := "Alice A."
	username := " NewAlice "

	t.Run("other user", func(t *testing.T) {
		f := newRepoFixture(t)

		_, err := f.userService().UpdateUser(context.Background(), "a", "b", &domain.UpdateUserRequest{Name: &name})

		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("own profile", func(t *testing.T) {
		req := require.New(t)
		f := newRepoFixture(t)
		f.users.EXPECT().Update(gomock.Any(), "a", gomock.Any()).DoAndReturn(func(_ context.Context, _ string, fields repository.UserUpdate) (*domain.User, error) {
			req.Equal("newalice", *fields.Username)
			req.Equal(name, *fields.Name)
			return &domain.User{ID: "a", Name: *fields.Name, Username: *fields.Username}, nil
		})

		resp, err := f.userService().UpdateUser(context.Background(), "a", "a", &domain.UpdateUserRequest{Name: &name, Username: &username})

		req.NoError(err)
		req.Equal("newalice", resp.Username)
	})

	t.Run("username taken", func(t *testing.T) {
		f := newRepoFixture(t)
		f.users.EXPECT().Update(gomock.Any(), "a", gomock.Any()).Return(nil, repository.ErrUsernameExists)

		_, err := f.userService().UpdateUser(context.Background(), "a", "a", &domain.UpdateUserRequest{Username: &username})

		require.ErrorIs(t, err, domain.ErrConflict)
	})
}
