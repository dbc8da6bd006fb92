package unread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/mocks"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/readstate"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
)

func TestAggregator_UnreadCounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	messages := mocks.NewMockMessageRepository(ctrl)
	groups := mocks.NewMockGroupRepository(ctrl)
	reads := mocks.NewMockReadStateRepository(ctrl)
	agg := NewAggregator(messages, groups, readstate.NewTracker(reads))

	readA := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Given
	reads.EXPECT().Get(gomock.Any(), "me").Return(domain.ReadState{"a": readA}, nil)
	messages.EXPECT().DirectSenders(gomock.Any(), "me").Return([]string{"a", "b"}, nil)
	groups.EXPECT().FindByMember(gomock.Any(), "me").Return([]*domain.Group{{ID: "g1"}, {ID: "g2"}}, nil)

	messages.EXPECT().Count(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, f repository.MessageFilter) (int64, error) {
			switch {
			case f.SenderID == "a":
				req.Equal(domain.MessageKindDirect, f.Kind)
				req.Equal("me", f.RecipientID)
				req.Equal(readA, *f.CreatedAfter)
				return 2, nil
			case f.SenderID == "b":
				req.Equal(domain.NeverRead, *f.CreatedAfter)
				return 0, nil
			case f.GroupID == "g1":
				req.Equal(domain.MessageKindGroup, f.Kind)
				req.Equal("me", f.ExcludeSenderID)
				return 5, nil
			default:
				return 0, nil
			}
		}).Times(4)

	// When
	counts, err := agg.UnreadCounts(context.Background(), "me")

	// Then
	req.NoError(err)
	req.Equal(domain.UnreadCounts{"a": 2, "g1": 5}, counts)
}

func TestAggregator_NoMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messages := mocks.NewMockMessageRepository(ctrl)
	groups := mocks.NewMockGroupRepository(ctrl)
	reads := mocks.NewMockReadStateRepository(ctrl)
	agg := NewAggregator(messages, groups, readstate.NewTracker(reads))

	reads.EXPECT().Get(gomock.Any(), "me").Return(domain.ReadState{}, nil)
	messages.EXPECT().DirectSenders(gomock.Any(), "me").Return(nil, nil)
	groups.EXPECT().FindByMember(gomock.Any(), "me").Return(nil, nil)

	counts, err := agg.UnreadCounts(context.Background(), "me")

	require.NoError(t, err)
	require.Empty(t, counts)
}

func TestAggregator_CountFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messages := mocks.NewMockMessageRepository(ctrl)
	groups := mocks.NewMockGroupRepository(ctrl)
	reads := mocks.NewMockReadStateRepository(ctrl)
	agg := NewAggregator(messages, groups, readstate.NewTracker(reads))

	reads.EXPECT().Get(gomock.Any(), "me").Return(domain.ReadState{}, nil)
	messages.EXPECT().DirectSenders(gomock.Any(), "me").Return([]string{"a"}, nil)
	groups.EXPECT().FindByMember(gomock.Any(), "me").Return(nil, nil)
	messages.EXPECT().Count(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("timeout"))

	_, err := agg.UnreadCounts(context.Background(), "me")

	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestAggregator_GroupLookupFailureCountsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	messages := mocks.NewMockMessageRepository(ctrl)
	groups := mocks.NewMockGroupRepository(ctrl)
	reads := mocks.NewMockReadStateRepository(ctrl)
	agg := NewAggregator(messages, groups, readstate.NewTracker(reads))

	// Given: direct senders exist but the group lookup fails
	reads.EXPECT().Get(gomock.Any(), "me").Return(domain.ReadState{}, nil)
	messages.EXPECT().DirectSenders(gomock.Any(), "me").Return([]string{"a", "b"}, nil)
	groups.EXPECT().FindByMember(gomock.Any(), "me").Return(nil, errors.New("timeout"))

	// When
	_, err := agg.UnreadCounts(context.Background(), "me")

	// Then: no Count expectation exists, so any started count would fail
	require.ErrorIs(t, err, domain.ErrPersistence)
}
