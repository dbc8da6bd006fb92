package readstate

import (
	"context"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Tracker records how far each participant has read each conversation.
type Tracker struct {
	repo repository.ReadStateRepository
	now  func() time.Time
}

func NewTracker(repo repository.ReadStateRepository) *Tracker {
	return &Tracker{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// MarkRead sets userID's last-read instant for conversationID to now and
// returns it. The conversation is not checked for existence.
func (t *Tracker) MarkRead(ctx context.Context, userID, conversationID string) (time.Time, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return time.Time{}, domain.NewValidationError("conversation id is required")
	}

	at := t.now()
	if err := t.repo.Upsert(ctx, userID, conversationID, at); err != nil {
		return time.Time{}, domain.NewPersistenceError("failed to mark conversation read", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldConversationID, conversationID).Time("last_read_at", at).Msg("conversation marked read")
	return at, nil
}

// State returns userID's full read-state. Missing conversations read as
// domain.NeverRead.
func (t *Tracker) State(ctx context.Context, userID string) (domain.ReadState, error) {
	state, err := t.repo.Get(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to load read state", err)
	}
	return state, nil
}
