package unread

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

const defaultConcurrency = 8

// ReadStates supplies a participant's read-state.
type ReadStates interface {
	State(ctx context.Context, userID string) (domain.ReadState, error)
}

// Aggregator computes per-conversation unread counts from the message log
// on every call. Nothing is cached.
type Aggregator struct {
	messages    repository.MessageRepository
	groups      repository.GroupRepository
	reads       ReadStates
	concurrency int
}

func NewAggregator(messages repository.MessageRepository, groups repository.GroupRepository, reads ReadStates) *Aggregator {
	return &Aggregator{
		messages:    messages,
		groups:      groups,
		reads:       reads,
		concurrency: defaultConcurrency,
	}
}

// UnreadCounts returns unread counts for userID keyed by sender id for direct
// conversations and by group id for groups. Zero counts are omitted.
func (a *Aggregator) UnreadCounts(ctx context.Context, userID string) (domain.UnreadCounts, error) {
	state, err := a.reads.State(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts := make(domain.UnreadCounts)
	var mu sync.Mutex
	add := func(key string, n int64) {
		if n <= 0 {
			return
		}
		mu.Lock()
		counts[key] += int(n)
		mu.Unlock()
	}

	senders, err := a.messages.DirectSenders(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to load direct conversations", err)
	}
	groups, err := a.groups.FindByMember(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to load groups", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, senderID := range senders {
		since := state.LastRead(senderID)
		filter := repository.MessageFilter{
			Kind:         domain.MessageKindDirect,
			RecipientID:  userID,
			SenderID:     senderID,
			CreatedAfter: &since,
		}
		key := senderID
		g.Go(func() error {
			n, err := a.messages.Count(gctx, filter)
			if err != nil {
				return err
			}
			add(key, n)
			return nil
		})
	}

	for _, group := range groups {
		since := state.LastRead(group.ID)
		filter := repository.MessageFilter{
			Kind:            domain.MessageKindGroup,
			GroupID:         group.ID,
			ExcludeSenderID: userID,
			CreatedAfter:    &since,
		}
		key := group.ID
		g.Go(func() error {
			n, err := a.messages.Count(gctx, filter)
			if err != nil {
				return err
			}
			add(key, n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.NewPersistenceError("failed to count unread messages", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Int("direct", len(senders)).Int("groups", len(groups)).Int("unread_conversations", len(counts)).Msg("unread counts computed")
	return counts, nil
}
