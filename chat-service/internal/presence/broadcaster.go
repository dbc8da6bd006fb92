package presence

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

// Broadcaster ties session attach and detach to the Connection Registry,
// the persisted online flag, and a status broadcast. Everything after the
// registry update is best-effort.
type Broadcaster struct {
	registry   registry.Registry
	users      repository.UserRepository
	notifier   Notifier
	publisher  pubsub.Publisher
	directory  registry.Directory
	instanceID string
	now        func() time.Time
}

type Option func(*Broadcaster)

// WithPublisher publishes presence.changed events tagged with instanceID.
func WithPublisher(p pubsub.Publisher, instanceID string) Option {
	return func(b *Broadcaster) {
		b.publisher = p
		b.instanceID = instanceID
	}
}

// WithDirectory records attached identities in a cross-instance directory.
func WithDirectory(d registry.Directory) Option {
	return func(b *Broadcaster) { b.directory = d }
}

func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

func NewBroadcaster(reg registry.Registry, users repository.UserRepository, notifier Notifier, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		registry: reg,
		users:    users,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach registers s for its identity and announces the identity online.
// A session it displaces stays open but is no longer reachable.
func (b *Broadcaster) Attach(ctx context.Context, s registry.Session) {
	l := log.Ctx(ctx)
	userID := s.UserID()

	if displaced := b.registry.Register(userID, s); displaced != nil {
		l.Info().Str("displaced_session_id", displaced.ID()).Msg("session displaced by newer connection")
	}

	b.announce(ctx, userID, true)
}

// Detach unregisters s and announces the identity offline. A session that
// was already displaced is dropped silently, leaving the newer one online.
func (b *Broadcaster) Detach(ctx context.Context, s registry.Session) {
	l := log.Ctx(ctx)
	userID := s.UserID()

	if !b.registry.UnregisterSession(userID, s) {
		l.Debug().Msg("detached session was not the registered one")
		return
	}

	b.announce(ctx, userID, false)
}

func (b *Broadcaster) announce(ctx context.Context, userID string, online bool) {
	l := log.Ctx(ctx)
	at := b.now()

	if err := b.users.SetPresence(ctx, userID, online, at); err != nil {
		l.Error().Err(err).Bool("online", online).Msg("failed to persist presence")
	}

	if b.directory != nil {
		var err error
		if online {
			err = b.directory.Register(ctx, userID)
		} else {
			err = b.directory.Deregister(ctx, userID)
		}
		if err != nil {
			l.Warn().Err(err).Msg("failed to update session directory")
		}
	}

	if err := b.notifier.Broadcast(domain.NewUserStatusChangedEvent(userID, online, at)); err != nil {
		l.Error().Err(err).Msg("failed to broadcast presence")
	}

	if b.publisher != nil {
		b.publish(ctx, userID, online, at)
	}
}

func (b *Broadcaster) publish(ctx context.Context, userID string, online bool, at time.Time) {
	l := log.Ctx(ctx)
	event, err := pubsub.NewEvent(pubsub.EventPresenceChanged, userID, b.instanceID, pubsub.PresenceChangedPayload{
		UserID:   userID,
		Online:   online,
		LastSeen: at,
	})
	if err != nil {
		l.Error().Err(err).Msg("failed to build presence event")
		return
	}
	if err := b.publisher.Publish(ctx, pubsub.ChannelPresence, event); err != nil {
		l.Warn().Err(err).Msg("failed to publish presence event")
	}
}
