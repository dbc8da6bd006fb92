package registry

import (
	"context"
	"errors"
)

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_registry.go -package=mocks

var ErrNotRegistered = errors.New("identity not registered")

// Session is one live connection that events can be pushed to.
type Session interface {
	ID() string
	UserID() string
	Send(data []byte) error
	Close()
}

// Registry maps an identity to its single live session. All methods are safe
// for concurrent use.
type Registry interface {
	// Register maps userID to s and returns the session it displaced, if any.
	// The displaced session is not notified.
	Register(userID string, s Session) Session
	// Unregister drops whatever session userID maps to.
	Unregister(userID string)
	// UnregisterSession drops the mapping only while it still points at s,
	// and reports whether it did.
	UnregisterSession(userID string, s Session) bool
	Lookup(userID string) (Session, bool)
	// Sessions returns a snapshot of every live session.
	Sessions() []Session
	Len() int
}

// Directory records which service instance holds each identity's session,
// so presence can be answered across instances.
type Directory interface {
	Register(ctx context.Context, userID string) error
	Deregister(ctx context.Context, userID string) error
	Lookup(ctx context.Context, userID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
