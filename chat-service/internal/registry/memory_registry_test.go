package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	id     string
	userID string
}

func (s *fakeSession) ID() string             { return s.id }
func (s *fakeSession) UserID() string         { return s.userID }
func (s *fakeSession) Send(data []byte) error { return nil }
func (s *fakeSession) Close()                 {}

func TestMemoryRegistry_LookupUnknown(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()

	s, ok := r.Lookup("nobody")

	req.False(ok)
	req.Nil(s)
	req.Zero(r.Len())
}

func TestMemoryRegistry_LastConnectWins(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()
	first := &fakeSession{id: "s1", userID: "u1"}
	second := &fakeSession{id: "s2", userID: "u1"}

	// Given
	req.Nil(r.Register("u1", first))

	// When
	displaced := r.Register("u1", second)

	// Then
	req.Equal(first, displaced)
	got, ok := r.Lookup("u1")
	req.True(ok)
	req.Equal("s2", got.ID())
	req.Equal(1, r.Len())
}

func TestMemoryRegistry_ReRegisterSameSession(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()
	s := &fakeSession{id: "s1", userID: "u1"}

	r.Register("u1", s)

	req.Nil(r.Register("u1", s))
}

func TestMemoryRegistry_UnregisterSession(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()
	old := &fakeSession{id: "old", userID: "u1"}
	cur := &fakeSession{id: "new", userID: "u1"}

	// Given a displaced session
	r.Register("u1", old)
	r.Register("u1", cur)

	// When the displaced session detaches
	removed := r.UnregisterSession("u1", old)

	// Then the newer session stays registered
	req.False(removed)
	got, ok := r.Lookup("u1")
	req.True(ok)
	req.Equal("new", got.ID())

	req.True(r.UnregisterSession("u1", cur))
	_, ok = r.Lookup("u1")
	req.False(ok)
}

func TestMemoryRegistry_Unregister(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()
	r.Register("u1", &fakeSession{id: "s1", userID: "u1"})

	r.Unregister("u1")
	r.Unregister("u1")

	_, ok := r.Lookup("u1")
	req.False(ok)
}

func TestMemoryRegistry_Sessions(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()
	r.Register("u1", &fakeSession{id: "s1", userID: "u1"})
	r.Register("u2", &fakeSession{id: "s2", userID: "u2"})

	ids := make([]string, 0)
	for _, s := range r.Sessions() {
		ids = append(ids, s.ID())
	}

	req.ElementsMatch([]string{"s1", "s2"}, ids)
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	req := require.New(t)
	r := NewMemoryRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i%10)
			s := &fakeSession{id: fmt.Sprintf("s%d", i), userID: userID}
			r.Register(userID, s)
			r.Lookup(userID)
			r.Sessions()
			if i%2 == 0 {
				r.UnregisterSession(userID, s)
			}
		}(i)
	}
	wg.Wait()

	req.LessOrEqual(r.Len(), 10)
}
