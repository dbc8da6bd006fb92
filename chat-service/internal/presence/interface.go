package presence

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_presence.go -package=mocks

// Notifier pushes an event to every connected session.
type Notifier interface {
	Broadcast(event interface{}) error
}
