package relay

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_relay.go -package=mocks

// Deliverer pushes events to the sessions held by this instance.
type Deliverer interface {
	Broadcast(event any) error
	SendTo(userID string, event any) (bool, error)
}
