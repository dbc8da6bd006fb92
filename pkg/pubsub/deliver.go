package pubsub

import (
	"context"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// forward queues evt for a subscriber without stalling the transport read
// loop. A full queue drops the event. It returns false once ctx is done.
func forward(ctx context.Context, out chan<- *Event, evt *Event, driver string) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	default:
	}
	l := log.L()
	l.Warn().
		Str("driver", driver).
		Str(log.FieldEventType, evt.Type).
		Str("key", evt.Key).
		Msg("pubsub: subscriber queue full, event dropped")
	return true
}
