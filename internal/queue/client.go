package queue

import "context"

// Publisher sends status events to a queue backend.
type Publisher interface {
	Publish(ctx context.Context, event StatusEvent) error
}
