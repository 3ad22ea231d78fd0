package queue

import (
	"context"
)

// MessageInterface is one delivered job plus its acknowledgement controls.
// Consumers ack after a successful write and nack (with or without requeue)
// on failure; tests substitute in-memory implementations.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the broker-facing surface the API server and worker share.
type JobQueue interface {
	// Enqueue publishes a job. Jobs with a future NotBefore go through the
	// delayed queue and surface on the main queue when due.
	Enqueue(ctx context.Context, job *Job) error

	// Consume returns a stream of messages plus a channel of consumer
	// errors. The caller acknowledges each message; prefetchCount bounds
	// unacknowledged messages per consumer. Both channels close when ctx
	// is cancelled or the connection drops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close tears down the channel and connection.
	Close() error

	// HealthCheck reports whether the broker connection is usable.
	HealthCheck(ctx context.Context) error
}
