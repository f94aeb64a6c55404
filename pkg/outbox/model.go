package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxAttempts bounds how many times a failed event is dispatched before it is
// left in the table for an operator.
const MaxAttempts = 10

const (
	HeaderEventType   = "event_type"
	HeaderTraceparent = "traceparent"
)

// Event is one claimed outbox row. AggregateID becomes the Kafka key so events
// for the same order stay on one partition.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
}

// Exhausted reports whether a failure of this dispatch is the last one allowed.
func (e Event) Exhausted() bool { return e.RetryCount+1 >= MaxAttempts }
