package event

import (
	"time"

	"mega-relay/domain"
)

type Type string

const (
	TaskQueued      Type = "TASK_QUEUED"
	TaskStatus      Type = "TASK_STATUS"
	LeafDownloaded  Type = "LEAF_DOWNLOADED"
	LeafFailed      Type = "LEAF_FAILED"
	FileDelivered   Type = "FILE_DELIVERED"
	TaskDone        Type = "TASK_DONE"
	TaskFailed      Type = "TASK_FAILED"
	WorkerRestarted Type = "WORKER_RESTARTED_AFTER_PANIC"
)

// Event is the side-channel emitted by the transfer pipeline.
// The recorder turns these into best-effort storage writes; the pipeline
// itself never waits on, or fails because of, an event consumer.
type Event struct {
	Type Type
	At   time.Time

	TaskID    string
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Link      string
	Status    domain.Status

	// Per-file payload for leaf and delivery events.
	FileName string
	FileSize int64

	// Failure detail, raw. Redaction happens at the chat boundary, not here.
	Error string

	WorkerName string
}

// Emitter is the producer side of the event channel.
type Emitter interface {
	Emit(e Event)
}

// ChannelEmitter publishes on a buffered channel and drops on overflow:
// observability must never block a transfer.
type ChannelEmitter struct {
	C chan Event
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{C: make(chan Event, buffer)}
}

func (c *ChannelEmitter) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case c.C <- e:
	default:
	}
}

// Discard swallows every event. Used in tests and when running without
// a persistence layer.
type Discard struct{}

func (Discard) Emit(Event) {}
