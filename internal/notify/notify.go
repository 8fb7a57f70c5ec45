// Package notify delivers chat messages after state changes commit.
package notify

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Button is an inline action attached to a message.
type Button struct {
	Text string
	Data string
}

// Message is a chat message addressed to one chat.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}

// Notifier accepts messages for delivery. Implementations never report
// delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Enqueuer is a Notifier that can wait for queue space instead of dropping.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) error
}

// ErrRelayClosed is returned by Enqueue after Close.
var ErrRelayClosed = errors.New("notify: relay closed")

// Enqueue waits for n to accept msg when n is an Enqueuer and falls back to
// Notify otherwise. Bulk senders use it so a full queue does not drop messages.
func Enqueue(ctx context.Context, n Notifier, msg Message) error {
	if q, ok := n.(Enqueuer); ok {
		return q.Enqueue(ctx, msg)
	}
	n.Notify(ctx, msg)
	return nil
}

// Sender performs the actual delivery.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// Audience holds the fixed chats that receive operational notices.
type Audience struct {
	AdminID int64
	GroupID int64
}

// Admin addresses text to the admin chat.
func (a Audience) Admin(text string) Message { return Message{ChatID: a.AdminID, Text: text} }

// Group addresses text to the broadcast group; ChatID is 0 when no group is configured.
func (a Audience) Group(text string) Message { return Message{ChatID: a.GroupID, Text: text} }

// Nop discards every message.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Message) {}

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Relay is a bounded queue drained by a fixed worker pool.
type Relay struct {
	sender Sender
	jobs   chan Message

	workers int
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRelay constructs a Relay; non-positive sizes use defaults.
func NewRelay(sender Sender, workers, queueSize int) *Relay {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Relay{sender: sender, jobs: make(chan Message, queueSize), workers: workers}
}

// Start launches the workers.
func (r *Relay) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	log.Infof("notification relay started (workers=%d queue=%d)", r.workers, cap(r.jobs))
}

func (r *Relay) worker(id int) {
	defer r.wg.Done()
	for msg := range r.jobs {
		if errDeliver := r.sender.Deliver(context.Background(), msg); errDeliver != nil {
			log.WithError(errDeliver).WithFields(log.Fields{
				"worker":  id,
				"chat_id": msg.ChatID,
			}).Warn("notification delivery failed")
		}
	}
}

// Notify enqueues msg without blocking. Messages without a chat are ignored;
// a full queue drops the message with a warning.
func (r *Relay) Notify(_ context.Context, msg Message) {
	if msg.ChatID == 0 || msg.Text == "" {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		log.WithField("chat_id", msg.ChatID).Warn("notification dropped: relay closed")
		return
	}
	select {
	case r.jobs <- msg:
	default:
		log.WithField("chat_id", msg.ChatID).Warn("notification dropped: queue full")
	}
}

// Enqueue queues msg, waiting for space until ctx is done.
func (r *Relay) Enqueue(ctx context.Context, msg Message) error {
	if msg.ChatID == 0 || msg.Text == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRelayClosed
	}
	select {
	case r.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
}
