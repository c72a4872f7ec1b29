package mqtt

import (
	"context"
	"sync"
	"time"
)

// DefaultInboxSize is the inbox capacity used when none is given.
const DefaultInboxSize = 64

// Message is one received bus message.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Inbox is a bounded FIFO between paho's delivery goroutine and the single
// dispatch loop. When full, the newest message is dropped.
type Inbox struct {
	ch chan Message

	mu     sync.RWMutex
	closed bool
	onDrop func(Message)
}

// NewInbox creates an inbox holding up to size messages.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{ch: make(chan Message, size)}
}

// OnDrop registers a callback invoked for every dropped message.
func (in *Inbox) OnDrop(fn func(Message)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onDrop = fn
}

// Offer enqueues msg without blocking and reports whether it was accepted.
func (in *Inbox) Offer(msg Message) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if !in.closed {
		select {
		case in.ch <- msg:
			return true
		default:
		}
	}

	if in.onDrop != nil {
		in.onDrop(msg)
	}
	return false
}

// Handler returns a MessageHandler that copies each message into the inbox.
func (in *Inbox) Handler() MessageHandler {
	return func(topic string, payload []byte) error {
		in.Offer(Message{
			Topic:      topic,
			Payload:    append([]byte(nil), payload...),
			ReceivedAt: time.Now(),
		})
		return nil
	}
}

// Receive blocks until a message is available, ctx is done or the inbox is
// closed and drained.
func (in *Inbox) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-in.ch:
		if !ok {
			return Message{}, ErrInboxClosed
		}
		return msg, nil
	}
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	return len(in.ch)
}

// Close stops accepting messages. Queued messages can still be received.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.ch)
	}
}
