package jobs

import (
	"context"
	"sync"
)

// Event is one progress update on a submission's stream.
type Event struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
	Status  Status `json:"status,omitempty"` // Set on the final event.
	Final   bool   `json:"final,omitempty"`
}

// Channel is an unbounded in-memory progress queue with a single
// producer and a single consumer. Publishing never blocks, however slow
// or absent the consumer is; the backlog is held in memory for the
// lifetime of the run.
type Channel struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
}

// NewChannel creates an open progress channel.
func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{}, 1)}
}

// Publish enqueues an event. Events after Done are dropped.
func (c *Channel) Publish(e Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, e)
	c.mu.Unlock()
	c.wake()
}

// Done enqueues the final event and closes the channel. The consumer
// sees the final event and then its subscription ends; no separate
// sentinel value is ever delivered.
func (c *Channel) Done(final Event) {
	final.Final = true
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, final)
	c.closed = true
	c.mu.Unlock()
	c.wake()
}

func (c *Channel) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Subscribe returns a channel delivering queued events in publish
// order. The returned channel is closed after the final event has been
// delivered, or when ctx is cancelled. Intended for a single consumer.
func (c *Channel) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		next := 0
		for {
			c.mu.Lock()
			pending := c.queue[next:]
			closed := c.closed
			next = len(c.queue)
			c.mu.Unlock()

			for _, e := range pending {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
			if closed {
				return
			}

			select {
			case <-c.notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Registry maps unified job ids to their live progress channels so the
// SSE endpoint can attach to an in-flight submission.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Register creates and tracks a channel for a submission.
func (r *Registry) Register(id string) *Channel {
	ch := NewChannel()
	r.mu.Lock()
	r.channels[id] = ch
	r.mu.Unlock()
	return ch
}

// Lookup returns the channel for a submission, if it is still tracked.
func (r *Registry) Lookup(id string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Remove forgets a submission's channel. Existing subscribers keep
// draining; new subscribers can no longer attach.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.channels, id)
	r.mu.Unlock()
}
