// Package notify pushes out-of-band pings when a write action goes pending,
// so an operator or the user sees the approval request even when the client
// is backgrounded.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hushh/voicegate/internal/domain"
)

// Sender delivers one notification text to a single destination.
type Sender interface {
	Send(ctx context.Context, text string) error
	Channel() string
}

// Registry is a simple map-based sender collection.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds a sender under its channel name, replacing any previous one.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Get returns the sender for the given channel, or false if not registered.
func (r *Registry) Get(channel string) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[channel]
	return s, ok
}

func (r *Registry) all() []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Sender, 0, len(r.senders))
	for _, s := range r.senders {
		out = append(out, s)
	}
	return out
}

// Notifier fans a pending confirmation out to every registered sender.
// Delivery is best-effort: a failing channel is logged and never blocks the
// confirmation flow.
type Notifier struct {
	registry *Registry
	logger   zerolog.Logger
}

func New(registry *Registry, logger zerolog.Logger) *Notifier {
	return &Notifier{
		registry: registry,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// ConfirmationPending announces the pending write to all channels.
func (n *Notifier) ConfirmationPending(ctx context.Context, c *domain.Confirmation) {
	text := "Approval needed for " + c.ActionType + ": " + c.Preview
	for _, s := range n.registry.all() {
		if err := s.Send(ctx, text); err != nil {
			n.logger.Warn().
				Err(err).
				Str("channel", s.Channel()).
				Str("confirmation_id", c.ID.String()).
				Msg("notification delivery failed")
			continue
		}
		n.logger.Debug().
			Str("channel", s.Channel()).
			Str("confirmation_id", c.ID.String()).
			Msg("confirmation ping sent")
	}
}
