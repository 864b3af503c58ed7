// Package channels delivers actions to external providers. Each channel
// has one Sender; a Registry maps channel tags to senders. Providers are
// thin HTTP adapters; local development uses the logging sender.
package channels

import (
	"context"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// Sender delivers one payload on one channel. Implementations validate
// the payload before touching the provider; a validation failure is a
// PermanentFailure, never retried.
type Sender interface {
	Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error)
}

// Registry maps channel tags to senders.
type Registry struct {
	senders map[models.Channel]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[models.Channel]Sender)}
}

// Register installs a sender for a channel, replacing any existing one.
func (r *Registry) Register(channel models.Channel, sender Sender) {
	r.senders[channel] = sender
}

// Get returns the sender for a channel or a ConfigurationError when none
// is registered.
func (r *Registry) Get(channel models.Channel) (Sender, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return nil, apperrors.NewConfiguration("no sender registered for channel %q", channel)
	}
	return sender, nil
}

// requireFields checks payload for required keys with non-empty string
// values.
func requireFields(payload kv.Map, fields ...string) error {
	for _, f := range fields {
		if payload.GetString(f) == "" {
			return apperrors.Permanent(apperrors.NewValidation(f, "required"))
		}
	}
	return nil
}
