package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// Creator is the tenant root. All other entities hang off a creator by
// foreign key. Creators are onboarded once and rarely mutated.
type Creator struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Settings  kv.Map    `json:"settings"`
	CreatedAt time.Time `json:"created_at"`
}

// Consumer is a lead tracked per creator.
type Consumer struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	WhatsApp  string    `json:"whatsapp,omitempty"`
	Timezone  string    `json:"timezone,omitempty"`
	Consent   kv.Map    `json:"consent"`
	CreatedAt time.Time `json:"created_at"`
}

// HasConsent reports whether the consumer consented to a channel.
// Payment links carry no consent requirement.
func (c *Consumer) HasConsent(channel Channel) bool {
	if channel == ChannelPayment {
		return true
	}
	return c.Consent[string(channel)].Bool()
}
