package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// defaultPolicies are the engine-wide guardrails applied when a creator
// has no rule for a key.
var defaultPolicies = map[string]int64{
	models.PolicyRateLimitEmailDaily:     1,
	models.PolicyRateLimitEmailWeekly:    3,
	models.PolicyRateLimitWhatsAppDaily:  2,
	models.PolicyRateLimitWhatsAppWeekly: 5,
	models.PolicyRateLimitCallWeekly:     1,
	models.PolicyQuietHoursStart:         21,
	models.PolicyQuietHoursEnd:           9,
	models.PolicyRequireConsent:          1,
}

// Decision is the policy verdict for one planned action.
type Decision struct {
	Approved   bool     `json:"approved"`
	Reason     string   `json:"reason,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// ToMap renders the decision for storage on the action row.
func (d *Decision) ToMap() kv.Map {
	m := kv.Map{"approved": kv.Bool(d.Approved)}
	if d.Reason != "" {
		m.Set("reason", kv.String(d.Reason))
	}
	return m
}

// PolicyService enforces per-creator guardrails: channel rate limits,
// quiet hours in the consumer's timezone, and consent.
type PolicyService struct {
	rules     repositories.PolicyRepository
	consumers repositories.ConsumerRepository
	actions   repositories.ActionRepository
	logger    *zap.Logger
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(
	rules repositories.PolicyRepository,
	consumers repositories.ConsumerRepository,
	actions repositories.ActionRepository,
	logger *zap.Logger,
) *PolicyService {
	return &PolicyService{rules: rules, consumers: consumers, actions: actions, logger: logger}
}

// ValidateAction checks a planned action against every guardrail and
// returns the combined decision. Violations never error out: they deny.
func (s *PolicyService) ValidateAction(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, sendAt time.Time) (*Decision, error) {
	rules, err := s.ruleValues(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	consumer, err := s.consumers.GetByID(ctx, creatorID, consumerID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	var violations []string

	if v := s.checkConsent(rules, consumer, channel); v != "" {
		violations = append(violations, v)
	}
	rateViolation, err := s.checkRateLimits(ctx, rules, creatorID, consumerID, channel)
	if err != nil {
		return nil, err
	}
	if rateViolation != "" {
		violations = append(violations, rateViolation)
	}
	if v := s.checkQuietHours(rules, consumer, channel, sendAt); v != "" {
		violations = append(violations, v)
	}

	decision := &Decision{Approved: len(violations) == 0, Violations: violations}
	if !decision.Approved {
		decision.Reason = violations[0]
		for _, v := range violations[1:] {
			decision.Reason += "; " + v
		}
	}
	return decision, nil
}

// SetRule stores a creator override for a policy key.
func (s *PolicyService) SetRule(ctx context.Context, creatorID uuid.UUID, key string, value int64) error {
	if _, ok := defaultPolicies[key]; !ok {
		return apperrors.NewValidation("key", fmt.Sprintf("unknown policy key %q", key))
	}
	return s.rules.Upsert(ctx, &models.PolicyRule{
		CreatorID: creatorID,
		Key:       key,
		Value:     kv.Map{"value": kv.Int(value)},
	})
}

// Rules returns the effective policy values for a creator, defaults
// merged with overrides.
func (s *PolicyService) Rules(ctx context.Context, creatorID uuid.UUID) (map[string]int64, error) {
	return s.ruleValues(ctx, creatorID)
}

func (s *PolicyService) ruleValues(ctx context.Context, creatorID uuid.UUID) (map[string]int64, error) {
	values := make(map[string]int64, len(defaultPolicies))
	for k, v := range defaultPolicies {
		values[k] = v
	}

	rules, err := s.rules.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if _, ok := defaultPolicies[rule.Key]; ok {
			values[rule.Key] = rule.Value.GetInt("value")
		}
	}
	return values, nil
}

func (s *PolicyService) checkConsent(rules map[string]int64, consumer *models.Consumer, channel models.Channel) string {
	if channel == models.ChannelPayment {
		return ""
	}
	if rules[models.PolicyRequireConsent] == 0 {
		return ""
	}
	if consumer == nil {
		return fmt.Sprintf("no consent for %s", channel)
	}
	if !consumer.HasConsent(channel) {
		return fmt.Sprintf("no consent for %s", channel)
	}
	return ""
}

func (s *PolicyService) checkRateLimits(ctx context.Context, rules map[string]int64, creatorID, consumerID uuid.UUID, channel models.Channel) (string, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := now.Add(-7 * 24 * time.Hour)

	type window struct {
		key   string
		since time.Time
		label string
	}

	var windows []window
	switch channel {
	case models.ChannelEmail:
		windows = []window{
			{models.PolicyRateLimitEmailDaily, dayStart, "email daily"},
			{models.PolicyRateLimitEmailWeekly, weekStart, "email weekly"},
		}
	case models.ChannelWhatsApp:
		windows = []window{
			{models.PolicyRateLimitWhatsAppDaily, dayStart, "whatsapp daily"},
			{models.PolicyRateLimitWhatsAppWeekly, weekStart, "whatsapp weekly"},
		}
	case models.ChannelCall:
		windows = []window{
			{models.PolicyRateLimitCallWeekly, weekStart, "call weekly"},
		}
	default:
		// Payment links are not rate limited.
		return "", nil
	}

	for _, w := range windows {
		limit := rules[w.key]
		count, err := s.actions.CountSentSince(ctx, creatorID, consumerID, channel, w.since)
		if err != nil {
			return "", err
		}
		if int64(count) >= limit {
			return fmt.Sprintf("%s limit (%d) exceeded", w.label, limit), nil
		}
	}
	return "", nil
}

func (s *PolicyService) checkQuietHours(rules map[string]int64, consumer *models.Consumer, channel models.Channel, sendAt time.Time) string {
	if channel == models.ChannelPayment {
		return ""
	}
	if consumer == nil || consumer.Timezone == "" {
		return ""
	}

	loc, err := time.LoadLocation(consumer.Timezone)
	if err != nil {
		// Unknown timezone, skip the check.
		return ""
	}

	start := int(rules[models.PolicyQuietHoursStart])
	end := int(rules[models.PolicyQuietHoursEnd])
	hour := sendAt.In(loc).Hour()

	var quiet bool
	if start > end {
		// Spans midnight, e.g. 21:00 to 09:00.
		quiet = hour >= start || hour < end
	} else {
		quiet = hour >= start && hour < end
	}

	if quiet {
		return fmt.Sprintf("scheduled during quiet hours (%02d:00-%02d:00 in consumer timezone)", start, end)
	}
	return ""
}
