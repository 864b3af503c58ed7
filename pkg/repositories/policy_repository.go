package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// PolicyRepository provides data access for per-creator policy rules.
type PolicyRepository interface {
	Upsert(ctx context.Context, rule *models.PolicyRule) error
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.PolicyRule, error)
	Delete(ctx context.Context, creatorID uuid.UUID, key string) error
}

type policyRepository struct {
	db database.Querier
}

// NewPolicyRepository creates a new PolicyRepository backed by db.
func NewPolicyRepository(db database.Querier) PolicyRepository {
	return &policyRepository{db: db}
}

var _ PolicyRepository = (*policyRepository)(nil)

func (r *policyRepository) Upsert(ctx context.Context, rule *models.PolicyRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}

	query := `
		INSERT INTO policy_rules (id, creator_id, key, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (creator_id, key) DO UPDATE SET value = EXCLUDED.value`

	_, err := r.db.Exec(ctx, query, rule.ID, rule.CreatorID, rule.Key, jsonbValue(rule.Value))
	if err != nil {
		return fmt.Errorf("failed to upsert policy rule: %w", err)
	}

	return nil
}

func (r *policyRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.PolicyRule, error) {
	query := `
		SELECT id, creator_id, key, value
		FROM policy_rules
		WHERE creator_id = $1
		ORDER BY key`

	rows, err := r.db.Query(ctx, query, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list policy rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.PolicyRule
	for rows.Next() {
		var rule models.PolicyRule
		if err := rows.Scan(&rule.ID, &rule.CreatorID, &rule.Key, &rule.Value); err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

func (r *policyRepository) Delete(ctx context.Context, creatorID uuid.UUID, key string) error {
	query := `DELETE FROM policy_rules WHERE creator_id = $1 AND key = $2`

	tag, err := r.db.Exec(ctx, query, creatorID, key)
	if err != nil {
		return fmt.Errorf("failed to delete policy rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
