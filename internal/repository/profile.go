package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
)

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, plan_tier, push_token, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, profile.ID, profile.PlanTier, profile.PushToken, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Exists reports whether a profile exists.
func (r *ProfileRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}
	return exists, nil
}

// GetTier returns the profile's current plan tier.
func (r *ProfileRepository) GetTier(ctx context.Context, id string) (plan.Tier, error) {
	query := `SELECT plan_tier FROM profiles WHERE id = $1`
	var tier string
	err := r.db.QueryRow(ctx, query, id).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return plan.TierFree, ErrNotFound
		}
		return plan.TierFree, fmt.Errorf("failed to get plan tier: %w", err)
	}
	parsed, err := plan.ParseTier(tier)
	if err != nil {
		return plan.TierFree, fmt.Errorf("profile %s: %w", id, err)
	}
	return parsed, nil
}

// GetPushToken returns the recipient's APNs token, or nil when the
// user never registered a device.
func (r *ProfileRepository) GetPushToken(ctx context.Context, id string) (*string, error) {
	query := `SELECT push_token FROM profiles WHERE id = $1`
	var token *string
	err := r.db.QueryRow(ctx, query, id).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}

// SetPushToken stores the device token for push delivery.
func (r *ProfileRepository) SetPushToken(ctx context.Context, id, token string) error {
	result, err := r.db.Exec(ctx, `UPDATE profiles SET push_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("failed to set push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
