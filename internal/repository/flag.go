package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cosnap-backend/internal/models"
)

// FlagRepository handles database operations for flags
type FlagRepository struct {
	db *pgxpool.Pool
}

// NewFlagRepository creates a new flag repository
func NewFlagRepository(db *pgxpool.Pool) *FlagRepository {
	return &FlagRepository{db: db}
}

const flagColumns = `id, owner_id, flag_type, city, country, display_latitude, display_longitude,
		start_date, end_date, note, languages, visibility_status, source_plan_type,
		exposure_policy, created_at, updated_at`

func scanFlag(row pgx.Row) (*models.Flag, error) {
	var f models.Flag
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.Type, &f.City, &f.Country, &f.DisplayLatitude, &f.DisplayLongitude,
		&f.StartDate, &f.EndDate, &f.Note, &f.Languages, &f.VisibilityStatus, &f.SourcePlanType,
		&f.ExposurePolicy, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan flag: %w", err)
	}
	return &f, nil
}

// CountActive counts the owner's active, unexpired flags. Expiry is
// computed from end_date at read time; no sweeper marks rows expired.
func (r *FlagRepository) CountActive(ctx context.Context, ownerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM flags
		WHERE owner_id = $1 AND visibility_status = 'active' AND end_date >= CURRENT_DATE
	`
	var count int
	if err := r.db.QueryRow(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active flags: %w", err)
	}
	return count, nil
}

// Insert creates a flag, re-checking the active-flag quota inside a
// transaction. The owner's profile row is locked first so two racing
// creates for the same user serialize on the count.
func (r *FlagRepository) Insert(ctx context.Context, flag *models.Flag, quota int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID string
	err = tx.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, flag.OwnerID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock owner profile: %w", err)
	}

	var active int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM flags
		WHERE owner_id = $1 AND visibility_status = 'active' AND end_date >= CURRENT_DATE
	`, flag.OwnerID).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to count active flags: %w", err)
	}
	if active >= quota {
		return ErrQuotaExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO flags (`+flagColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		flag.ID, flag.OwnerID, flag.Type, flag.City, flag.Country,
		flag.DisplayLatitude, flag.DisplayLongitude, flag.StartDate, flag.EndDate,
		flag.Note, flag.Languages, flag.VisibilityStatus, flag.SourcePlanType,
		flag.ExposurePolicy, flag.CreatedAt, flag.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flag: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit flag insert: %w", err)
	}
	return nil
}

// GetOwned retrieves a flag scoped by owner.
func (r *FlagRepository) GetOwned(ctx context.Context, id, ownerID string) (*models.Flag, error) {
	query := `SELECT ` + flagColumns + ` FROM flags WHERE id = $1 AND owner_id = $2`
	return scanFlag(r.db.QueryRow(ctx, query, id, ownerID))
}

// UpdateOwned applies a partial update scoped by owner. Ownership is
// part of the WHERE clause, not just application logic.
func (r *FlagRepository) UpdateOwned(ctx context.Context, id, ownerID string, patch models.FlagPatch) (*models.Flag, error) {
	query := `
		UPDATE flags SET
			city = COALESCE($3, city),
			country = COALESCE($4, country),
			display_latitude = COALESCE($5, display_latitude),
			display_longitude = COALESCE($6, display_longitude),
			start_date = COALESCE($7, start_date),
			end_date = COALESCE($8, end_date),
			note = COALESCE($9, note),
			languages = COALESCE($10, languages),
			visibility_status = COALESCE($11, visibility_status),
			updated_at = $12
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + flagColumns
	var vis *string
	if patch.VisibilityStatus != nil {
		s := string(*patch.VisibilityStatus)
		vis = &s
	}
	return scanFlag(r.db.QueryRow(ctx, query,
		id, ownerID,
		patch.City, patch.Country, patch.DisplayLatitude, patch.DisplayLongitude,
		patch.StartDate, patch.EndDate, patch.Note, patch.Languages, vis,
		time.Now(),
	))
}

// DeleteOwned hard-deletes a flag scoped by owner. Dependent offers and
// matches cascade via foreign keys.
func (r *FlagRepository) DeleteOwned(ctx context.Context, id, ownerID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM flags WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListVisible returns the public feed: active, unexpired flags,
// premium-pinned first, then newest.
func (r *FlagRepository) ListVisible(ctx context.Context, limit int) ([]models.Flag, error) {
	query := `
		SELECT ` + flagColumns + `
		FROM flags
		WHERE visibility_status = 'active' AND end_date >= CURRENT_DATE
		ORDER BY (exposure_policy = 'premium_pinned') DESC, created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	var flags []models.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		flags = append(flags, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flag rows: %w", err)
	}
	return flags, nil
}
