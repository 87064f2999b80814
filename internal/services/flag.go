package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cosnap-backend/internal/geo"
	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
	"cosnap-backend/internal/repository"
)

// FlagService drives flag creation, update and deletion under plan
// quotas and geo privacy.
type FlagService struct {
	flags     FlagStore
	displacer *geo.Displacer
	now       func() time.Time
}

// NewFlagService creates a new flag service.
func NewFlagService(flags FlagStore, displacer *geo.Displacer) *FlagService {
	return &FlagService{
		flags:     flags,
		displacer: displacer,
		now:       time.Now,
	}
}

// CreateFlagInput is the validated payload for creating a flag. The
// true coordinates only live here; what gets persisted is the
// displaced pair.
type CreateFlagInput struct {
	Type      string
	City      string
	Country   string
	Latitude  *float64
	Longitude *float64
	StartDate time.Time
	EndDate   time.Time
	Note      string
	Languages []string
}

// UpdateFlagInput carries partial updates. A new coordinate pair is
// re-displaced from scratch; the previous displayed point is never
// nudged.
type UpdateFlagInput struct {
	City       *string
	Country    *string
	Latitude   *float64
	Longitude  *float64
	StartDate  *time.Time
	EndDate    *time.Time
	Note       *string
	Languages  []string
	Visibility *models.FlagVisibility
}

// dateOnly truncates a time to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func durationDays(start, end time.Time) int {
	return int(dateOnly(end).Sub(dateOnly(start)).Hours() / 24)
}

func coordinatesInRange(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Create validates the input, checks the owner's quota for the given
// tier and persists a new active flag with displaced coordinates. The
// store re-checks the quota transactionally; the check here is the
// cheap fast-fail.
func (s *FlagService) Create(ctx context.Context, ownerID string, tier plan.Tier, in CreateFlagInput) (*models.Flag, error) {
	if in.Latitude == nil || in.Longitude == nil {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if !coordinatesInRange(*in.Latitude, *in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if !dateOnly(in.StartDate).After(dateOnly(s.now())) {
		return nil, fmt.Errorf("%w: start date must be in the future", ErrValidation)
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}

	flagType := in.Type
	if flagType == "" {
		flagType = plan.FlagTypeTravel
	}
	maxDays := plan.MaxFlagDurationDays(tier, flagType)
	if durationDays(in.StartDate, in.EndDate) > maxDays {
		return nil, fmt.Errorf("%w: duration exceeds %d days", ErrValidation, maxDays)
	}

	quota := plan.ActiveFlagQuota(tier)
	if !plan.Unlimited(quota) {
		active, err := s.flags.CountActive(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("%w: counting active flags: %v", ErrDependency, err)
		}
		if active >= quota {
			return nil, &QuotaExceededError{Tier: tier, Limit: quota, Active: active}
		}
	}

	dLat, dLng := s.displacer.Displace(*in.Latitude, *in.Longitude)

	now := s.now()
	flag := &models.Flag{
		ID:               uuid.New().String(),
		OwnerID:          ownerID,
		Type:             flagType,
		City:             in.City,
		Country:          in.Country,
		DisplayLatitude:  dLat,
		DisplayLongitude: dLng,
		StartDate:        dateOnly(in.StartDate),
		EndDate:          dateOnly(in.EndDate),
		Note:             in.Note,
		Languages:        in.Languages,
		VisibilityStatus: models.FlagActive,
		SourcePlanType:   string(tier),
		ExposurePolicy:   plan.ExposurePolicyFor(tier),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.flags.Insert(ctx, flag, quota); err != nil {
		if errors.Is(err, repository.ErrQuotaExceeded) {
			return nil, &QuotaExceededError{Tier: tier, Limit: quota, Active: quota}
		}
		return nil, fmt.Errorf("%w: inserting flag: %v", ErrDependency, err)
	}

	return flag, nil
}

// Update applies a partial update to a flag owned by ownerID. The
// ownership check is enforced again at the store layer via a compound
// WHERE clause.
func (s *FlagService) Update(ctx context.Context, flagID, ownerID string, tier plan.Tier, in UpdateFlagInput) (*models.Flag, error) {
	current, err := s.flags.GetOwned(ctx, flagID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading flag: %v", ErrDependency, err)
	}

	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, fmt.Errorf("%w: latitude and longitude must be updated together", ErrValidation)
	}
	if in.Latitude != nil && !coordinatesInRange(*in.Latitude, *in.Longitude) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}

	if in.StartDate != nil && in.EndDate != nil {
		if !in.EndDate.After(*in.StartDate) {
			return nil, fmt.Errorf("%w: end date must be after start date", ErrValidation)
		}
		maxDays := plan.MaxFlagDurationDays(tier, current.Type)
		if durationDays(*in.StartDate, *in.EndDate) > maxDays {
			return nil, fmt.Errorf("%w: duration exceeds %d days", ErrValidation, maxDays)
		}
	}

	if in.Visibility != nil {
		switch *in.Visibility {
		case models.FlagActive, models.FlagHidden, models.FlagExpired:
		default:
			return nil, fmt.Errorf("%w: unknown visibility status %q", ErrValidation, *in.Visibility)
		}
	}

	patch := models.FlagPatch{
		City:             in.City,
		Country:          in.Country,
		Note:             in.Note,
		Languages:        in.Languages,
		VisibilityStatus: in.Visibility,
	}
	if in.StartDate != nil {
		d := dateOnly(*in.StartDate)
		patch.StartDate = &d
	}
	if in.EndDate != nil {
		d := dateOnly(*in.EndDate)
		patch.EndDate = &d
	}
	if in.Latitude != nil && in.Longitude != nil {
		dLat, dLng := s.displacer.Displace(*in.Latitude, *in.Longitude)
		patch.DisplayLatitude = &dLat
		patch.DisplayLongitude = &dLng
	}

	updated, err := s.flags.UpdateOwned(ctx, flagID, ownerID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: updating flag: %v", ErrDependency, err)
	}
	return updated, nil
}

// Delete hard-deletes a flag owned by ownerID. Cascades to dependent
// offers and matches are the schema's responsibility.
func (s *FlagService) Delete(ctx context.Context, flagID, ownerID string) error {
	if err := s.flags.DeleteOwned(ctx, flagID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: deleting flag: %v", ErrDependency, err)
	}
	return nil
}

// List returns the public feed: active, unexpired flags with
// premium-pinned flags first.
func (s *FlagService) List(ctx context.Context, limit int) ([]models.Flag, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	flags, err := s.flags.ListVisible(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing flags: %v", ErrDependency, err)
	}
	return flags, nil
}
