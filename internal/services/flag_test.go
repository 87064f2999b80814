package services

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cosnap-backend/internal/geo"
	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
	"cosnap-backend/internal/repository"
)

var testNow = time.Date(2024, 2, 20, 12, 0, 0, 0, time.UTC)

func newTestFlagService(t *testing.T) (*FlagService, *fakeFlagStore) {
	t.Helper()
	store := newFakeFlagStore()
	store.nowFn = func() time.Time { return testNow }
	svc := NewFlagService(store, geo.NewDisplacer(5.0, rand.NewSource(1)))
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func validFlagInput() CreateFlagInput {
	lat, lng := 37.5665, 126.9780
	return CreateFlagInput{
		Type:      plan.FlagTypeTravel,
		City:      "Seoul",
		Country:   "KR",
		Latitude:  &lat,
		Longitude: &lng,
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestFlagCreateDisplacesCoordinates(t *testing.T) {
	svc, store := newTestFlagService(t)
	in := validFlagInput()

	flag, err := svc.Create(context.Background(), "user-a", plan.TierFree, in)
	require.NoError(t, err)

	dist := geo.DistanceKm(*in.Latitude, *in.Longitude, flag.DisplayLatitude, flag.DisplayLongitude)
	assert.LessOrEqual(t, dist, 5.0, "displayed coordinate outside privacy radius")
	assert.Greater(t, dist, 0.0, "displayed coordinate equals true coordinate")

	assert.Equal(t, models.FlagActive, flag.VisibilityStatus)
	assert.Equal(t, "free", flag.SourcePlanType)
	assert.Equal(t, models.ExposureDefault, flag.ExposurePolicy)
	assert.Len(t, store.flags, 1)
}

func TestFlagCreatePremiumGetsPinnedExposure(t *testing.T) {
	svc, _ := newTestFlagService(t)

	flag, err := svc.Create(context.Background(), "user-a", plan.TierPremium, validFlagInput())
	require.NoError(t, err)
	assert.Equal(t, models.ExposurePremiumPinned, flag.ExposurePolicy)
	assert.Equal(t, "premium", flag.SourcePlanType)
}

func TestFlagCreateQuotaExceeded(t *testing.T) {
	svc, store := newTestFlagService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	_, err = svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, plan.TierFree, quotaErr.Tier)
	assert.Equal(t, 1, quotaErr.Limit)
	assert.Equal(t, 1, quotaErr.Active)
	assert.Len(t, store.flags, 1, "failed create must write nothing")
}

func TestFlagCreatePremiumQuota(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, "user-a", plan.TierPremium, validFlagInput())
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "user-a", plan.TierPremium, validFlagInput())
	var quotaErr *QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 5, quotaErr.Limit)
}

func TestFlagCreateAdminUnlimited(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := svc.Create(ctx, "admin", plan.TierAdmin, validFlagInput())
		require.NoError(t, err)
	}
}

func TestFlagCreateDurationLimit(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	// 4-day span over the 3-day travel limit.
	in := validFlagInput()
	in.EndDate = in.StartDate.AddDate(0, 0, 4)
	_, err := svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation)

	// Exactly 3 days is fine.
	in.EndDate = in.StartDate.AddDate(0, 0, 3)
	_, err = svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.NoError(t, err)
}

func TestFlagCreateServiceTypeAllowsLongerSpan(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	in := validFlagInput()
	in.Type = plan.FlagTypeService
	in.EndDate = in.StartDate.AddDate(0, 0, 7)
	_, err := svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.NoError(t, err)

	in.EndDate = in.StartDate.AddDate(0, 0, 8)
	_, err = svc.Create(ctx, "user-b", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFlagCreateValidation(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	in := validFlagInput()
	in.Latitude = nil
	in.Longitude = nil
	_, err := svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation, "location is required")

	in = validFlagInput()
	in.StartDate = testNow.AddDate(0, 0, -1)
	_, err = svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation, "start date in the past")

	in = validFlagInput()
	in.StartDate = testNow
	_, err = svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation, "start date today is not in the future")

	in = validFlagInput()
	in.EndDate = in.StartDate
	_, err = svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation, "end date must be after start date")

	in = validFlagInput()
	bad := 123.0
	in.Latitude = &bad
	_, err = svc.Create(ctx, "user-a", plan.TierFree, in)
	assert.ErrorIs(t, err, ErrValidation, "latitude out of range")
}

func TestFlagCreateConcurrentQuotaRace(t *testing.T) {
	svc, store := newTestFlagService(t)

	// Two concurrent creates for a free-tier user with one slot: the
	// store-level re-check must let exactly one through.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Create(context.Background(), "user-a", plan.TierFree, validFlagInput())
			errs <- err
		}()
	}
	var failures int
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			var quotaErr *QuotaExceededError
			require.ErrorAs(t, err, &quotaErr)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Len(t, store.flags, 1)
}

func TestFlagUpdateRedisplacesCoordinates(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)
	prevLat, prevLng := flag.DisplayLatitude, flag.DisplayLongitude

	newLat, newLng := 35.1796, 129.0756 // Busan
	updated, err := svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{
		Latitude:  &newLat,
		Longitude: &newLng,
	})
	require.NoError(t, err)

	dist := geo.DistanceKm(newLat, newLng, updated.DisplayLatitude, updated.DisplayLongitude)
	assert.LessOrEqual(t, dist, 5.0)
	assert.Greater(t, dist, 0.0)
	assert.NotEqual(t, prevLat, updated.DisplayLatitude)
	assert.NotEqual(t, prevLng, updated.DisplayLongitude)
}

func TestFlagUpdateRejectsOutOfRangeCoordinates(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)
	prevLat := flag.DisplayLatitude

	badLat, lng := 95.0, 126.9780
	_, err = svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{
		Latitude:  &badLat,
		Longitude: &lng,
	})
	assert.ErrorIs(t, err, ErrValidation)

	lat, badLng := 37.5665, -181.0
	_, err = svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{
		Latitude:  &lat,
		Longitude: &badLng,
	})
	assert.ErrorIs(t, err, ErrValidation)

	current, err := svc.flags.GetOwned(ctx, flag.ID, "user-a")
	require.NoError(t, err)
	assert.Equal(t, prevLat, current.DisplayLatitude, "rejected update must not move the flag")
}

func TestFlagUpdateRejectsLoneCoordinate(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	lat := 35.0
	_, err = svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{Latitude: &lat})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFlagUpdateDurationRevalidated(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 5)
	_, err = svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{
		StartDate: &start,
		EndDate:   &end,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFlagUpdateOwnershipEnforced(t *testing.T) {
	svc, _ := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	note := "hijacked"
	_, err = svc.Update(ctx, flag.ID, "user-b", plan.TierFree, UpdateFlagInput{Note: &note})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlagHideAndUnhide(t *testing.T) {
	svc, store := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	hidden := models.FlagHidden
	updated, err := svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{Visibility: &hidden})
	require.NoError(t, err)
	assert.Equal(t, models.FlagHidden, updated.VisibilityStatus)

	// A hidden flag frees its quota slot.
	count, err := store.CountActive(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	active := models.FlagActive
	updated, err = svc.Update(ctx, flag.ID, "user-a", plan.TierFree, UpdateFlagInput{Visibility: &active})
	require.NoError(t, err)
	assert.Equal(t, models.FlagActive, updated.VisibilityStatus)
}

func TestFlagDelete(t *testing.T) {
	svc, store := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)

	err = svc.Delete(ctx, flag.ID, "user-b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, store.flags, 1)

	err = svc.Delete(ctx, flag.ID, "user-a")
	require.NoError(t, err)
	assert.Empty(t, store.flags)

	err = svc.Delete(ctx, flag.ID, "user-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlagExpiredComputedLazily(t *testing.T) {
	flag := &models.Flag{
		VisibilityStatus: models.FlagActive,
		EndDate:          time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	}
	assert.False(t, flag.Expired(time.Date(2024, 3, 3, 23, 0, 0, 0, time.UTC)))
	assert.True(t, flag.Expired(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))

	flag.VisibilityStatus = models.FlagExpired
	assert.True(t, flag.Expired(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestFlagCreateStoreQuotaBackstop(t *testing.T) {
	// Seed the store directly to simulate a row that raced in between
	// the service pre-check and the insert.
	svc, store := newTestFlagService(t)
	ctx := context.Background()

	flag, err := svc.Create(ctx, "user-a", plan.TierFree, validFlagInput())
	require.NoError(t, err)
	_ = flag

	// Bypass the pre-check by talking to the store with a stale count.
	other := validFlagInput()
	otherFlag := &models.Flag{
		ID:               "raced",
		OwnerID:          "user-a",
		Type:             other.Type,
		StartDate:        other.StartDate,
		EndDate:          other.EndDate,
		VisibilityStatus: models.FlagActive,
	}
	err = store.Insert(ctx, otherFlag, plan.ActiveFlagQuota(plan.TierFree))
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)
}
