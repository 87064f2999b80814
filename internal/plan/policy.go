// Package plan is the single place plan-tier numbers live: flag
// quotas, duration limits and exposure rules.
package plan

import (
	"fmt"

	"cosnap-backend/internal/models"
)

// Tier is a user's subscription level.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// ParseTier maps a stored tier string to a Tier, defaulting unknown
// values to free.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPremium, TierAdmin:
		return Tier(s), nil
	case "":
		return TierFree, nil
	default:
		return TierFree, fmt.Errorf("unknown plan tier %q", s)
	}
}

// Flag types carry their own duration limits.
const (
	FlagTypeTravel  = "travel"
	FlagTypeService = "service"
)

// UnlimitedFlags is the quota sentinel for tiers with no flag limit.
const UnlimitedFlags = int(^uint32(0) >> 1)

// Unlimited reports whether a quota value means "no limit".
func Unlimited(quota int) bool {
	return quota >= UnlimitedFlags
}

// ActiveFlagQuota returns how many flags a user on the given tier may
// have active at once.
func ActiveFlagQuota(t Tier) int {
	switch t {
	case TierPremium:
		return 5
	case TierAdmin:
		return UnlimitedFlags
	default:
		return 1
	}
}

// maxDurationByType overrides the default duration limit per flag
// type. Service flags historically allowed a longer window.
var maxDurationByType = map[string]int{
	FlagTypeTravel:  3,
	FlagTypeService: 7,
}

// MaxFlagDurationDays returns the longest allowed span between a
// flag's start and end date, in days. The limit is per flag type; the
// tier argument is kept so tier-specific overrides have a home.
func MaxFlagDurationDays(t Tier, flagType string) int {
	if days, ok := maxDurationByType[flagType]; ok {
		return days
	}
	return maxDurationByType[FlagTypeTravel]
}

// ExposurePolicyFor returns the listing exposure a new flag gets for
// the owner's tier.
func ExposurePolicyFor(t Tier) models.ExposurePolicy {
	switch t {
	case TierPremium, TierAdmin:
		return models.ExposurePremiumPinned
	default:
		return models.ExposureDefault
	}
}
