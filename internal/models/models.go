package models

import "time"

// Profile represents a user profile as far as this service cares:
// identity, plan tier and an optional push token for APNs delivery.
type Profile struct {
	ID        string    `json:"id"`
	Token     string    `json:"token,omitempty"`
	PlanTier  string    `json:"plan_tier"`
	PushToken *string   `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FlagVisibility is the stored visibility state of a flag. Expiry by
// passage of time is computed from EndDate at read time; "expired" can
// also be stored explicitly.
type FlagVisibility string

const (
	FlagActive  FlagVisibility = "active"
	FlagHidden  FlagVisibility = "hidden"
	FlagExpired FlagVisibility = "expired"
)

// ExposurePolicy controls how prominently a flag is listed.
type ExposurePolicy string

const (
	ExposureDefault       ExposurePolicy = "default"
	ExposurePremiumPinned ExposurePolicy = "premium_pinned"
)

// Flag represents a user-posted travel plan. Only the displaced
// coordinates are ever stored; the true input coordinates never leave
// the create/update request.
type Flag struct {
	ID               string         `json:"id"`
	OwnerID          string         `json:"owner_id"`
	Type             string         `json:"type"`
	City             string         `json:"city"`
	Country          string         `json:"country"`
	DisplayLatitude  float64        `json:"display_latitude"`
	DisplayLongitude float64        `json:"display_longitude"`
	StartDate        time.Time      `json:"start_date"`
	EndDate          time.Time      `json:"end_date"`
	Note             string         `json:"note,omitempty"`
	Languages        []string       `json:"languages,omitempty"`
	VisibilityStatus FlagVisibility `json:"visibility_status"`
	SourcePlanType   string         `json:"source_plan_type"`
	ExposurePolicy   ExposurePolicy `json:"exposure_policy"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Expired reports whether the flag is past its end date relative to
// now, or has been explicitly marked expired.
func (f *Flag) Expired(now time.Time) bool {
	if f.VisibilityStatus == FlagExpired {
		return true
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return f.EndDate.Before(today)
}

// FlagPatch carries the updatable flag fields for a partial update;
// nil means "leave as is". Coordinates arrive already displaced.
type FlagPatch struct {
	City             *string
	Country          *string
	DisplayLatitude  *float64
	DisplayLongitude *float64
	StartDate        *time.Time
	EndDate          *time.Time
	Note             *string
	Languages        []string
	VisibilityStatus *FlagVisibility
}

// OfferStatus is the offer state machine's state. pending is the only
// non-terminal state.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferDeclined  OfferStatus = "declined"
	OfferExpired   OfferStatus = "expired"
	OfferCancelled OfferStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this state.
func (s OfferStatus) Terminal() bool {
	return s != OfferPending
}

// Offer represents a proposal from sender to receiver tied to a flag.
type Offer struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	ReceiverID string      `json:"receiver_id"`
	FlagID     string      `json:"flag_id"`
	Message    string      `json:"message,omitempty"`
	Status     OfferStatus `json:"status"`
	SentAt     time.Time   `json:"sent_at"`
	RespondBy  *time.Time  `json:"respond_by,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// MatchStatus tracks what happened after two users matched.
type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchCompleted MatchStatus = "completed"
	MatchNoShow    MatchStatus = "no_show"
	MatchCancelled MatchStatus = "cancelled"
)

// Match links the two participants of an accepted offer. At most one
// match exists per offer (unique constraint on OfferID).
type Match struct {
	ID        string      `json:"id"`
	OfferID   string      `json:"offer_id"`
	UserAID   string      `json:"user_a_id"`
	UserBID   string      `json:"user_b_id"`
	FlagID    string      `json:"flag_id"`
	Status    MatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NotificationType identifies the event a notification reports.
type NotificationType string

const (
	NotifyOfferReceived  NotificationType = "offer_received"
	NotifyOfferAccepted  NotificationType = "offer_accepted"
	NotifyOfferDeclined  NotificationType = "offer_declined"
	NotifyOfferCancelled NotificationType = "offer_cancelled"
)

// Notification is a write-only event record for a recipient.
type Notification struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipient_id"`
	SenderID      string           `json:"sender_id"`
	Type          NotificationType `json:"type"`
	ReferenceID   string           `json:"reference_id"`
	ReferenceType string           `json:"reference_type"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
}
