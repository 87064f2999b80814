package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"cosnap-backend/internal/models"
	"cosnap-backend/internal/plan"
	"cosnap-backend/internal/repository"
)

// In-memory fakes for the store interfaces. They hold the same
// invariants the SQL schema enforces (conditional status update, one
// match per offer, quota re-check under lock) so the race tests mean
// something.

type fakeFlagStore struct {
	mu    sync.Mutex
	flags map[string]*models.Flag
	nowFn func() time.Time
}

func newFakeFlagStore() *fakeFlagStore {
	return &fakeFlagStore{
		flags: make(map[string]*models.Flag),
		nowFn: time.Now,
	}
}

func (s *fakeFlagStore) countActiveLocked(ownerID string) int {
	count := 0
	for _, f := range s.flags {
		if f.OwnerID == ownerID && f.VisibilityStatus == models.FlagActive && !f.Expired(s.nowFn()) {
			count++
		}
	}
	return count
}

func (s *fakeFlagStore) CountActive(ctx context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(ownerID), nil
}

func (s *fakeFlagStore) Insert(ctx context.Context, flag *models.Flag, quota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countActiveLocked(flag.OwnerID) >= quota {
		return repository.ErrQuotaExceeded
	}
	cp := *flag
	s.flags[flag.ID] = &cp
	return nil
}

func (s *fakeFlagStore) GetOwned(ctx context.Context, id, ownerID string) (*models.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[id]
	if !ok || f.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *fakeFlagStore) UpdateOwned(ctx context.Context, id, ownerID string, patch models.FlagPatch) (*models.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[id]
	if !ok || f.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	if patch.City != nil {
		f.City = *patch.City
	}
	if patch.Country != nil {
		f.Country = *patch.Country
	}
	if patch.DisplayLatitude != nil {
		f.DisplayLatitude = *patch.DisplayLatitude
	}
	if patch.DisplayLongitude != nil {
		f.DisplayLongitude = *patch.DisplayLongitude
	}
	if patch.StartDate != nil {
		f.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		f.EndDate = *patch.EndDate
	}
	if patch.Note != nil {
		f.Note = *patch.Note
	}
	if patch.Languages != nil {
		f.Languages = patch.Languages
	}
	if patch.VisibilityStatus != nil {
		f.VisibilityStatus = *patch.VisibilityStatus
	}
	f.UpdatedAt = s.nowFn()
	cp := *f
	return &cp, nil
}

func (s *fakeFlagStore) DeleteOwned(ctx context.Context, id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flags[id]
	if !ok || f.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(s.flags, id)
	return nil
}

func (s *fakeFlagStore) ListVisible(ctx context.Context, limit int) ([]models.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Flag
	for _, f := range s.flags {
		if f.VisibilityStatus == models.FlagActive && !f.Expired(s.nowFn()) {
			out = append(out, *f)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeOfferStore struct {
	mu     sync.Mutex
	offers map[string]*models.Offer
}

func newFakeOfferStore() *fakeOfferStore {
	return &fakeOfferStore{offers: make(map[string]*models.Offer)}
}

func (s *fakeOfferStore) Insert(ctx context.Context, offer *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *offer
	s.offers[offer.ID] = &cp
	return nil
}

func (s *fakeOfferStore) GetForReceiver(ctx context.Context, id, receiverID string) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok || o.ReceiverID != receiverID {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOfferStore) GetForSender(ctx context.Context, id, senderID string) (*models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok || o.SenderID != senderID {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// TransitionIfStatus is atomic under the mutex, mirroring the
// conditional UPDATE the SQL store runs.
func (s *fakeOfferStore) TransitionIfStatus(ctx context.Context, id string, from, to models.OfferStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (s *fakeOfferStore) status(id string) models.OfferStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offers[id].Status
}

type fakeMatchStore struct {
	mu      sync.Mutex
	byOffer map[string]*models.Match
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{byOffer: make(map[string]*models.Match)}
}

func (s *fakeMatchStore) InsertIfAbsent(ctx context.Context, offerID, userAID, userBID, flagID string) (*models.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byOffer[offerID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	now := time.Now()
	m := &models.Match{
		ID:        uuid.New().String(),
		OfferID:   offerID,
		UserAID:   userAID,
		UserBID:   userBID,
		FlagID:    flagID,
		Status:    models.MatchScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byOffer[offerID] = m
	cp := *m
	return &cp, true, nil
}

func (s *fakeMatchStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOffer)
}

type fakeConversationStore struct {
	mu    sync.Mutex
	convs map[string]string
	fail  bool
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{convs: make(map[string]string)}
}

func (s *fakeConversationStore) FindOrCreate(ctx context.Context, userAID, userBID, offerID, flagID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("conversation store down")
	}
	if userAID > userBID {
		userAID, userBID = userBID, userAID
	}
	key := userAID + "|" + userBID + "|" + offerID
	if id, ok := s.convs[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	s.convs[key] = id
	return id, nil
}

type fakeProfileStore struct {
	mu    sync.Mutex
	tiers map[string]plan.Tier
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{tiers: make(map[string]plan.Tier)}
}

func (s *fakeProfileStore) add(id string, tier plan.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[id] = tier
}

func (s *fakeProfileStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tiers[id]
	return ok, nil
}

func (s *fakeProfileStore) GetTier(ctx context.Context, id string) (plan.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tier, ok := s.tiers[id]
	if !ok {
		return plan.TierFree, repository.ErrNotFound
	}
	return tier, nil
}

type notifierEvent struct {
	recipientID string
	senderID    string
	typ         models.NotificationType
	referenceID string
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
	fail   bool
}

func (s *fakeNotifier) Emit(ctx context.Context, recipientID, senderID string, typ models.NotificationType, referenceID, referenceType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("notification sink down")
	}
	s.events = append(s.events, notifierEvent{
		recipientID: recipientID,
		senderID:    senderID,
		typ:         typ,
		referenceID: referenceID,
	})
	return nil
}

func (s *fakeNotifier) ofType(typ models.NotificationType) []notifierEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notifierEvent
	for _, e := range s.events {
		if e.typ == typ {
			out = append(out, e)
		}
	}
	return out
}
