package notify_test

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/tripledger/internal/domain/models"
)

var errNotFound = errors.New("not found")

type fakeTrips map[string]models.Trip

func (f fakeTrips) GetByID(ctx context.Context, id string) (models.Trip, error) {
	t, ok := f[id]
	if !ok {
		return models.Trip{}, errNotFound
	}
	return t, nil
}

type fakeMembers map[string][]models.TripMember

func (f fakeMembers) ListByTrip(ctx context.Context, tripID string) ([]models.TripMember, error) {
	return f[tripID], nil
}

type fakeUsers map[string]models.User

func (f fakeUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, errNotFound
	}
	return u, nil
}

// fakeSink mimics the unique dedup index and can fail chosen recipients.
type fakeSink struct {
	mu     sync.Mutex
	byKey  map[string]models.Notification
	failOn map[string]bool
}

func newSink() *fakeSink {
	return &fakeSink{byKey: map[string]models.Notification{}, failOn: map[string]bool{}}
}

func (s *fakeSink) Insert(ctx context.Context, n models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[n.UserID] {
		return false, errors.New("write failed")
	}
	if _, dup := s.byKey[n.DedupKey]; dup {
		return false, nil
	}
	s.byKey[n.DedupKey] = n
	return true, nil
}

func (s *fakeSink) all() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.byKey))
	for _, n := range s.byKey {
		out = append(out, n)
	}
	return out
}

func (s *fakeSink) recipients() map[string]models.Notification {
	out := map[string]models.Notification{}
	for _, n := range s.all() {
		out[n.UserID] = n
	}
	return out
}

func member(tripID, userID, name, role string) models.TripMember {
	return models.TripMember{
		ID:          models.MemberKey(tripID, userID),
		TripID:      tripID,
		UserID:      userID,
		DisplayName: name,
		Email:       userID + "@example.com",
		Role:        role,
	}
}
