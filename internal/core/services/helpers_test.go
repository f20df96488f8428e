package services

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v4"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

type fixture struct {
	store    *memStore
	cache    *memCache
	pub      *recordingPublisher
	graph    *fakeGraph
	profiles *ProfileService
	follows  *FollowService
	stats    *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fastRetries(t)

	f := &fixture{
		store: newMemStore(),
		cache: newMemCache(),
		pub:   &recordingPublisher{},
		graph: newFakeGraph(),
	}
	f.profiles = NewProfileService(f.store, f.store, f.store, f.cache, f.pub)
	f.follows = NewFollowService(f.store, f.store, f.graph, f.pub)
	f.stats = NewStatsService(f.store, f.pub)
	return f
}

func (f *fixture) mustCreate(t *testing.T, owner, username string, links ...domain.LinkInput) *domain.Profile {
	t.Helper()
	p, err := f.profiles.CreateProfile(context.Background(), ports.CreateProfileCmd{
		OwnerID:  owner,
		Username: username,
		Name:     username,
		Links:    links,
	})
	if err != nil {
		t.Fatalf("CreateProfile(%s): %v", username, err)
	}
	return p
}

func (f *fixture) mustStats(t *testing.T, profileID string) domain.ProfileStats {
	t.Helper()
	s, err := f.stats.GetStats(context.Background(), profileID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	return s
}

// fastRetries supprime les délais de backoff le temps du test
func fastRetries(t *testing.T) {
	t.Helper()
	prev := newReadBackOff
	newReadBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newReadBackOff = prev })
}
