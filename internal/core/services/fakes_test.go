package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// memStore reproduit en mémoire les contraintes de la base :
// unicité lower(username), unicité user_id, FK, UNIQUE(follower, following),
// CHECK anti self-follow et compteurs mis à jour dans la même "transaction".
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	profiles map[string]*domain.Profile
	links    map[string][]domain.SocialLink
	follows  map[[2]string]domain.FollowEdge
	stats    map[string]*domain.ProfileStats
}

func newMemStore() *memStore {
	var tick int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &memStore{
		// Horloge strictement croissante pour un ordre déterministe
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Second)
		},
		profiles: map[string]*domain.Profile{},
		links:    map[string][]domain.SocialLink{},
		follows:  map[[2]string]domain.FollowEdge{},
		stats:    map[string]*domain.ProfileStats{},
	}
}

// --- ProfileRepository ---

func (m *memStore) CreateWithLinks(_ context.Context, p *domain.Profile, links []domain.SocialLink) ([]domain.SocialLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.profiles {
		if strings.EqualFold(existing.Username, p.Username) {
			return nil, domain.ErrUsernameTaken
		}
		if existing.OwnerID == p.OwnerID {
			return nil, domain.ErrProfileAlreadyExists
		}
	}

	p.ID = uuid.NewString()
	p.CreatedAt = m.now()
	stored := *p
	m.profiles[p.ID] = &stored
	m.stats[p.ID] = &domain.ProfileStats{ProfileID: p.ID}

	return m.insertLinksLocked(p.ID, links), nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Username, username) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (m *memStore) GetByOwner(_ context.Context, ownerID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.OwnerID == ownerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

// newerThan reproduit (created_at, id) > (other.created_at, other.id) côté SQL
func newerThan(p *domain.Profile, createdAt time.Time, id string) bool {
	if !p.CreatedAt.Equal(createdAt) {
		return p.CreatedAt.After(createdAt)
	}
	return p.ID > id
}

func (m *memStore) List(_ context.Context, limit int, after domain.PageCursor) ([]*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if !after.IsZero() && !newerThan(&domain.Profile{CreatedAt: after.CreatedAt, ID: after.ID}, p.CreatedAt, p.ID) {
			continue
		}
		cp := *p
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return newerThan(all[i], all[j].CreatedAt, all[j].ID) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) GetSummaries(_ context.Context, ids []string) ([]domain.ProfileSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ProfileSummary, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out = append(out, p.Summary())
		}
	}
	return out, nil
}

// --- LinkRepository ---

func (m *memStore) InsertLinks(_ context.Context, profileID string, links []domain.SocialLink) ([]domain.SocialLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[profileID]; !ok {
		return nil, domain.ErrProfileNotFound
	}
	return m.insertLinksLocked(profileID, links), nil
}

func (m *memStore) insertLinksLocked(profileID string, links []domain.SocialLink) []domain.SocialLink {
	saved := make([]domain.SocialLink, 0, len(links))
	for _, l := range links {
		l.ID = uuid.NewString()
		l.ProfileID = profileID
		l.CreatedAt = m.now()
		m.links[profileID] = append(m.links[profileID], l)
		saved = append(saved, l)
	}
	return saved
}

func (m *memStore) ListByProfile(_ context.Context, profileID string) ([]domain.SocialLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.SocialLink{}, m.links[profileID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memStore) DeleteLink(_ context.Context, profileID, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[profileID]
	for i, l := range links {
		if l.ID == linkID {
			m.links[profileID] = append(links[:i:i], links[i+1:]...)
			return nil
		}
	}
	return domain.ErrLinkNotFound
}

// --- FollowRepository ---

func (m *memStore) CreateFollow(_ context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if followerID == followingID {
		return nil, domain.ErrSelfFollow
	}
	if m.profiles[followerID] == nil || m.profiles[followingID] == nil {
		return nil, domain.ErrProfileNotFound
	}
	key := [2]string{followerID, followingID}
	if _, exists := m.follows[key]; exists {
		return nil, domain.ErrAlreadyFollowing
	}

	edge := domain.FollowEdge{ID: uuid.NewString(), FollowerID: followerID, FollowingID: followingID, CreatedAt: m.now()}
	m.follows[key] = edge
	m.statsLocked(followerID).FollowingCount++
	m.statsLocked(followingID).FollowersCount++
	return &edge, nil
}

func (m *memStore) DeleteFollow(_ context.Context, followerID, followingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{followerID, followingID}
	if _, exists := m.follows[key]; !exists {
		return false, nil
	}
	delete(m.follows, key)
	if s := m.statsLocked(followerID); s.FollowingCount > 0 {
		s.FollowingCount--
	}
	if s := m.statsLocked(followingID); s.FollowersCount > 0 {
		s.FollowersCount--
	}
	return true, nil
}

func (m *memStore) Exists(_ context.Context, followerID, followingID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.follows[[2]string{followerID, followingID}]
	return ok, nil
}

func (m *memStore) ListFollowers(_ context.Context, profileID string) ([]domain.FollowEntry, error) {
	return m.listEdges(func(e domain.FollowEdge) (bool, string) { return e.FollowingID == profileID, e.FollowerID })
}

func (m *memStore) ListFollowing(_ context.Context, profileID string) ([]domain.FollowEntry, error) {
	return m.listEdges(func(e domain.FollowEdge) (bool, string) { return e.FollowerID == profileID, e.FollowingID })
}

func (m *memStore) listEdges(match func(domain.FollowEdge) (bool, string)) ([]domain.FollowEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.FollowEntry{}
	for _, e := range m.follows {
		ok, other := match(e)
		if !ok {
			continue
		}
		out = append(out, domain.FollowEntry{Profile: m.profiles[other].Summary(), FollowedAt: e.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FollowedAt.After(out[j].FollowedAt) })
	return out, nil
}

func (m *memStore) StreamEdges(_ context.Context, batchSize int, yield func([]domain.FollowEdge) error) error {
	m.mu.Lock()
	all := make([]domain.FollowEdge, 0, len(m.follows))
	for _, e := range m.follows {
		all = append(all, e)
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	for start := 0; start < len(all); start += batchSize {
		end := min(start+batchSize, len(all))
		if err := yield(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// --- StatsRepository ---

func (m *memStore) statsLocked(profileID string) *domain.ProfileStats {
	s, ok := m.stats[profileID]
	if !ok {
		s = &domain.ProfileStats{ProfileID: profileID}
		m.stats[profileID] = s
	}
	return s
}

func (m *memStore) IncrementViews(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles[profileID] == nil {
		return domain.ErrProfileNotFound
	}
	s := m.statsLocked(profileID)
	s.ViewsCount++
	now := m.now()
	s.LastViewed = &now
	return nil
}

func (m *memStore) GetStats(_ context.Context, profileID string) (*domain.ProfileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[profileID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Reconcile(_ context.Context, profileID string) (domain.ProfileStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profiles[profileID] == nil {
		return domain.ProfileStats{}, domain.ErrProfileNotFound
	}
	s := m.statsLocked(profileID)
	s.FollowersCount, s.FollowingCount = 0, 0
	for _, e := range m.follows {
		if e.FollowingID == profileID {
			s.FollowersCount++
		}
		if e.FollowerID == profileID {
			s.FollowingCount++
		}
	}
	return *s, nil
}

// edgeCounts compte les arêtes réelles (vérité) pour un profil
func (m *memStore) edgeCounts(profileID string) (followers, following int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.follows {
		if e.FollowingID == profileID {
			followers++
		}
		if e.FollowerID == profileID {
			following++
		}
	}
	return followers, following
}

// corruptCounters simule une dérive des compteurs dénormalisés
func (m *memStore) corruptCounters(profileID string, followers, following int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.statsLocked(profileID)
	s.FollowersCount, s.FollowingCount = followers, following
}

// --- Fakes d'infrastructure ---

type memCache struct {
	mu     sync.Mutex
	items  map[string]domain.Profile
	getErr error
	gets   int
}

func newMemCache() *memCache { return &memCache{items: map[string]domain.Profile{}} }

func (c *memCache) Get(_ context.Context, username string) (*domain.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.items[domain.NormalizeUsername(username)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memCache) Set(_ context.Context, p *domain.Profile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[domain.NormalizeUsername(p.Username)] = *p
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingPublisher) record(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
	return r.err
}

func (r *recordingPublisher) PublishProfileCreated(context.Context, *domain.Profile) error {
	return r.record("profile.created")
}

func (r *recordingPublisher) PublishFollowCreated(context.Context, *domain.FollowEdge) error {
	return r.record("profile.follow.created")
}

func (r *recordingPublisher) PublishFollowRemoved(context.Context, string, string) error {
	return r.record("profile.follow.removed")
}

func (r *recordingPublisher) PublishProfileViewed(context.Context, string) error {
	return r.record("profile.viewed")
}

func (r *recordingPublisher) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == name {
			n++
		}
	}
	return n
}

type fakeGraph struct {
	mu          sync.Mutex
	edges       map[[2]string]bool
	suggestions []string
	lastLimit   int
	batches     int
}

func newFakeGraph() *fakeGraph { return &fakeGraph{edges: map[[2]string]bool{}} }

func (g *fakeGraph) ProjectFollow(_ context.Context, f, t string, _ time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[[2]string{f, t}] = true
	return nil
}

func (g *fakeGraph) ProjectFollows(_ context.Context, edges []domain.FollowEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.batches++
	for _, e := range edges {
		g.edges[[2]string{e.FollowerID, e.FollowingID}] = true
	}
	return nil
}

func (g *fakeGraph) RemoveFollow(_ context.Context, f, t string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, [2]string{f, t})
	return nil
}

func (g *fakeGraph) SuggestFollows(_ context.Context, _ string, limit int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastLimit = limit
	return g.suggestions, nil
}

// flakyProfiles échoue n fois en transitoire sur GetByUsername avant de déléguer
type flakyProfiles struct {
	*memStore
	mu       sync.Mutex
	failures int
	calls    int
	err      error
}

func (f *flakyProfiles) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		if f.err != nil {
			return nil, f.err
		}
		return nil, errors.Join(domain.ErrTransient, errors.New("connection reset"))
	}
	return f.memStore.GetByUsername(ctx, username)
}

type fakeUploader struct {
	calls int
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, up domain.Upload) (*domain.MediaAsset, error) {
	u.calls++
	if u.err != nil {
		return nil, u.err
	}
	return &domain.MediaAsset{PublicID: "avatars/" + up.Filename, URL: "https://cdn.example/" + up.Filename, Format: "png"}, nil
}

func (u *fakeUploader) OptimizedURL(publicID string, opts domain.ImageOptions) string {
	return "https://cdn.example/opt/" + publicID
}
