package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// --- PERSISTANCE (DB) ---

type ProfileRepository interface {
	// CreateWithLinks insère le profil, sa ligne de stats et ses liens dans une seule transaction.
	// Remplit p.ID et p.CreatedAt.
	CreateWithLinks(ctx context.Context, p *domain.Profile, links []domain.SocialLink) ([]domain.SocialLink, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	GetByOwner(ctx context.Context, ownerID string) (*domain.Profile, error)

	// List : pagination keyset sur (created_at, id), curseur zéro = première page, limit <= 0 = tout
	List(ctx context.Context, limit int, after domain.PageCursor) ([]*domain.Profile, error)

	// GetSummaries hydrate une liste d'IDs en conservant l'ordre demandé
	GetSummaries(ctx context.Context, ids []string) ([]domain.ProfileSummary, error)
}

type LinkRepository interface {
	InsertLinks(ctx context.Context, profileID string, links []domain.SocialLink) ([]domain.SocialLink, error)
	ListByProfile(ctx context.Context, profileID string) ([]domain.SocialLink, error)
	DeleteLink(ctx context.Context, profileID, linkID string) error
}

type FollowRepository interface {
	// CreateFollow crée l'arête ET met à jour les deux compteurs (tout ou rien)
	CreateFollow(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error)
	// DeleteFollow renvoie false si aucune arête n'existait
	DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error)
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowers(ctx context.Context, profileID string) ([]domain.FollowEntry, error)
	ListFollowing(ctx context.Context, profileID string) ([]domain.FollowEntry, error)

	// StreamEdges livre toutes les arêtes par lots (reconstruction de la projection)
	StreamEdges(ctx context.Context, batchSize int, yield func([]domain.FollowEdge) error) error
}

type StatsRepository interface {
	IncrementViews(ctx context.Context, profileID string) error
	GetStats(ctx context.Context, profileID string) (*domain.ProfileStats, error) // nil, nil si absent
	Reconcile(ctx context.Context, profileID string) (domain.ProfileStats, error)
}

// --- CACHE ---

// ProfileCache : lecture rapide des pages publiques.
// Get renvoie (nil, nil) sur un miss.
type ProfileCache interface {
	Get(ctx context.Context, username string) (*domain.Profile, error)
	Set(ctx context.Context, p *domain.Profile) error
}

// --- MESSAGERIE (BROKER) ---

type EventPublisher interface {
	PublishProfileCreated(ctx context.Context, p *domain.Profile) error
	PublishFollowCreated(ctx context.Context, edge *domain.FollowEdge) error
	PublishFollowRemoved(ctx context.Context, followerID, followingID string) error
	PublishProfileViewed(ctx context.Context, profileID string) error
}

// --- GRAPHE (Projection Neo4j) ---

type GraphProjection interface {
	ProjectFollow(ctx context.Context, followerID, followingID string, at time.Time) error
	ProjectFollows(ctx context.Context, edges []domain.FollowEdge) error
	RemoveFollow(ctx context.Context, followerID, followingID string) error
	SuggestFollows(ctx context.Context, profileID string, limit int) ([]string, error)
}

// --- COLLABORATEURS EXTERNES ---

// MediaUploader abstrait le CDN d'images (Cloudinary)
type MediaUploader interface {
	Upload(ctx context.Context, upload domain.Upload) (*domain.MediaAsset, error)
	OptimizedURL(publicID string, opts domain.ImageOptions) string
}

// SessionVerifier abstrait l'Auth Provider : token -> identité opaque
type SessionVerifier interface {
	Verify(token string) (ownerID string, err error)
}
