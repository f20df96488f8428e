package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type CreateProfileCmd struct {
	OwnerID        string // Fourni par le middleware d'auth, jamais par le client
	Username       string
	Name           string
	Description    string
	Bio            string
	Location       string
	Website        string
	ProfilePicture string
	Links          []domain.LinkInput
}

type ListProfilesQuery struct {
	Limit  int    // <= 0 : pas de pagination
	Cursor string // Token opaque renvoyé par la page précédente
}

// --- PORTS PRIMAIRES (Driving) ---

type ProfileService interface {
	CreateProfile(ctx context.Context, cmd CreateProfileCmd) (*domain.Profile, error)
	GetProfile(ctx context.Context, profileID string) (*domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error)
	GetProfileByOwner(ctx context.Context, ownerID string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, q ListProfilesQuery) ([]*domain.Profile, string, error)

	// GetPublicProfile assemble la page publique et compte une vue
	GetPublicProfile(ctx context.Context, username string) (*domain.PublicProfile, error)

	// Liens sociaux
	AttachLinks(ctx context.Context, profileID string, links []domain.LinkInput) ([]domain.SocialLink, error)
	ListLinks(ctx context.Context, profileID string) ([]domain.SocialLink, error)
	DeleteLink(ctx context.Context, profileID, linkID string) error
}

type FollowService interface {
	Follow(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error)
	Unfollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	GetRelation(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error)

	ListFollowers(ctx context.Context, profileID string) ([]domain.FollowEntry, error)
	ListFollowing(ctx context.Context, profileID string) ([]domain.FollowEntry, error)

	// SuggestProfiles propose des profils à suivre (amis d'amis)
	SuggestProfiles(ctx context.Context, profileID string, limit int) ([]domain.ProfileSummary, error)
}

type StatsService interface {
	RecordView(ctx context.Context, profileID string) error
	GetStats(ctx context.Context, profileID string) (domain.ProfileStats, error)
	ReconcileStats(ctx context.Context, profileID string) (domain.ProfileStats, error)
}

type MediaService interface {
	UploadAvatar(ctx context.Context, ownerID string, upload domain.Upload) (*domain.MediaAsset, error)
	OptimizedURL(publicID string, opts domain.ImageOptions) string
}

// ProjectionService applique les events de follow à la projection de graphe (consumer NATS)
type ProjectionService interface {
	ApplyFollowCreated(ctx context.Context, followerID, followingID string, at time.Time) error
	ApplyFollowRemoved(ctx context.Context, followerID, followingID string) error

	// RebuildProjection recopie toutes les arêtes de Postgres vers le graphe, renvoie le nombre projeté
	RebuildProjection(ctx context.Context) (int, error)
}
