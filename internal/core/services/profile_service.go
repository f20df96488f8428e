package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var _ ports.ProfileService = (*ProfileService)(nil)

// ProfileService implémente ports.ProfileService (Primary Port)
type ProfileService struct {
	repo   ports.ProfileRepository
	links  ports.LinkRepository
	stats  ports.StatsRepository
	cache  ports.ProfileCache
	broker ports.EventPublisher
}

// NewProfileService est le constructeur avec injection de dépendances.
// cache et broker peuvent être nil (infra désactivée).
func NewProfileService(
	repo ports.ProfileRepository,
	links ports.LinkRepository,
	stats ports.StatsRepository,
	cache ports.ProfileCache,
	broker ports.EventPublisher,
) *ProfileService {
	if cache == nil {
		cache = nopCache{}
	}
	if broker == nil {
		broker = nopPublisher{}
	}
	return &ProfileService{
		repo:   repo,
		links:  links,
		stats:  stats,
		cache:  cache,
		broker: broker,
	}
}

// --- CRÉATION ---

func (s *ProfileService) CreateProfile(ctx context.Context, cmd ports.CreateProfileCmd) (*domain.Profile, error) {
	// 1. Domaine : validation des invariants (avant toute écriture)
	profile, err := domain.NewProfile(cmd.OwnerID, cmd.Username, cmd.Name)
	if err != nil {
		return nil, err
	}
	if err := profile.SetDetails(cmd.Description, cmd.Bio, cmd.Location, cmd.Website, cmd.ProfilePicture); err != nil {
		return nil, err
	}

	// 2. Liens : filtrage silencieux des entrées incomplètes
	links := domain.BuildLinks("", cmd.Links)

	// 3. Persistance atomique : profil + stats + liens.
	// L'unicité du username est garantie par l'index unique, pas par une lecture préalable.
	if _, err := s.repo.CreateWithLinks(ctx, profile, links); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	// 4. Side effects (best effort)
	if err := s.cache.Set(ctx, profile); err != nil {
		slog.Warn("Profile cache write failed", "profile_id", profile.ID, "error", err)
	}
	if err := s.broker.PublishProfileCreated(ctx, profile); err != nil {
		slog.Warn("Failed to publish profile.created", "profile_id", profile.ID, "error", err)
	}

	return profile, nil
}

// --- LECTURE ---

func (s *ProfileService) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, func() (*domain.Profile, error) {
		return s.repo.GetByID(ctx, profileID)
	})
}

func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	key := domain.NormalizeUsername(username)
	if key == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "is required"}
	}

	// 1. Cache (un échec Redis n'empêche jamais la lecture DB)
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Profile cache read failed", "username", key, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	// 2. Source de vérité
	profile, err := readWithRetry(ctx, func() (*domain.Profile, error) {
		return s.repo.GetByUsername(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, profile); err != nil {
		slog.Warn("Profile cache write failed", "profile_id", profile.ID, "error", err)
	}
	return profile, nil
}

func (s *ProfileService) GetProfileByOwner(ctx context.Context, ownerID string) (*domain.Profile, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	return readWithRetry(ctx, func() (*domain.Profile, error) {
		return s.repo.GetByOwner(ctx, ownerID)
	})
}

// ListProfiles : du plus récent au plus ancien.
// Sans limite, on garde le comportement historique (tout renvoyer).
func (s *ProfileService) ListProfiles(ctx context.Context, q ports.ListProfilesQuery) ([]*domain.Profile, string, error) {
	var after domain.PageCursor
	if q.Cursor != "" {
		c, err := domain.DecodePageCursor(q.Cursor)
		if err != nil {
			return nil, "", err
		}
		after = c
	}

	profiles, err := readWithRetry(ctx, func() ([]*domain.Profile, error) {
		return s.repo.List(ctx, q.Limit, after)
	})
	if err != nil {
		return nil, "", err
	}

	// Le prochain token n'existe que si la page est pleine
	nextCursor := ""
	if q.Limit > 0 && len(profiles) == q.Limit {
		last := profiles[len(profiles)-1]
		nextCursor = domain.PageCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return profiles, nextCursor, nil
}

func (s *ProfileService) GetPublicProfile(ctx context.Context, username string) (*domain.PublicProfile, error) {
	profile, err := s.GetProfileByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	links, err := s.ListLinks(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	// La vue est comptée avant de lire les stats pour que la page l'affiche.
	// Un échec ici ne doit pas empêcher d'afficher le profil.
	if err := s.stats.IncrementViews(ctx, profile.ID); err != nil {
		slog.Warn("Failed to record profile view", "profile_id", profile.ID, "error", err)
	} else if err := s.broker.PublishProfileViewed(ctx, profile.ID); err != nil {
		slog.Debug("Failed to publish profile.viewed", "profile_id", profile.ID, "error", err)
	}

	stats := domain.ZeroStats(profile.ID)
	current, err := readWithRetry(ctx, func() (*domain.ProfileStats, error) {
		return s.stats.GetStats(ctx, profile.ID)
	})
	if err != nil {
		slog.Warn("Failed to load profile stats", "profile_id", profile.ID, "error", err)
	} else if current != nil {
		stats = *current
	}

	return &domain.PublicProfile{
		Profile: profile,
		Links:   links,
		Stats:   stats,
	}, nil
}

// --- LIENS SOCIAUX ---

func (s *ProfileService) AttachLinks(ctx context.Context, profileID string, inputs []domain.LinkInput) ([]domain.SocialLink, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}

	links := domain.BuildLinks(profileID, inputs)
	if len(links) == 0 {
		return []domain.SocialLink{}, nil
	}

	saved, err := s.links.InsertLinks(ctx, profileID, links)
	if err != nil {
		return nil, fmt.Errorf("attach links: %w", err)
	}
	return saved, nil
}

func (s *ProfileService) ListLinks(ctx context.Context, profileID string) ([]domain.SocialLink, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, func() ([]domain.SocialLink, error) {
		return s.links.ListByProfile(ctx, profileID)
	})
}

func (s *ProfileService) DeleteLink(ctx context.Context, profileID, linkID string) error {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return err
	}
	if err := domain.ValidateID("link_id", linkID); err != nil {
		return err
	}
	return s.links.DeleteLink(ctx, profileID, linkID)
}
