package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

const (
	defaultSuggestions = 10
	maxSuggestions     = 50

	rebuildBatchSize = 500
)

var (
	_ ports.FollowService     = (*FollowService)(nil)
	_ ports.ProjectionService = (*FollowService)(nil)
)

type FollowService struct {
	repo     ports.FollowRepository
	profiles ports.ProfileRepository
	graph    ports.GraphProjection
	broker   ports.EventPublisher
}

func NewFollowService(
	repo ports.FollowRepository,
	profiles ports.ProfileRepository,
	graph ports.GraphProjection,
	broker ports.EventPublisher,
) *FollowService {
	if graph == nil {
		graph = nopGraph{}
	}
	if broker == nil {
		broker = nopPublisher{}
	}
	return &FollowService{
		repo:     repo,
		profiles: profiles,
		graph:    graph,
		broker:   broker,
	}
}

func (s *FollowService) Follow(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	if err := domain.ValidateFollow(followerID, followingID); err != nil {
		return nil, err
	}

	// L'arête et les deux compteurs sont écrits dans la même transaction.
	// Un doublon remonte en ErrAlreadyFollowing via la contrainte UNIQUE.
	edge, err := s.repo.CreateFollow(ctx, followerID, followingID)
	if err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}

	if err := s.broker.PublishFollowCreated(ctx, edge); err != nil {
		slog.Warn("Failed to publish follow.created", "follower_id", followerID, "following_id", followingID, "error", err)
	}
	return edge, nil
}

// Unfollow est un no-op si l'arête n'existe pas
func (s *FollowService) Unfollow(ctx context.Context, followerID, followingID string) error {
	if err := domain.ValidateFollow(followerID, followingID); err != nil {
		if errors.Is(err, domain.ErrSelfFollow) {
			return nil
		}
		return err
	}

	removed, err := s.repo.DeleteFollow(ctx, followerID, followingID)
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	if !removed {
		return nil
	}

	if err := s.broker.PublishFollowRemoved(ctx, followerID, followingID); err != nil {
		slog.Warn("Failed to publish follow.removed", "follower_id", followerID, "following_id", followingID, "error", err)
	}
	return nil
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := domain.ValidateID("follower_id", followerID); err != nil {
		return false, err
	}
	if err := domain.ValidateID("following_id", followingID); err != nil {
		return false, err
	}
	return readWithRetry(ctx, func() (bool, error) {
		return s.repo.Exists(ctx, followerID, followingID)
	})
}

func (s *FollowService) GetRelation(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error) {
	following, err := s.IsFollowing(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	followedBy, err := s.IsFollowing(ctx, targetID, actorID)
	if err != nil {
		return nil, err
	}
	return &domain.RelationStatus{IsFollowing: following, IsFollowedBy: followedBy}, nil
}

func (s *FollowService) ListFollowers(ctx context.Context, profileID string) ([]domain.FollowEntry, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, func() ([]domain.FollowEntry, error) {
		return s.repo.ListFollowers(ctx, profileID)
	})
}

func (s *FollowService) ListFollowing(ctx context.Context, profileID string) ([]domain.FollowEntry, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}
	return readWithRetry(ctx, func() ([]domain.FollowEntry, error) {
		return s.repo.ListFollowing(ctx, profileID)
	})
}

// SuggestProfiles lit le classement dans la projection Neo4j puis hydrate depuis Postgres
func (s *FollowService) SuggestProfiles(ctx context.Context, profileID string, limit int) ([]domain.ProfileSummary, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	ids, err := s.graph.SuggestFollows(ctx, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("suggest follows: %w", err)
	}
	if len(ids) == 0 {
		return []domain.ProfileSummary{}, nil
	}

	return readWithRetry(ctx, func() ([]domain.ProfileSummary, error) {
		return s.profiles.GetSummaries(ctx, ids)
	})
}

// --- PROJECTION (consumer d'events) ---

// ApplyFollowCreated reporte l'arête dans le graphe si elle existe toujours dans Postgres.
// Un event rejoué après un unfollow ne doit pas ressusciter la relation.
func (s *FollowService) ApplyFollowCreated(ctx context.Context, followerID, followingID string, at time.Time) error {
	exists, err := s.IsFollowing(ctx, followerID, followingID)
	if err != nil {
		return err
	}
	if !exists {
		slog.Debug("Skipping stale follow.created", "follower_id", followerID, "following_id", followingID)
		return nil
	}
	return s.graph.ProjectFollow(ctx, followerID, followingID, at)
}

// ApplyFollowRemoved retire l'arête du graphe, sauf si un re-follow l'a recréée entre-temps
func (s *FollowService) ApplyFollowRemoved(ctx context.Context, followerID, followingID string) error {
	exists, err := s.IsFollowing(ctx, followerID, followingID)
	if err != nil {
		return err
	}
	if exists {
		slog.Debug("Skipping stale follow.removed", "follower_id", followerID, "following_id", followingID)
		return nil
	}
	return s.graph.RemoveFollow(ctx, followerID, followingID)
}

// RebuildProjection recopie toutes les arêtes existantes dans le graphe (MERGE, donc rejouable).
// Utile quand la projection est activée sur une base qui contient déjà des follows.
func (s *FollowService) RebuildProjection(ctx context.Context) (int, error) {
	projected := 0
	err := s.repo.StreamEdges(ctx, rebuildBatchSize, func(edges []domain.FollowEdge) error {
		if err := s.graph.ProjectFollows(ctx, edges); err != nil {
			return err
		}
		projected += len(edges)
		return nil
	})
	if err != nil {
		return projected, fmt.Errorf("rebuild projection: %w", err)
	}
	return projected, nil
}
