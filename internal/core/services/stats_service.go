package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var _ ports.StatsService = (*StatsService)(nil)

type StatsService struct {
	repo   ports.StatsRepository
	broker ports.EventPublisher
}

func NewStatsService(repo ports.StatsRepository, broker ports.EventPublisher) *StatsService {
	if broker == nil {
		broker = nopPublisher{}
	}
	return &StatsService{repo: repo, broker: broker}
}

// RecordView : incrément atomique côté base (jamais de read-modify-write ici)
func (s *StatsService) RecordView(ctx context.Context, profileID string) error {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return err
	}
	if err := s.repo.IncrementViews(ctx, profileID); err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	if err := s.broker.PublishProfileViewed(ctx, profileID); err != nil {
		slog.Debug("Failed to publish profile.viewed", "profile_id", profileID, "error", err)
	}
	return nil
}

// GetStats ne renvoie jamais d'erreur pour une ligne absente : compteurs à zéro
func (s *StatsService) GetStats(ctx context.Context, profileID string) (domain.ProfileStats, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return domain.ProfileStats{}, err
	}

	stats, err := readWithRetry(ctx, func() (*domain.ProfileStats, error) {
		return s.repo.GetStats(ctx, profileID)
	})
	if err != nil {
		return domain.ProfileStats{}, err
	}
	if stats == nil {
		return domain.ZeroStats(profileID), nil
	}
	return *stats, nil
}

// ReconcileStats recalcule followers/following depuis la table follows
func (s *StatsService) ReconcileStats(ctx context.Context, profileID string) (domain.ProfileStats, error) {
	if err := domain.ValidateID("profile_id", profileID); err != nil {
		return domain.ProfileStats{}, err
	}
	stats, err := s.repo.Reconcile(ctx, profileID)
	if err != nil {
		return domain.ProfileStats{}, fmt.Errorf("reconcile stats: %w", err)
	}
	slog.Info("Profile stats reconciled", "profile_id", profileID,
		"followers", stats.FollowersCount, "following", stats.FollowingCount)
	return stats, nil
}
