package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

const statsColumns = `profile_id, views_count, followers_count, following_count, last_viewed`

// IncrementViews : un seul UPSERT atomique, aucune lecture côté application
func (r *PostgresRepo) IncrementViews(ctx context.Context, profileID string) error {
	q := `
		INSERT INTO profile_stats (profile_id, views_count, last_viewed)
		VALUES ($1, 1, now())
		ON CONFLICT (profile_id) DO UPDATE
		SET views_count = profile_stats.views_count + 1,
		    last_viewed = EXCLUDED.last_viewed
	`
	if _, err := r.db.Exec(ctx, q, profileID); err != nil {
		return r.handleError("increment views", err)
	}
	return nil
}

// GetStats renvoie (nil, nil) si la ligne n'existe pas encore
func (r *PostgresRepo) GetStats(ctx context.Context, profileID string) (*domain.ProfileStats, error) {
	q := `SELECT ` + statsColumns + ` FROM profile_stats WHERE profile_id = $1`

	stats, err := scanStats(r.db.QueryRow(ctx, q, profileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.handleError("get stats", err)
	}
	return stats, nil
}

// Reconcile réaligne le cache dénormalisé sur la table follows (source de vérité)
func (r *PostgresRepo) Reconcile(ctx context.Context, profileID string) (domain.ProfileStats, error) {
	q := `
		INSERT INTO profile_stats (profile_id, followers_count, following_count)
		SELECT p.id,
		       (SELECT count(*) FROM follows WHERE following_id = p.id),
		       (SELECT count(*) FROM follows WHERE follower_id = p.id)
		FROM profiles p
		WHERE p.id = $1
		ON CONFLICT (profile_id) DO UPDATE
		SET followers_count = EXCLUDED.followers_count,
		    following_count = EXCLUDED.following_count
		RETURNING ` + statsColumns

	stats, err := scanStats(r.db.QueryRow(ctx, q, profileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProfileStats{}, domain.ErrProfileNotFound
		}
		return domain.ProfileStats{}, r.handleError("reconcile stats", err)
	}
	return *stats, nil
}

func scanStats(row pgx.Row) (*domain.ProfileStats, error) {
	var s domain.ProfileStats
	if err := row.Scan(&s.ProfileID, &s.ViewsCount, &s.FollowersCount, &s.FollowingCount, &s.LastViewed); err != nil {
		return nil, err
	}
	if s.LastViewed != nil {
		t := s.LastViewed.UTC()
		s.LastViewed = &t
	}
	return &s, nil
}
