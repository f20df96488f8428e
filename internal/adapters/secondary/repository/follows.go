package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// CreateFollow : l'arête et les deux compteurs dans la même transaction.
// Pas de vérification préalable : la contrainte follows_pair_key refuse le doublon.
func (r *PostgresRepo) CreateFollow(ctx context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	edge := &domain.FollowEdge{FollowerID: followerID, FollowingID: followingID}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		q := `
			INSERT INTO follows (follower_id, following_id)
			VALUES ($1, $2)
			RETURNING id, created_at
		`
		if err := tx.QueryRow(ctx, q, followerID, followingID).Scan(&edge.ID, &edge.CreatedAt); err != nil {
			return r.handleError("insert follow", err)
		}
		edge.CreatedAt = edge.CreatedAt.UTC()

		return r.onFollowCreated(ctx, tx, followerID, followingID)
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// DeleteFollow supprime exactement l'arête (follower, following) et décrémente les compteurs
func (r *PostgresRepo) DeleteFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	removed := false

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var id string
		q := `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2 RETURNING id`
		if err := tx.QueryRow(ctx, q, followerID, followingID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil // Rien à défaire : pas une erreur
			}
			return r.handleError("delete follow", err)
		}
		removed = true

		return r.onFollowRemoved(ctx, tx, followerID, followingID)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Exists : l'absence de ligne est un résultat négatif normal, pas une erreur
func (r *PostgresRepo) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	var one int
	q := `SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2`
	if err := r.db.QueryRow(ctx, q, followerID, followingID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, r.handleError("check follow", err)
	}
	return true, nil
}

func (r *PostgresRepo) ListFollowers(ctx context.Context, profileID string) ([]domain.FollowEntry, error) {
	q := `
		SELECT p.id, p.username, p.name, p.profile_picture, f.created_at
		FROM follows f
		JOIN profiles p ON p.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.created_at DESC, f.id DESC
	`
	return r.listEdges(ctx, "list followers", q, profileID)
}

func (r *PostgresRepo) ListFollowing(ctx context.Context, profileID string) ([]domain.FollowEntry, error) {
	q := `
		SELECT p.id, p.username, p.name, p.profile_picture, f.created_at
		FROM follows f
		JOIN profiles p ON p.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC, f.id DESC
	`
	return r.listEdges(ctx, "list following", q, profileID)
}

func (r *PostgresRepo) listEdges(ctx context.Context, op, q, profileID string) ([]domain.FollowEntry, error) {
	rows, err := r.db.Query(ctx, q, profileID)
	if err != nil {
		return nil, r.handleError(op, err)
	}
	defer rows.Close()

	entries := []domain.FollowEntry{}
	for rows.Next() {
		var e domain.FollowEntry
		if err := rows.Scan(&e.Profile.ID, &e.Profile.Username, &e.Profile.Name, &e.Profile.ProfilePicture, &e.FollowedAt); err != nil {
			return nil, r.handleError(op, err)
		}
		e.FollowedAt = e.FollowedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleError(op, err)
	}
	return entries, nil
}

// --- Compteurs (appelés uniquement à l'intérieur d'une transaction de follow) ---

type counterDelta struct {
	profileID string
	column    string // "followers_count" ou "following_count"
}

// orderedDeltas trie les deux mises à jour par profile_id : deux follows croisés
// (A->B et B->A) verrouillent toujours les lignes dans le même ordre.
func orderedDeltas(followerID, followingID string) [2]counterDelta {
	following := counterDelta{profileID: followingID, column: "followers_count"}
	follower := counterDelta{profileID: followerID, column: "following_count"}
	if followerID < followingID {
		return [2]counterDelta{follower, following}
	}
	return [2]counterDelta{following, follower}
}

func (r *PostgresRepo) onFollowCreated(ctx context.Context, tx pgx.Tx, followerID, followingID string) error {
	for _, d := range orderedDeltas(followerID, followingID) {
		// column vient d'une constante interne, jamais de l'utilisateur
		q := `
			INSERT INTO profile_stats (profile_id, ` + d.column + `)
			VALUES ($1, 1)
			ON CONFLICT (profile_id) DO UPDATE SET ` + d.column + ` = profile_stats.` + d.column + ` + 1
		`
		if _, err := tx.Exec(ctx, q, d.profileID); err != nil {
			return r.handleError("increment "+d.column, err)
		}
	}
	return nil
}

func (r *PostgresRepo) onFollowRemoved(ctx context.Context, tx pgx.Tx, followerID, followingID string) error {
	for _, d := range orderedDeltas(followerID, followingID) {
		q := `UPDATE profile_stats SET ` + d.column + ` = GREATEST(` + d.column + ` - 1, 0) WHERE profile_id = $1`
		if _, err := tx.Exec(ctx, q, d.profileID); err != nil {
			return r.handleError("decrement "+d.column, err)
		}
	}
	return nil
}

// StreamEdges parcourt toutes les arêtes par lots (keyset sur id) pour reconstruire une projection.
// Chaque lot est une requête courte : pas de curseur serveur tenu pendant l'écriture côté graphe.
func (r *PostgresRepo) StreamEdges(ctx context.Context, batchSize int, yield func([]domain.FollowEdge) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	lastID := "00000000-0000-0000-0000-000000000000"

	for {
		q := `
			SELECT id, follower_id, following_id, created_at
			FROM follows
			WHERE id > $1
			ORDER BY id
			LIMIT $2
		`
		rows, err := r.db.Query(ctx, q, lastID, batchSize)
		if err != nil {
			return r.handleError("stream follows", err)
		}

		batch := make([]domain.FollowEdge, 0, batchSize)
		for rows.Next() {
			var e domain.FollowEdge
			if err := rows.Scan(&e.ID, &e.FollowerID, &e.FollowingID, &e.CreatedAt); err != nil {
				rows.Close()
				return r.handleError("scan follow", err)
			}
			e.CreatedAt = e.CreatedAt.UTC()
			batch = append(batch, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return r.handleError("stream follows", err)
		}

		if len(batch) == 0 {
			return nil
		}
		if err := yield(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		lastID = batch[len(batch)-1].ID
	}
}
