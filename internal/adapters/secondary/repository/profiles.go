package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

const profileColumns = `id, user_id, username, name, description, bio, location, website, profile_picture, created_at`

// CreateWithLinks : profil + ligne de stats + liens, tout ou rien
func (r *PostgresRepo) CreateWithLinks(ctx context.Context, p *domain.Profile, links []domain.SocialLink) ([]domain.SocialLink, error) {
	var saved []domain.SocialLink

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		q := `
			INSERT INTO profiles (user_id, username, name, description, bio, location, website, profile_picture)
			VALUES (@user_id, @username, @name, @description, @bio, @location, @website, @profile_picture)
			RETURNING id, created_at
		`
		args := pgx.NamedArgs{
			"user_id":         p.OwnerID,
			"username":        p.Username,
			"name":            p.Name,
			"description":     p.Description,
			"bio":             p.Bio,
			"location":        p.Location,
			"website":         p.Website,
			"profile_picture": p.ProfilePicture,
		}

		// L'index unique lower(username) tranche les courses entre deux inscriptions
		if err := tx.QueryRow(ctx, q, args).Scan(&p.ID, &p.CreatedAt); err != nil {
			return r.handleError("insert profile", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()

		if _, err := tx.Exec(ctx, `INSERT INTO profile_stats (profile_id) VALUES ($1) ON CONFLICT (profile_id) DO NOTHING`, p.ID); err != nil {
			return r.handleError("seed stats", err)
		}

		var err error
		saved, err = r.insertLinks(ctx, tx, p.ID, links)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.scanProfile(r.db.QueryRow(ctx, q, id), "get profile by id")
}

// GetByUsername : comparaison insensible à la casse (même expression que l'index unique)
func (r *PostgresRepo) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(username) = lower($1)`
	return r.scanProfile(r.db.QueryRow(ctx, q, username), "get profile by username")
}

func (r *PostgresRepo) GetByOwner(ctx context.Context, ownerID string) (*domain.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	return r.scanProfile(r.db.QueryRow(ctx, q, ownerID), "get profile by owner")
}

// List : PAGINATION KEYSET (Cursor-based), du plus récent au plus ancien.
// La comparaison de ligne (created_at, id) suit exactement l'ORDER BY : aucun ex-aequo n'est sauté.
func (r *PostgresRepo) List(ctx context.Context, limit int, after domain.PageCursor) ([]*domain.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles`
	args := []any{}

	if !after.IsZero() {
		args = append(args, after.CreatedAt, after.ID)
		q += ` WHERE (created_at, id) < ($1, $2)`
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, r.handleError("list profiles", err)
	}
	defer rows.Close()

	profiles := []*domain.Profile{}
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, r.handleError("scan profile", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleError("list profiles", err)
	}
	return profiles, nil
}

// GetSummaries : BATCH FETCH, l'ordre des ids demandés est conservé
func (r *PostgresRepo) GetSummaries(ctx context.Context, ids []string) ([]domain.ProfileSummary, error) {
	if len(ids) == 0 {
		return []domain.ProfileSummary{}, nil
	}

	q := `SELECT id, username, name, profile_picture FROM profiles WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, q, ids)
	if err != nil {
		return nil, r.handleError("get summaries", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.ProfileSummary, len(ids))
	for rows.Next() {
		var s domain.ProfileSummary
		if err := rows.Scan(&s.ID, &s.Username, &s.Name, &s.ProfilePicture); err != nil {
			return nil, r.handleError("scan summary", err)
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleError("get summaries", err)
	}

	summaries := make([]domain.ProfileSummary, 0, len(byID))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			summaries = append(summaries, s)
		}
	}
	return summaries, nil
}

// --- Helpers de scan ---

func (r *PostgresRepo) scanProfile(row pgx.Row, op string) (*domain.Profile, error) {
	p, err := scanProfileRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound // Traduction technique -> Domaine
		}
		return nil, r.handleError(op, err)
	}
	return p, nil
}

func scanProfileRow(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Username, &p.Name, &p.Description, &p.Bio,
		&p.Location, &p.Website, &p.ProfilePicture, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}
