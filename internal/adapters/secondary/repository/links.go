package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// InsertLinks ajoute des liens à un profil existant (batch dans une transaction)
func (r *PostgresRepo) InsertLinks(ctx context.Context, profileID string, links []domain.SocialLink) ([]domain.SocialLink, error) {
	var saved []domain.SocialLink
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = r.insertLinks(ctx, tx, profileID, links)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// insertLinks envoie tous les INSERT en un seul aller-retour (pgx.Batch)
func (r *PostgresRepo) insertLinks(ctx context.Context, tx pgx.Tx, profileID string, links []domain.SocialLink) ([]domain.SocialLink, error) {
	saved := make([]domain.SocialLink, len(links))
	if len(links) == 0 {
		return saved, nil
	}

	q := `
		INSERT INTO social_links (profile_id, platform, url, display_text, icon, order_index)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(q, profileID, l.Platform, l.URL, l.DisplayText, l.Icon, l.OrderIndex)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i, l := range links {
		l.ProfileID = profileID
		if err := br.QueryRow().Scan(&l.ID, &l.CreatedAt); err != nil {
			return nil, r.handleError("insert social link", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		saved[i] = l
	}

	if err := br.Close(); err != nil {
		return nil, r.handleError("insert social links", err)
	}
	return saved, nil
}

func (r *PostgresRepo) ListByProfile(ctx context.Context, profileID string) ([]domain.SocialLink, error) {
	q := `
		SELECT id, profile_id, platform, url, display_text, icon, order_index, created_at
		FROM social_links
		WHERE profile_id = $1
		ORDER BY order_index ASC, created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, q, profileID)
	if err != nil {
		return nil, r.handleError("list social links", err)
	}
	defer rows.Close()

	links := []domain.SocialLink{}
	for rows.Next() {
		var l domain.SocialLink
		if err := rows.Scan(&l.ID, &l.ProfileID, &l.Platform, &l.URL, &l.DisplayText, &l.Icon, &l.OrderIndex, &l.CreatedAt); err != nil {
			return nil, r.handleError("scan social link", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handleError("list social links", err)
	}
	return links, nil
}

// DeleteLink ne touche ni au profil ni à l'order_index des autres liens
func (r *PostgresRepo) DeleteLink(ctx context.Context, profileID, linkID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM social_links WHERE id = $1 AND profile_id = $2`, linkID, profileID)
	if err != nil {
		return r.handleError("delete social link", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLinkNotFound
	}
	return nil
}
