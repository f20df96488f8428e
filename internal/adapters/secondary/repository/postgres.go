package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

// Codes SQLSTATE PostgreSQL utilisés pour traduire les erreurs
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidTextRepr     = "22P02"
)

// Noms des contraintes déclarées dans migrations/00001_init.sql
const (
	constraintUsername   = "profiles_username_lower_key"
	constraintOwner      = "profiles_user_id_key"
	constraintFollowPair = "follows_pair_key"
	constraintSelfFollow = "follows_no_self_follow"
)

var (
	_ ports.ProfileRepository = (*PostgresRepo)(nil)
	_ ports.LinkRepository    = (*PostgresRepo)(nil)
	_ ports.FollowRepository  = (*PostgresRepo)(nil)
	_ ports.StatsRepository   = (*PostgresRepo)(nil)
)

// PostgresRepo implémente les quatre stores (profils, liens, follows, stats)
// sur un seul pool : les transactions peuvent ainsi couvrir plusieurs tables.
type PostgresRepo struct {
	db *pgxpool.Pool
}

// NewPostgresRepo reçoit un pool déjà configuré (tracing, limites) par main.go
func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{db: pool}
}

// inTx exécute fn dans une transaction : commit si fn réussit, rollback sinon
func (r *PostgresRepo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return r.handleError("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op après Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return r.handleError("commit", err)
	}
	return nil
}

// --- HELPERS ---

// handleError traduit les codes d'erreur PostgreSQL en erreurs du Domaine.
// On se base sur le code SQLSTATE et le nom de contrainte, jamais sur le message.
func (r *PostgresRepo) handleError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintUsername:
				return domain.ErrUsernameTaken
			case constraintOwner:
				return domain.ErrProfileAlreadyExists
			case constraintFollowPair:
				return domain.ErrAlreadyFollowing
			}
		case codeForeignKeyViolation:
			return domain.ErrProfileNotFound
		case codeCheckViolation:
			if pgErr.ConstraintName == constraintSelfFollow {
				return domain.ErrSelfFollow
			}
		case codeInvalidTextRepr:
			return &domain.ValidationError{Field: "id", Reason: "malformed identifier"}
		}
		return fmt.Errorf("db: %s: %w", op, err)
	}

	if isTransient(err) {
		return fmt.Errorf("db: %s: %w: %w", op, domain.ErrTransient, err)
	}
	return fmt.Errorf("db: %s: %w", op, err)
}

// isTransient : connexion impossible, timeout, ou requête jamais envoyée au serveur
func isTransient(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
