package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var _ ports.GraphProjection = (*Neo4jRepo)(nil)

// Neo4jRepo maintient une copie du graphe de follows pour les requêtes de découverte.
// Postgres reste la source de vérité ; cette projection est alimentée par les events.
type Neo4jRepo struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jRepo(driver neo4j.DriverWithContext) *Neo4jRepo {
	return &Neo4jRepo{driver: driver}
}

// EnsureSchema crée les index pour que les lookups par ID soient O(1)
func (r *Neo4jRepo) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `CREATE CONSTRAINT profile_id_unique IF NOT EXISTS FOR (p:Profile) REQUIRE p.id IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

// ProjectFollow est idempotent (MERGE) : rejouer un event ne duplique rien
func (r *Neo4jRepo) ProjectFollow(ctx context.Context, followerID, followingID string, at time.Time) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (a:Profile {id: $followerId})
			MERGE (b:Profile {id: $followingId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime($at)
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"followerId":  followerID,
			"followingId": followingID,
			"at":          at.UTC().Format(time.RFC3339Nano),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j project follow: %w", err)
	}
	return nil
}

// ProjectFollows projette un lot d'arêtes en une seule transaction (reconstruction)
func (r *Neo4jRepo) ProjectFollows(ctx context.Context, edges []domain.FollowEdge) error {
	if len(edges) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"followerId":  e.FollowerID,
			"followingId": e.FollowingID,
			"at":          e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			UNWIND $edges AS e
			MERGE (a:Profile {id: e.followerId})
			MERGE (b:Profile {id: e.followingId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = datetime(e.at)
		`
		_, err := tx.Run(ctx, query, map[string]any{"edges": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j project follows: %w", err)
	}
	return nil
}

func (r *Neo4jRepo) RemoveFollow(ctx context.Context, followerID, followingID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:Profile {id: $followerId})-[r:FOLLOWS]->(b:Profile {id: $followingId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{"followerId": followerID, "followingId": followingID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j remove follow: %w", err)
	}
	return nil
}

// SuggestFollows : amis d'amis, classés par nombre de chemins, hors profils déjà suivis
func (r *Neo4jRepo) SuggestFollows(ctx context.Context, profileID string, limit int) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (me:Profile {id: $profileId})-[:FOLLOWS]->(:Profile)-[:FOLLOWS]->(s:Profile)
			WHERE s.id <> $profileId AND NOT (me)-[:FOLLOWS]->(s)
			RETURN s.id AS id, count(*) AS score
			ORDER BY score DESC, id ASC
			LIMIT $limit
		`
		res, err := tx.Run(ctx, query, map[string]any{"profileId": profileID, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, limit)
		for res.Next(ctx) {
			id, _ := res.Record().Get("id")
			if s, ok := id.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j suggest: %w", err)
	}
	return result.([]string), nil
}
