package services

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// Adapters "vides" utilisés quand une infra optionnelle est désactivée (Redis, NATS, Neo4j)

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*domain.Profile, error) { return nil, nil }
func (nopCache) Set(context.Context, *domain.Profile) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishProfileCreated(context.Context, *domain.Profile) error { return nil }
func (nopPublisher) PublishFollowCreated(context.Context, *domain.FollowEdge) error { return nil }
func (nopPublisher) PublishFollowRemoved(context.Context, string, string) error { return nil }
func (nopPublisher) PublishProfileViewed(context.Context, string) error { return nil }

type nopGraph struct{}

func (nopGraph) ProjectFollow(context.Context, string, string, time.Time) error { return nil }
func (nopGraph) ProjectFollows(context.Context, []domain.FollowEdge) error { return nil }
func (nopGraph) RemoveFollow(context.Context, string, string) error { return nil }
func (nopGraph) SuggestFollows(context.Context, string, int) ([]string, error) { return nil, nil }
