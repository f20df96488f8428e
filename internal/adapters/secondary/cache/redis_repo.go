package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

var _ ports.ProfileCache = (*RedisProfileCache)(nil)

// DTO interne : le domaine reste sans tags JSON
type profileDTO struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	Website        string    `json:"website"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration // Les profils ne changent pas après création, mais on ne garde pas l'infini en RAM
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisProfileCache{client: client, ttl: ttl}
}

// Key : "profile:username:<lowercase>" (même normalisation que l'index unique)
func Key(username string) string {
	return fmt.Sprintf("profile:username:%s", domain.NormalizeUsername(username))
}

func (c *RedisProfileCache) Get(ctx context.Context, username string) (*domain.Profile, error) {
	data, err := c.client.Get(ctx, Key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Miss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var dto profileDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		// Donnée corrompue : on la traite comme un miss et on la purge
		_ = c.client.Del(ctx, Key(username)).Err()
		return nil, nil
	}
	return toDomain(dto), nil
}

func (c *RedisProfileCache) Set(ctx context.Context, p *domain.Profile) error {
	data, err := json.Marshal(toDTO(p))
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, Key(p.Username), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func toDTO(p *domain.Profile) profileDTO {
	return profileDTO{
		ID:             p.ID,
		OwnerID:        p.OwnerID,
		Username:       p.Username,
		Name:           p.Name,
		Description:    p.Description,
		Bio:            p.Bio,
		Location:       p.Location,
		Website:        p.Website,
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      p.CreatedAt,
	}
}

func toDomain(d profileDTO) *domain.Profile {
	return &domain.Profile{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		Username:       d.Username,
		Name:           d.Name,
		Description:    d.Description,
		Bio:            d.Bio,
		Location:       d.Location,
		Website:        d.Website,
		ProfilePicture: d.ProfilePicture,
		CreatedAt:      d.CreatedAt.UTC(),
	}
}
