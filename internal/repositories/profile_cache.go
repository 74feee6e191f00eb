package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"lineup-chat/internal/models"
)

// CachedProfileRepo is a Redis read-through cache in front of a ProfileRepository.
// Cache failures degrade to the underlying repository.
type CachedProfileRepo struct {
	next   ProfileRepository
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedProfileRepo wraps next with a cache on client.
func NewCachedProfileRepo(next ProfileRepository, client *redis.Client, ttl time.Duration) *CachedProfileRepo {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProfileRepo{next: next, client: client, ttl: ttl, prefix: "profile:"}
}

func (r *CachedProfileRepo) key(userID string) string {
	return r.prefix + userID
}

// ResolveProfile serves from cache when possible.
func (r *CachedProfileRepo) ResolveProfile(ctx context.Context, userID string) (models.Profile, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err == nil {
		var profile models.Profile
		if jsonErr := json.Unmarshal(raw, &profile); jsonErr == nil {
			return profile, nil
		}
	} else if err != redis.Nil {
		log.Warn("profile cache get failed", "user_id", userID, "err", err)
	}

	profile, err := r.next.ResolveProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	r.store(ctx, profile)
	return profile, nil
}

// ResolveProfiles reads all cached entries in one round trip and fetches the rest.
func (r *CachedProfileRepo) ResolveProfiles(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	if len(userIDs) == 0 {
		return []models.Profile{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = r.key(id)
	}

	profiles := make([]models.Profile, 0, len(userIDs))
	var missing []string
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		log.Warn("profile cache mget failed", "count", len(keys), "err", err)
		missing = userIDs
	} else {
		for i, value := range values {
			str, ok := value.(string)
			if !ok {
				missing = append(missing, userIDs[i])
				continue
			}
			var profile models.Profile
			if err := json.Unmarshal([]byte(str), &profile); err != nil {
				missing = append(missing, userIDs[i])
				continue
			}
			profiles = append(profiles, profile)
		}
	}

	if len(missing) == 0 {
		return profiles, nil
	}
	fetched, err := r.next.ResolveProfiles(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, profile := range fetched {
		r.store(ctx, profile)
	}
	return append(profiles, fetched...), nil
}

// Invalidate drops a cached profile.
func (r *CachedProfileRepo) Invalidate(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.key(userID)).Err()
}

func (r *CachedProfileRepo) store(ctx context.Context, profile models.Profile) {
	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, r.key(profile.UserID), raw, r.ttl).Err(); err != nil {
		log.Warn("profile cache set failed", "user_id", profile.UserID, "err", err)
	}
}
