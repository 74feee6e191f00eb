package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"lineup-chat/internal/apperr"
	"lineup-chat/internal/models"
)

// ProfileRepository resolves user identities to display data.
type ProfileRepository interface {
	ResolveProfile(ctx context.Context, userID string) (models.Profile, error)
	ResolveProfiles(ctx context.Context, userIDs []string) ([]models.Profile, error)
}

// ProfileRepo reads the profiles table.
type ProfileRepo struct {
	db   *sqlx.DB
	call caller
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB, opts Options) *ProfileRepo {
	return &ProfileRepo{db: db, call: newCaller(opts)}
}

// ResolveProfile fetches one profile.
func (r *ProfileRepo) ResolveProfile(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	err := r.call.do(ctx, "resolve profile", func(ctx context.Context) error {
		return r.db.GetContext(ctx, &profile, `SELECT user_id, display_name, image_url FROM profiles WHERE user_id=$1`, userID)
	})
	if apperr.KindOf(err) == apperr.KindNotFound {
		return models.Profile{}, apperr.NotFound("profile not found")
	}
	return profile, err
}

// ResolveProfiles fetches the profiles that exist among userIDs; unknown ids are skipped.
func (r *ProfileRepo) ResolveProfiles(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	if len(userIDs) == 0 {
		return []models.Profile{}, nil
	}
	var profiles []models.Profile
	err := r.call.do(ctx, "resolve profiles", func(ctx context.Context) error {
		profiles = nil
		return r.db.SelectContext(ctx, &profiles, `SELECT user_id, display_name, image_url FROM profiles WHERE user_id = ANY($1)`, pq.Array(userIDs))
	})
	return profiles, err
}
