package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/timetracker/internal/persistence"
)

// UserProfileRepository implements persistence.UserProfileRepository using SQLite.
type UserProfileRepository struct {
	pool *Pool
}

// NewUserProfileRepository creates a new SQLite user profile repository.
func NewUserProfileRepository(pool *Pool) *UserProfileRepository {
	return &UserProfileRepository{pool: pool}
}

// CreateProfile stores a new profile for an external platform identity.
func (r *UserProfileRepository) CreateProfile(ctx context.Context, profile persistence.UserProfile) (persistence.UserProfile, error) {
	if profile.ID == "" || strings.TrimSpace(profile.PlatformUserID) == "" {
		return persistence.UserProfile{}, persistence.ErrConstraintViolation
	}

	now := r.pool.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
		INSERT INTO user_profiles (id, platform_user_id, platform_account_id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.db.ExecContext(ctx, query,
		profile.ID,
		profile.PlatformUserID,
		profile.PlatformAccountID,
		nullString(profile.Name),
		nullString(profile.Email),
		formatTime(profile.CreatedAt),
		formatTime(profile.UpdatedAt),
	)
	if err != nil {
		return persistence.UserProfile{}, mapError(err)
	}
	return profile, nil
}

// GetProfile retrieves a profile by internal id.
func (r *UserProfileRepository) GetProfile(ctx context.Context, id string) (persistence.UserProfile, error) {
	return r.scanProfile(r.pool.db.QueryRowContext(ctx, `
		SELECT id, platform_user_id, platform_account_id, name, email, created_at, updated_at
		FROM user_profiles WHERE id = ?
	`, id))
}

// GetProfileByPlatformUserID retrieves a profile by external platform user id.
func (r *UserProfileRepository) GetProfileByPlatformUserID(ctx context.Context, platformUserID string) (persistence.UserProfile, error) {
	return r.scanProfile(r.pool.db.QueryRowContext(ctx, `
		SELECT id, platform_user_id, platform_account_id, name, email, created_at, updated_at
		FROM user_profiles WHERE platform_user_id = ?
	`, platformUserID))
}

func (r *UserProfileRepository) scanProfile(row *sql.Row) (persistence.UserProfile, error) {
	var profile persistence.UserProfile
	var name, email sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&profile.ID,
		&profile.PlatformUserID,
		&profile.PlatformAccountID,
		&name,
		&email,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.UserProfile{}, persistence.ErrNotFound
		}
		return persistence.UserProfile{}, mapError(err)
	}

	profile.Name = stringPtr(name)
	profile.Email = stringPtr(email)
	if profile.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.UserProfile{}, err
	}
	if profile.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.UserProfile{}, err
	}
	return profile, nil
}
