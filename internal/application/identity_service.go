package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/example/timetracker/internal/persistence"
)

// Profiles captures the user-profile repository operations used for identity
// resolution.
type Profiles interface {
	CreateProfile(ctx context.Context, profile persistence.UserProfile) (persistence.UserProfile, error)
	GetProfileByPlatformUserID(ctx context.Context, platformUserID string) (persistence.UserProfile, error)
}

// IdentityService maps platform user identifiers onto local profiles,
// creating a profile the first time an identifier is seen.
type IdentityService struct {
	profiles Profiles
	newID    func() string
	logger   *slog.Logger
}

// NewIdentityService wires dependencies for identity resolution.
func NewIdentityService(profiles Profiles, newID func() string, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		profiles: profiles,
		newID:    newID,
		logger:   defaultLogger(logger),
	}
}

// Resolve returns the principal for a platform user id, creating the backing
// profile if it does not exist yet.
func (s *IdentityService) Resolve(ctx context.Context, platformUserID string) (Principal, error) {
	if strings.TrimSpace(platformUserID) == "" {
		return Principal{}, ErrUnauthorized
	}

	profile, err := s.profiles.GetProfileByPlatformUserID(ctx, platformUserID)
	if err == nil {
		return Principal{UserID: profile.ID, PlatformUserID: profile.PlatformUserID}, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return Principal{}, s.storeError(ctx, "resolve", err)
	}

	created, err := s.profiles.CreateProfile(ctx, persistence.UserProfile{
		ID:             s.newID(),
		PlatformUserID: platformUserID,
	})
	if errors.Is(err, persistence.ErrConstraintViolation) {
		// Concurrent first request created the profile; read it back.
		profile, lookupErr := s.profiles.GetProfileByPlatformUserID(ctx, platformUserID)
		if lookupErr != nil {
			return Principal{}, s.storeError(ctx, "resolve", lookupErr)
		}
		return Principal{UserID: profile.ID, PlatformUserID: profile.PlatformUserID}, nil
	}
	if err != nil {
		return Principal{}, s.storeError(ctx, "resolve", err)
	}

	serviceLogger(ctx, s.logger, "identity", "resolve").
		InfoContext(ctx, "profile created", "user_id", created.ID)
	return Principal{UserID: created.ID, PlatformUserID: created.PlatformUserID}, nil
}

func (s *IdentityService) storeError(ctx context.Context, op string, err error) error {
	serviceLogger(ctx, s.logger, "identity", op).
		ErrorContext(ctx, "datastore operation failed", "error", err)
	return errors.Join(ErrStoreUnavailable, err)
}
