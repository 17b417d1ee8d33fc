package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/timetracker/internal/persistence"
	"github.com/example/timetracker/internal/testfixtures"
)

type stubProfiles struct {
	createProfile              func(ctx context.Context, profile persistence.UserProfile) (persistence.UserProfile, error)
	getProfileByPlatformUserID func(ctx context.Context, platformUserID string) (persistence.UserProfile, error)
}

func (s *stubProfiles) CreateProfile(ctx context.Context, profile persistence.UserProfile) (persistence.UserProfile, error) {
	return s.createProfile(ctx, profile)
}

func (s *stubProfiles) GetProfileByPlatformUserID(ctx context.Context, platformUserID string) (persistence.UserProfile, error) {
	return s.getProfileByPlatformUserID(ctx, platformUserID)
}

func TestResolveReturnsExistingProfile(t *testing.T) {
	profile := testfixtures.NewProfileFixture(testfixtures.WithPlatformUserID("platform-7")).Persistence()

	profiles := &stubProfiles{
		getProfileByPlatformUserID: func(_ context.Context, platformUserID string) (persistence.UserProfile, error) {
			if platformUserID != "platform-7" {
				t.Fatalf("unexpected lookup %s", platformUserID)
			}
			return profile, nil
		},
		createProfile: func(context.Context, persistence.UserProfile) (persistence.UserProfile, error) {
			t.Fatal("existing profile must not be re-created")
			return persistence.UserProfile{}, nil
		},
	}
	service := NewIdentityService(profiles, nil, nil)

	principal, err := service.Resolve(context.Background(), "platform-7")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if principal.UserID != profile.ID || principal.PlatformUserID != "platform-7" {
		t.Fatalf("unexpected principal %+v", principal)
	}
}

func TestResolveCreatesProfileOnFirstSight(t *testing.T) {
	gen := testfixtures.NewIDGenerator("profile")

	profiles := &stubProfiles{
		getProfileByPlatformUserID: func(context.Context, string) (persistence.UserProfile, error) {
			return persistence.UserProfile{}, persistence.ErrNotFound
		},
		createProfile: func(_ context.Context, profile persistence.UserProfile) (persistence.UserProfile, error) {
			if profile.ID == "" || profile.PlatformUserID != "platform-7" {
				t.Fatalf("unexpected profile %+v", profile)
			}
			return profile, nil
		},
	}
	service := NewIdentityService(profiles, gen.Next, nil)

	principal, err := service.Resolve(context.Background(), "platform-7")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if principal.UserID != "profile-1" {
		t.Fatalf("expected generated id, got %+v", principal)
	}
}

func TestResolveConvergesOnConcurrentFirstRequest(t *testing.T) {
	winner := testfixtures.NewProfileFixture(testfixtures.WithPlatformUserID("platform-7")).Persistence()

	lookups := 0
	profiles := &stubProfiles{
		getProfileByPlatformUserID: func(context.Context, string) (persistence.UserProfile, error) {
			lookups++
			if lookups == 1 {
				return persistence.UserProfile{}, persistence.ErrNotFound
			}
			return winner, nil
		},
		createProfile: func(context.Context, persistence.UserProfile) (persistence.UserProfile, error) {
			return persistence.UserProfile{}, persistence.ErrConstraintViolation
		},
	}
	service := NewIdentityService(profiles, testfixtures.NewIDGenerator("profile").Next, nil)

	principal, err := service.Resolve(context.Background(), "platform-7")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if principal.UserID != winner.ID {
		t.Fatalf("expected the winner's profile, got %+v", principal)
	}
}

func TestResolveRejectsBlankIdentifier(t *testing.T) {
	service := NewIdentityService(&stubProfiles{}, nil, nil)

	if _, err := service.Resolve(context.Background(), "  "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
