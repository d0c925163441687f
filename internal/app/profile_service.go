package app

import (
	"context"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/sirupsen/logrus"
)

// ProfileService owns user roles.
type ProfileService struct {
	profiles        ProfileRepository
	bootstrapAdmins map[string]struct{}
}

// NewProfileService creates the service. Users listed in bootstrapAdmins get the admin role on first ensure.
func NewProfileService(profiles ProfileRepository, bootstrapAdmins []string) *ProfileService {
	admins := make(map[string]struct{}, len(bootstrapAdmins))
	for _, id := range bootstrapAdmins {
		admins[id] = struct{}{}
	}
	return &ProfileService{profiles: profiles, bootstrapAdmins: admins}
}

// Ensure returns the stored role, creating the profile on first call.
func (s *ProfileService) Ensure(ctx context.Context, userID string) (domain.Role, error) {
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	role := domain.RoleStudent
	if _, ok := s.bootstrapAdmins[userID]; ok {
		role = domain.RoleAdmin
	}
	stored, err := s.profiles.EnsureRole(ctx, userID, role)
	if err != nil {
		return "", wrapStorage(ctx, "Failed to ensure profile.", err)
	}
	config.WithContext(ctx).WithFields(logrus.Fields{"user_id": userID, "role": stored}).Debug("profile ensured")
	return stored, nil
}

// RequireAdmin fails with FORBIDDEN unless the user's stored role is admin.
// A user without a profile is not an admin.
func (s *ProfileService) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	role, found, err := s.profiles.GetRole(ctx, userID)
	if err != nil {
		return wrapStorage(ctx, "Failed to load profile.", err)
	}
	if !found || role != domain.RoleAdmin {
		return domain.ErrAdminRequired
	}
	return nil
}
