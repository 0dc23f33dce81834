package service

import (
	"context"
	"errors"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessService owns roles and privileges: start-up seeding and per-user grants.
type AccessService struct {
	privileges repository.PrivilegeRepository
	roles      repository.RoleRepository
	users      repository.UserRepository
	logg       *logger.Logger
}

func NewAccessService(privileges repository.PrivilegeRepository, roles repository.RoleRepository,
	users repository.UserRepository, logg *logger.Logger) *AccessService {
	if logg == nil {
		logg = logger.Nop()
	}
	return &AccessService{privileges: privileges, roles: roles, users: users, logg: logg}
}

// Seed is idempotent. The admin account is only created when adminEmail is unknown.
func (s *AccessService) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	// 1. Privileges and roles
	if err := s.privileges.SeedDefaults(); err != nil {
		return internal(err, "seed privileges")
	}
	if err := s.roles.SeedDefaults(); err != nil {
		return internal(err, "seed roles")
	}

	// 2. ADMIN gets every privilege; CUSTOMER gets none
	all, err := s.privileges.FindAll()
	if err != nil {
		return internal(err, "list privileges")
	}
	admin, err := s.roles.FindByCode(model.RoleAdmin)
	if err != nil {
		return internal(err, "load admin role")
	}
	if len(admin.Privileges) != len(all) {
		if err := s.roles.AssignPrivileges(admin, all); err != nil {
			return internal(err, "assign admin privileges")
		}
		s.logg.Info(ctx, "admin role granted all privileges")
	}

	// 3. First admin account
	if adminEmail == "" {
		return nil
	}
	if _, err := s.users.FindByEmail(adminEmail); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return internal(err, "check admin user")
	}

	user := &model.User{
		Email:    adminEmail,
		FullName: "Store Administrator",
		RoleID:   &admin.ID,
		IsActive: true,
	}
	user.CreatedBy = "system"
	user.UpdatedBy = "system"
	if err := user.SetPassword(adminPassword); err != nil {
		return internal(err, "hash admin password")
	}
	if err := s.users.Create(user); err != nil {
		return internal(err, "create admin user")
	}
	s.logg.Info(s.logg.WithField(ctx, "email", adminEmail), "admin user created")
	return nil
}

func (s *AccessService) Roles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.FindAll()
	return roles, internal(err, "list roles")
}

func (s *AccessService) Privileges(ctx context.Context) ([]model.Privilege, error) {
	privileges, err := s.privileges.FindAll()
	return privileges, internal(err, "list privileges")
}

// GrantPrivileges replaces the user's direct privileges. Role privileges are untouched.
// Unknown codes are rejected so a typo never silently drops access.
func (s *AccessService) GrantPrivileges(ctx context.Context, userID uuid.UUID, codes []string) (*model.UserResponse, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, notFound(err, "user")
	}

	privileges, err := s.privileges.FindByCodes(codes)
	if err != nil {
		return nil, internal(err, "load privileges")
	}
	if len(privileges) != len(uniqueCodes(codes)) {
		return nil, apperrors.New(apperrors.CodeValidation, "unknown privilege code").
			WithDetails(map[string][]string{"requested": codes})
	}

	if err := s.users.ReplacePrivileges(user, privileges); err != nil {
		return nil, internal(err, "replace privileges")
	}
	// drop cached sessions by rotating the token version
	if err := s.users.UpdateTokenVersion(user.ID, uuid.NewString()); err != nil {
		return nil, internal(err, "rotate session")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"user_id": user.ID.String(), "privileges": codes}),
		"user privileges replaced")

	fresh, err := s.users.FindByID(user.ID)
	if err != nil {
		return nil, internal(err, "reload user")
	}
	resp := fresh.ToResponse()
	return &resp, nil
}

func uniqueCodes(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
