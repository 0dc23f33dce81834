package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go-material-store/internal/model"
	"go-material-store/internal/repository"
	"go-material-store/pkg/cache"
	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/jwt"
	"go-material-store/pkg/logger"
	"go-material-store/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = apperrors.New(apperrors.CodeUnauthorized, "invalid email or password")
	ErrUserInactive       = apperrors.New(apperrors.CodeForbidden, "user account is inactive")
	ErrSessionExpired     = apperrors.New(apperrors.CodeUnauthorized, "session expired, please log in again")
	ErrWrongPassword      = apperrors.New(apperrors.CodeValidation, "current password is incorrect")
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*model.UserResponse, error)
	Logout(ctx context.Context, userID uuid.UUID, tokenVersion string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
	ResolveSession(ctx context.Context, claims *jwt.Claims) (*Session, error)
	Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"full_name" validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Privileges []string           `json:"privileges"`
}

// Session is the request-scoped identity resolved from a token. It is what handlers see.
type Session struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	RoleCode     string    `json:"role_code"`
	Privileges   []string  `json:"privileges"`
	TokenVersion string    `json:"token_version"`
}

func (s *Session) Has(privilege string) bool {
	for _, p := range s.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}

type authService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	issuer     *jwt.Issuer
	sessions   cache.Store
	sessionTTL time.Duration
	logg       *logger.Logger
}

func NewAuthService(users repository.UserRepository, roles repository.RoleRepository, issuer *jwt.Issuer,
	sessions cache.Store, sessionTTL time.Duration, logg *logger.Logger) AuthService {
	if sessions == nil {
		sessions = cache.NewMemory()
	}
	if sessionTTL <= 0 {
		sessionTTL = 5 * time.Minute
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &authService{
		users:      users,
		roles:      roles,
		issuer:     issuer,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logg:       logg,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	// 1. Find user by email
	user, err := s.users.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, internal(err, "load user")
	}

	// 2. Active account with the right password
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	// 3. Single session: a new token version invalidates older tokens
	version := uuid.NewString()
	if err := s.users.UpdateTokenVersion(user.ID, version); err != nil {
		return nil, internal(err, "rotate session")
	}

	token, err := s.issuer.GenerateToken(user.ID, user.Email, user.FullName, user.RoleCode(), user.GetPrivilegeCodes(), version)
	if err != nil {
		return nil, internal(err, "generate token")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user logged in")
	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*model.UserResponse, error) {
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, validator.Summary(errs)).WithDetails(errs)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, apperrors.New(apperrors.CodeConflict, "email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal(err, "check email")
	}

	role, err := s.roles.FindByCode(model.RoleCustomer)
	if err != nil {
		return nil, notFound(err, "customer role")
	}

	user := &model.User{
		Email:       email,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		RoleID:      &role.ID,
		IsActive:    true,
	}
	user.CreatedBy = "self"
	if err := user.SetPassword(req.Password); err != nil {
		return nil, internal(err, "hash password")
	}
	if err := s.users.Create(user); err != nil {
		return nil, internal(err, "create user")
	}
	user.Role = role

	resp := user.ToResponse()
	return &resp, nil
}

// Logout rotates the token version and drops the cached session.
func (s *authService) Logout(ctx context.Context, userID uuid.UUID, tokenVersion string) error {
	if err := s.users.UpdateTokenVersion(userID, uuid.NewString()); err != nil {
		return internal(err, "rotate session")
	}
	if err := s.sessions.Del(ctx, cache.SessionKey(userID.String(), tokenVersion)); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "drop cached session", err)
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return notFound(err, "user")
	}
	if !user.CheckPassword(oldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(newPassword); err != nil {
		return internal(err, "hash password")
	}
	if err := s.users.UpdatePassword(user.ID, user.Password); err != nil {
		return internal(err, "update password")
	}
	return s.Logout(ctx, user.ID, user.TokenVersion)
}

// ResetPassword sets a new password without the old one and signs the user out everywhere.
// Operators use it from the command line; it is not exposed over HTTP.
func (s *authService) ResetPassword(ctx context.Context, email, newPassword string) error {
	if len(newPassword) < 8 {
		return apperrors.New(apperrors.CodeValidation, "password must be at least 8 characters")
	}
	user, err := s.users.FindByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return notFound(err, "user")
	}
	if err := user.SetPassword(newPassword); err != nil {
		return internal(err, "hash password")
	}
	if err := s.users.UpdatePassword(user.ID, user.Password); err != nil {
		return internal(err, "update password")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "password reset")
	return s.Logout(ctx, user.ID, user.TokenVersion)
}

// ResolveSession maps validated claims to a live session, through a short-lived cache keyed
// by user and token version. A rotated token version makes old tokens miss and fail.
func (s *authService) ResolveSession(ctx context.Context, claims *jwt.Claims) (*Session, error) {
	key := cache.SessionKey(claims.UserID.String(), claims.TokenVersion)

	if raw, err := s.sessions.Get(ctx, key); err == nil {
		var session Session
		if jsonErr := json.Unmarshal([]byte(raw), &session); jsonErr == nil {
			return &session, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logg.Error(ctx, "session cache read failed", err)
	}

	user, err := s.users.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, internal(err, "load user")
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionExpired
	}

	session := &Session{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.FullName,
		RoleCode:     user.RoleCode(),
		Privileges:   user.GetPrivilegeCodes(),
		TokenVersion: user.TokenVersion,
	}
	if raw, err := json.Marshal(session); err == nil {
		if err := s.sessions.Set(ctx, key, string(raw), s.sessionTTL); err != nil {
			s.logg.Error(ctx, "session cache write failed", err)
		}
	}
	return session, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*model.UserResponse, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	resp := user.ToResponse()
	return &resp, nil
}
