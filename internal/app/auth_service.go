package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/n1-ro/recoverpro/internal/domain"
)

// TokenSigner issues a session token carrying the resolved role claim.
type TokenSigner func(uid, email string, role domain.Role, ttl time.Duration) (string, error)

// AuthService covers sign-up, sign-in and password reset. The role is
// resolved here, once, and travels inside the token; nothing downstream
// inspects email addresses to decide who is staff.
type AuthService struct {
	profiles  ProfileStore
	resets    ResetTokenStore
	signToken TokenSigner
	tokenTTL  time.Duration
	resetTTL  time.Duration
	now       func() time.Time
	newID     func() string
}

// AuthResult is a successful registration or login.
type AuthResult struct {
	Token  string      `json:"token"`
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

func NewAuthService(profiles ProfileStore, resets ResetTokenStore, signer TokenSigner, tokenTTL, resetTTL time.Duration) *AuthService {
	return &AuthService{
		profiles:  profiles,
		resets:    resets,
		signToken: signer,
		tokenTTL:  tokenTTL,
		resetTTL:  resetTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Register creates an applicant account and signs them in.
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, domain.ErrInvalidCredentials
	}
	_, err := s.profiles.GetProfileByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrEmailTaken
	case !errors.Is(err, domain.ErrProfileNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	profile := domain.Profile{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleApplicant,
		CreatedAt:    s.now(),
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return s.result(profile)
}

// Login verifies credentials and issues a token with the stored role.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	profile, err := s.profiles.GetProfileByEmail(ctx, email)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if bcrypt.CompareHashAndPassword(profile.PasswordHash, []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.result(profile)
}

// RequestPasswordReset issues a short-lived opaque token. Unknown emails
// yield an empty token and no error, so the endpoint does not reveal which
// addresses exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	profile, err := s.profiles.GetProfileByEmail(ctx, email)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup email: %w", err)
	}
	token := s.newID()
	if err := s.resets.SaveResetToken(ctx, token, profile.ID, s.resetTTL); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return domain.ErrInvalidCredentials
	}
	userID, err := s.resets.ConsumeResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.profiles.UpdateProfile(ctx, userID, ProfileUpdate{PasswordHash: &hash})
}

func (s *AuthService) result(profile domain.Profile) (*AuthResult, error) {
	if s.signToken == nil {
		return nil, errors.New("token signer not configured")
	}
	token, err := s.signToken(profile.ID, profile.Email, profile.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{Token: token, UserID: profile.ID, Email: profile.Email, Role: profile.Role}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
