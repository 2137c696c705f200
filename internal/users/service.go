package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docvault-backend/internal/shared/auth"
)

// Service implements registration and login.
type Service struct {
	Repo Repo

	// TokenTTL bounds issued JWT lifetimes. Zero means the default.
	TokenTTL time.Duration
}

const defaultTokenTTL = 24 * time.Hour

// Register creates an account. The role defaults to viewer when empty; the
// password is bcrypt-hashed before it reaches the repository.
func (s *Service) Register(ctx context.Context, username, email, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" {
		return User{}, fmt.Errorf("username and email are required: %w", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("malformed email: %w", ErrInvalidInput)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters: %w", ErrInvalidInput)
	}
	if role == "" {
		role = auth.RoleViewer
	}
	if !auth.ValidRole(role) {
		return User{}, fmt.Errorf("unknown role %q: %w", role, ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.Repo.Create(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
}

// Login verifies credentials and issues a signed token carrying the user's
// role. Unknown emails and wrong passwords are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", User{}, fmt.Errorf("email and password are required: %w", ErrInvalidInput)
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", User{}, ErrBadCredentials
		}
		return "", User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", User{}, ErrBadCredentials
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now().UTC()
	token, err := auth.SignJWT(auth.Claims{
		Sub:   user.ID,
		Roles: []string{user.Role},
		Iat:   now.Unix(),
		Exp:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", User{}, fmt.Errorf("sign token: %w", err)
	}
	return token, user, nil
}

// GetByID loads one account.
func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return s.Repo.GetByID(ctx, id)
}
