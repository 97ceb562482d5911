package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
)

// Service defines business logic related to users.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*User, error)
	Login(ctx context.Context, email, password string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// EnsureUser returns the user with email, creating it with role and an
	// unusable password if it does not exist yet.
	EnsureUser(ctx context.Context, name, email, role string) (*User, error)
}

type service struct {
	repo   Repository
	hasher auth.PasswordHasher
	now    func() time.Time
}

// NewService creates a new user Service.
func NewService(repo Repository, hasher auth.PasswordHasher) Service {
	return &service{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

func (s *service) Register(ctx context.Context, name, email, password string) (*User, error) {
	cleanEmail := normalizeEmail(email)

	// Check if email is already used.
	_, err := s.repo.GetByEmail(ctx, cleanEmail)
	if err == nil {
		return nil, ErrEmailAlreadyUsed
	}
	// If the error is something other than "not found", propagate it.
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Name:         strings.TrimSpace(name),
		Email:        cleanEmail,
		PasswordHash: hash,
		Role:         RoleUser,
	}

	// The unique index still guards against a concurrent registration.
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailAlreadyUsed) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.FromContext(ctx).Info("user registered", "user_id", u.ID)
	return u, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*User, error) {
	cleanEmail := normalizeEmail(email)
	if cleanEmail == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, cleanEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch user by email: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Best effort; a failed bookkeeping write does not fail the login.
	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
		logger.FromContext(ctx).Warn("failed to record last login", "user_id", u.ID, "error", err)
	} else {
		u.LastLoginAt = &now
	}

	return u, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, normalizeEmail(email))
}

func (s *service) EnsureUser(ctx context.Context, name, email, role string) (*User, error) {
	cleanEmail := normalizeEmail(email)

	u, err := s.repo.GetByEmail(ctx, cleanEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Nobody knows this password; the account can only be used by the server.
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}
	hash, err := s.hasher.Hash(hex.EncodeToString(secret[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u = &User{Name: name, Email: cleanEmail, PasswordHash: hash, Role: role}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailAlreadyUsed) {
			// lost a race with another creator
			return s.repo.GetByEmail(ctx, cleanEmail)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// normalizeEmail trims spaces and lowercases the email.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
