package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	byID     map[string]*User
	nextID   int
	loginErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[string]*User{}}
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailAlreadyUsed
		}
	}
	r.nextID++
	u.ID = fmt.Sprintf("user-%d", r.nextID)
	u.CreatedAt = time.Now()
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateLastLogin(_ context.Context, id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loginErr != nil {
		return r.loginErr
	}
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &t
	return nil
}

// plainHasher keeps tests fast; bcrypt is covered in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "h:" + p, nil }
func (plainHasher) Compare(h, p string) error {
	if h != "h:"+p {
		return errors.New("mismatch")
	}
	return nil
}

func TestRegister(t *testing.T) {
	svc := NewService(newFakeRepo(), plainHasher{})
	ctx := context.Background()

	u, err := svc.Register(ctx, "  Alice ", " Alice@Example.COM ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, RoleUser, u.Role)
	assert.Equal(t, "h:secret1", u.PasswordHash)

	_, err = svc.Register(ctx, "Alice Again", "alice@example.com", "secret2")
	assert.ErrorIs(t, err, ErrEmailAlreadyUsed)
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, plainHasher{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "Bob", "bob@example.com", "secret1")
	require.NoError(t, err)

	u, err := svc.Login(ctx, "BOB@example.com", "secret1")
	require.NoError(t, err)
	require.NotNil(t, u.LastLoginAt)

	_, err = svc.Login(ctx, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginSurvivesLastLoginFailure(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, plainHasher{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "Carol", "carol@example.com", "secret1")
	require.NoError(t, err)

	repo.loginErr = errors.New("db down")
	u, err := svc.Login(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)
	assert.Nil(t, u.LastLoginAt)
}

func TestEnsureUser(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, plainHasher{})
	ctx := context.Background()

	first, err := svc.EnsureUser(ctx, "AI Writer", "AI-Writer@blog.local", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "ai-writer@blog.local", first.Email)

	again, err := svc.EnsureUser(ctx, "AI Writer", "ai-writer@blog.local", RoleUser)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// the generated password is not guessable
	_, err = svc.Login(ctx, "ai-writer@blog.local", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetByEmailNormalizes(t *testing.T) {
	svc := NewService(newFakeRepo(), plainHasher{})
	ctx := context.Background()

	created, err := svc.Register(ctx, "Dave", "dave@example.com", "secret1")
	require.NoError(t, err)

	got, err := svc.GetByEmail(ctx, "  DAVE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
