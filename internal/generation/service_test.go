package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/blog-backend/internal/metrics"
	"github.com/nekogravitycat/blog-backend/internal/post"
	"github.com/nekogravitycat/blog-backend/internal/post/posttest"
	"github.com/nekogravitycat/blog-backend/internal/user"
)

type fakeGenerator struct {
	mu      sync.Mutex
	topics  []string
	err     error
	release chan struct{} // when set, GeneratePost blocks until closed
	started chan struct{}
}

func (g *fakeGenerator) GeneratePost(ctx context.Context, topic string) (*Draft, error) {
	g.mu.Lock()
	g.topics = append(g.topics, topic)
	g.mu.Unlock()

	if g.release != nil {
		close(g.started)
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	return &Draft{
		Title:   "All about " + topic,
		Summary: "summary",
		Content: "A body that is comfortably long enough.",
		Tags:    []string{topic},
	}, nil
}

type fakeAuthors struct {
	calls int
}

func (a *fakeAuthors) EnsureUser(_ context.Context, name, email, role string) (*user.User, error) {
	a.calls++
	return &user.User{ID: "44444444-4444-4444-8444-444444444444", Name: name, Email: email, Role: role}, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []string
}

func (o *recordingObserver) ObserveGeneration(result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, result)
}

func newTestService(t *testing.T, gen Generator, topics ...string) (*Service, *posttest.MemoryRepository, *recordingObserver) {
	t.Helper()
	repo := posttest.NewMemoryRepository()
	obs := &recordingObserver{}
	svc, err := NewService(gen, post.NewService(repo, nil, nil), &fakeAuthors{}, obs, topics, "ai-writer@blog.local")
	require.NoError(t, err)
	return svc, repo, obs
}

func TestGenerateOneStoresAIDraft(t *testing.T) {
	svc, repo, obs := newTestService(t, &fakeGenerator{}, "go")

	p, err := svc.GenerateOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, post.StatusDraft, p.Status)
	assert.True(t, p.AIGenerated)
	assert.Equal(t, "44444444-4444-4444-8444-444444444444", p.AuthorID)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, 1, repo.Len())
	assert.Equal(t, []string{metrics.GenerationSucceeded}, obs.results)
}

func TestTopicsRoundRobin(t *testing.T) {
	gen := &fakeGenerator{}
	svc, _, _ := newTestService(t, gen, "a", "b", "c")

	for range 4 {
		_, err := svc.GenerateOne(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, gen.topics)
}

func TestGenerateOneFailure(t *testing.T) {
	svc, repo, obs := newTestService(t, &fakeGenerator{err: ErrContentBlocked}, "go")

	_, err := svc.GenerateOne(context.Background())
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, []string{metrics.GenerationFailed}, obs.results)
}

func TestGenerateOneRejectsOverlap(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{}), started: make(chan struct{})}
	svc, _, obs := newTestService(t, gen, "go")

	done := make(chan error, 1)
	go func() {
		_, err := svc.GenerateOne(context.Background())
		done <- err
	}()
	<-gen.started

	_, err := svc.GenerateOne(context.Background())
	assert.ErrorIs(t, err, ErrInProgress)

	close(gen.release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{metrics.GenerationSkipped, metrics.GenerationSucceeded}, obs.results)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(&fakeGenerator{}, nil, nil, nil, nil, "a@b.c")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewService(&fakeGenerator{}, nil, nil, nil, []string{"go"}, "")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
