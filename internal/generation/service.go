package generation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nekogravitycat/blog-backend/internal/metrics"
	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
	"github.com/nekogravitycat/blog-backend/internal/post"
	"github.com/nekogravitycat/blog-backend/internal/user"
)

// AuthorName is the display name of the account generated posts belong to.
const AuthorName = "AI Writer"

// PostCreator stores new posts.
type PostCreator interface {
	Create(ctx context.Context, req post.CreateRequest) (*post.Post, error)
}

// AuthorProvider returns the account generated posts are attributed to.
type AuthorProvider interface {
	EnsureUser(ctx context.Context, name, email, role string) (*user.User, error)
}

// Observer records generation runs.
type Observer interface {
	ObserveGeneration(result string, took time.Duration)
}

// Service turns generated drafts into stored posts.
type Service struct {
	generator   Generator
	posts       PostCreator
	authors     AuthorProvider
	observer    Observer
	topics      []string
	authorEmail string

	next    atomic.Uint64
	running sync.Mutex
	now     func() time.Time
}

// NewService creates a generation Service cycling through topics.
func NewService(generator Generator, posts PostCreator, authors AuthorProvider, observer Observer, topics []string, authorEmail string) (*Service, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", ErrInvalidConfig)
	}
	if authorEmail == "" {
		return nil, fmt.Errorf("%w: author email cannot be empty", ErrInvalidConfig)
	}
	return &Service{
		generator:   generator,
		posts:       posts,
		authors:     authors,
		observer:    observer,
		topics:      topics,
		authorEmail: authorEmail,
		now:         time.Now,
	}, nil
}

// NextTopic returns the topic for the next run, round robin.
func (s *Service) NextTopic() string {
	i := s.next.Add(1) - 1
	return s.topics[i%uint64(len(s.topics))]
}

// GenerateOne generates a post and stores it as an AI generated draft.
// Only one generation runs at a time; a concurrent call gets ErrInProgress.
func (s *Service) GenerateOne(ctx context.Context) (*post.Post, error) {
	if !s.running.TryLock() {
		s.observe(metrics.GenerationSkipped, 0)
		return nil, ErrInProgress
	}
	defer s.running.Unlock()

	log := logger.FromContext(ctx)
	start := s.now()
	topic := s.NextTopic()
	log.Info("generating post", "topic", topic)

	p, err := s.generate(ctx, topic)
	took := s.now().Sub(start)
	if err != nil {
		s.observe(metrics.GenerationFailed, took)
		log.Error("post generation failed", "topic", topic, "duration", took, "error", err)
		return nil, err
	}

	s.observe(metrics.GenerationSucceeded, took)
	log.Info("post generated", "topic", topic, "post_id", p.ID, "duration", took)
	return p, nil
}

func (s *Service) generate(ctx context.Context, topic string) (*post.Post, error) {
	author, err := s.authors.EnsureUser(ctx, AuthorName, s.authorEmail, user.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve generation author: %w", err)
	}

	draft, err := s.generator.GeneratePost(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to generate post about %q: %w", topic, err)
	}

	p, err := s.posts.Create(ctx, post.CreateRequest{
		Title:       draft.Title,
		Content:     draft.Content,
		Summary:     draft.Summary,
		Tags:        draft.Tags,
		Status:      post.StatusDraft,
		AuthorID:    author.ID,
		AIGenerated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store generated post: %w", err)
	}
	return p, nil
}

func (s *Service) observe(result string, took time.Duration) {
	if s.observer != nil {
		s.observer.ObserveGeneration(result, took)
	}
}
