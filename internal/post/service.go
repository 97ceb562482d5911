package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/blog-backend/internal/pkg/logger"
	"github.com/nekogravitycat/blog-backend/internal/pkg/storage"
)

type CreateRequest struct {
	Title       string
	Content     string
	Summary     string
	Tags        []string
	Status      string
	AuthorID    string
	AIGenerated bool
}

// UpdateRequest holds the fields to change; nil fields are left as they are.
type UpdateRequest struct {
	Title   *string
	Content *string
	Summary *string
	Tags    *[]string
	Status  *string
}

// Service defines business logic related to posts.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Post, error)
	GetByID(ctx context.Context, actor Actor, id string) (*Post, error)
	List(ctx context.Context, actor Actor, filter Filter) ([]*Post, int, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Post, error)
	Delete(ctx context.Context, actor Actor, id string) error
	SetCover(ctx context.Context, actor Actor, id string, content io.Reader) (*Post, error)
	GetCover(ctx context.Context, actor Actor, id string) (io.ReadCloser, error)
}

type service struct {
	repo   Repository
	store  storage.Storage
	images *storage.ImageProcessor
	now    func() time.Time
}

// NewService creates a new post Service.
func NewService(repo Repository, store storage.Storage, images *storage.ImageProcessor) Service {
	return &service{
		repo:   repo,
		store:  store,
		images: images,
		now:    time.Now,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Post, error) {
	p := &Post{
		Title:       strings.TrimSpace(req.Title),
		Content:     req.Content,
		Summary:     strings.TrimSpace(req.Summary),
		Tags:        normalizeTags(req.Tags),
		Status:      req.Status,
		AuthorID:    req.AuthorID,
		AIGenerated: req.AIGenerated,
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
	if p.IsPublished() {
		now := s.now().UTC()
		p.PublishedAt = &now
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("post created",
		"post_id", p.ID,
		"author_id", p.AuthorID,
		"status", p.Status,
		"ai_generated", p.AIGenerated,
	)
	return p, nil
}

func (s *service) GetByID(ctx context.Context, actor Actor, id string) (*Post, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Hidden drafts look exactly like missing posts.
	if !actor.CanView(p) {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *service) List(ctx context.Context, actor Actor, filter Filter) ([]*Post, int, error) {
	filter.Tags = normalizeTags(filter.Tags)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.List(ctx, actor, filter)
}

func (s *service) Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Post, error) {
	p, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		p.Content = *req.Content
	}
	if req.Summary != nil {
		p.Summary = strings.TrimSpace(*req.Summary)
	}
	if req.Tags != nil {
		p.Tags = normalizeTags(*req.Tags)
	}
	if req.Status != nil {
		p.Status = *req.Status
		// The first publication date is kept across unpublish/republish.
		if p.IsPublished() && p.PublishedAt == nil {
			now := s.now().UTC()
			p.PublishedAt = &now
		}
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, id string) error {
	p, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if p.CoverImagePath != nil {
		s.removeFile(ctx, *p.CoverImagePath)
	}

	logger.FromContext(ctx).Info("post deleted", "post_id", id, "by", actor.UserID)
	return nil
}

func (s *service) SetCover(ctx context.Context, actor Actor, id string, content io.Reader) (*Post, error) {
	p, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	img, err := s.images.Fit(content, CoverWidth, CoverHeight)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCover, err)
		}
		return nil, err
	}

	// A fresh name per upload keeps cached copies of the old cover valid.
	path := fmt.Sprintf("posts/%s/cover-%s.jpg", p.ID, uuid.NewString())
	if err := s.store.Save(ctx, path, img); err != nil {
		return nil, fmt.Errorf("failed to save cover: %w", err)
	}

	old := p.CoverImagePath
	p.CoverImagePath = &path
	if err := s.repo.Update(ctx, p); err != nil {
		s.removeFile(ctx, path)
		return nil, err
	}

	if old != nil {
		s.removeFile(ctx, *old)
	}
	return p, nil
}

func (s *service) GetCover(ctx context.Context, actor Actor, id string) (io.ReadCloser, error) {
	p, err := s.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.CoverImagePath == nil {
		return nil, ErrNoCover
	}

	rc, err := s.store.Get(ctx, *p.CoverImagePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoCover
		}
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	return rc, nil
}

// editable loads the post and checks that actor may change it.
func (s *service) editable(ctx context.Context, actor Actor, id string) (*Post, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(p) {
		return nil, ErrNotFound
	}
	if !actor.CanEdit(p) {
		return nil, ErrForbidden
	}
	return p, nil
}

// removeFile deletes a stored file, logging failures. Orphans are harmless.
func (s *service) removeFile(ctx context.Context, path string) {
	if err := s.store.Delete(ctx, path); err != nil {
		logger.FromContext(ctx).Warn("failed to delete stored file", "path", path, "error", err)
	}
}

// normalizeTags trims tags, drops empty ones and removes duplicates while
// keeping the first occurrence order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
