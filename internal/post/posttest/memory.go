// Package posttest provides an in-memory post repository for tests.
package posttest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nekogravitycat/blog-backend/internal/post"
)

// MemoryRepository is a post.Repository kept in a map.
type MemoryRepository struct {
	mu      sync.Mutex
	posts   map[string]*post.Post
	seq     int
	Authors map[string]string // author id -> name
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		posts:   map[string]*post.Post{},
		Authors: map[string]string{},
	}
}

func (r *MemoryRepository) Create(_ context.Context, p *post.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	p.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", r.seq)
	now := time.Now().UTC().Add(time.Duration(r.seq) * time.Millisecond)
	p.CreatedAt = now
	p.UpdatedAt = now
	p.AuthorName = r.Authors[p.AuthorID]
	r.posts[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, post.ErrNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) List(_ context.Context, viewer post.Actor, f post.Filter) ([]*post.Post, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*post.Post
	for _, p := range r.posts {
		if !viewer.CanView(p) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(p.Tags, t) }) {
			continue
		}
		if f.Search != "" && !containsFold(p.Title+" "+p.Summary+" "+p.Content, f.Search) {
			continue
		}
		matched = append(matched, clone(p))
	}

	sort.Slice(matched, func(i, j int) bool {
		if f.Sort == "title" {
			return matched[i].Title < matched[j].Title
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (r *MemoryRepository) Update(_ context.Context, p *post.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[p.ID]; !ok {
		return post.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	r.posts[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return post.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

// Len returns the number of stored posts.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posts)
}

func clone(p *post.Post) *post.Post {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
