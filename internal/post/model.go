package post

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("post not found")
	ErrForbidden    = errors.New("not allowed to modify this post")
	ErrNoCover      = errors.New("post has no cover image")
	ErrInvalidCover = errors.New("cover is not a supported image")
)

// Statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Cover images are scaled to fit these bounds.
const (
	CoverWidth  = 1200
	CoverHeight = 630
)

// Post is a blog article.
type Post struct {
	ID             string // UUID
	Title          string
	Content        string
	Summary        string
	Tags           []string
	Status         string
	AuthorID       string
	AuthorName     string
	AIGenerated    bool
	CoverImagePath *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PublishedAt    *time.Time
}

// IsPublished reports whether the post is visible to everyone.
func (p *Post) IsPublished() bool { return p.Status == StatusPublished }

// Actor is the caller a post operation runs on behalf of. The zero value is
// an anonymous visitor.
type Actor struct {
	UserID string
	Admin  bool
}

// Anonymous reports whether no user is signed in.
func (a Actor) Anonymous() bool { return a.UserID == "" }

// CanView reports whether a may read p. Drafts are private to their author
// and to admins.
func (a Actor) CanView(p *Post) bool {
	return p.IsPublished() || a.CanEdit(p)
}

// CanEdit reports whether a may modify p.
func (a Actor) CanEdit(p *Post) bool {
	if a.Anonymous() {
		return false
	}
	return a.Admin || p.AuthorID == a.UserID
}

// sortColumns maps the public sort keys to columns. A leading "-" on a key
// sorts descending.
var sortColumns = map[string]string{
	"createdAt":   "p.created_at",
	"updatedAt":   "p.updated_at",
	"publishedAt": "p.published_at",
	"title":       "p.title",
}

// DefaultSort lists the newest posts first.
const DefaultSort = "-createdAt"

// Filter defines parameters for listing posts.
type Filter struct {
	Status   string
	Tags     []string // any of
	Search   string
	AuthorID string
	Sort     string
	Offset   int
	Limit    int
}
