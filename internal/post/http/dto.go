package http

import (
	"strings"
	"time"

	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
	"github.com/nekogravitycat/blog-backend/internal/post"
)

// ListPostsRequest defines query parameters for listing posts.
type ListPostsRequest struct {
	request.Pagination
	Sort   string   `form:"sort" binding:"omitempty,oneof=createdAt -createdAt updatedAt -updatedAt publishedAt -publishedAt title -title"`
	Status string   `form:"status" binding:"omitempty,oneof=draft published"`
	Tags   []string `form:"tags"`
	Search string   `form:"search" binding:"omitempty,max=200"`
	Author string   `form:"author" binding:"omitempty,uuid"`
}

// Filter converts the query into a post.Filter. Tags may be repeated or
// comma separated.
func (r ListPostsRequest) Filter() post.Filter {
	var tags []string
	for _, t := range r.Tags {
		tags = append(tags, strings.Split(t, ",")...)
	}
	return post.Filter{
		Status:   r.Status,
		Tags:     tags,
		Search:   r.Search,
		AuthorID: r.Author,
		Sort:     r.Sort,
		Offset:   r.Offset(),
		Limit:    r.Limit,
	}
}

// CreatePostRequest defines the payload for creating a post.
type CreatePostRequest struct {
	Title   string   `json:"title" binding:"required,min=5,max=200"`
	Content string   `json:"content" binding:"required,min=20"`
	Summary string   `json:"summary" binding:"max=500"`
	Tags    []string `json:"tags" binding:"max=20,dive,max=50"`
	Status  string   `json:"status" binding:"oneof=draft published"`
}

func (r *CreatePostRequest) ApplyDefaults() {
	if r.Status == "" {
		r.Status = post.StatusDraft
	}
}

// UpdatePostRequest defines fields allowed to be updated via PUT /posts/:id.
// Use pointers to distinguish between "field not sent" and "field sent as empty".
type UpdatePostRequest struct {
	Title   *string  `json:"title" binding:"omitempty,min=5,max=200"`
	Content *string  `json:"content" binding:"omitempty,min=20"`
	Summary *string  `json:"summary" binding:"omitempty,max=500"`
	Tags    []string `json:"tags" binding:"omitempty,max=20,dive,max=50"`
	Status  *string  `json:"status" binding:"omitempty,oneof=draft published"`
}

func (r UpdatePostRequest) toService() post.UpdateRequest {
	req := post.UpdateRequest{
		Title:   r.Title,
		Content: r.Content,
		Summary: r.Summary,
		Status:  r.Status,
	}
	// An explicit empty array clears the tags; an absent field keeps them.
	if r.Tags != nil {
		tags := r.Tags
		req.Tags = &tags
	}
	return req
}

// PostResponse is the shape of post data returned in API responses.
type PostResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Summary     string     `json:"summary"`
	Tags        []string   `json:"tags"`
	Status      string     `json:"status"`
	Author      AuthorTag  `json:"author"`
	AIGenerated bool       `json:"aiGenerated"`
	CoverURL    *string    `json:"coverImageUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PublishedAt *time.Time `json:"publishedAt"`
}

// AuthorTag is a brief representation of the post author.
type AuthorTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewPostResponse converts a domain post to PostResponse used by the API.
func NewPostResponse(p *post.Post) PostResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	var coverURL *string
	if p.CoverImagePath != nil {
		u := "/api/posts/" + p.ID + "/cover"
		coverURL = &u
	}

	return PostResponse{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Summary:     p.Summary,
		Tags:        tags,
		Status:      p.Status,
		Author:      AuthorTag{ID: p.AuthorID, Name: p.AuthorName},
		AIGenerated: p.AIGenerated,
		CoverURL:    coverURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PublishedAt: p.PublishedAt,
	}
}
