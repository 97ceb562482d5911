package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/generation"
	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
	"github.com/nekogravitycat/blog-backend/internal/post"
)

const (
	MsgPostNotFound   = "Post not found"
	MsgNotPostOwner   = "Not authorized to modify this post"
	MsgNoCover        = "Post has no cover image"
	MsgInvalidCover   = "Cover must be a JPEG, PNG or GIF image"
	MsgCoverMissing   = "A cover file is required in the \"cover\" form field"
	MsgCoverTooLarge  = "Cover image is too large"
	MsgGenerationOff  = "Content generation is not configured"
	MsgGenerated      = "Draft post generated"
	MsgGenerationBusy = "A post generation is already running"
)

// Generator creates a post from generated content on demand.
type Generator interface {
	GenerateOne(ctx context.Context) (*post.Post, error)
}

type Handler struct {
	service        post.Service
	generator      Generator
	maxUploadBytes int64
}

// NewHandler creates the posts handler. generator may be nil when content
// generation is disabled.
func NewHandler(service post.Service, generator Generator, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		generator:      generator,
		maxUploadBytes: maxUploadBytes,
	}
}

func actorOf(c *gin.Context) post.Actor {
	id := auth.GetIdentity(c)
	return post.Actor{UserID: id.UserID, Admin: id.IsAdmin()}
}

// forward maps post errors onto API errors.
func forward(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, post.ErrNotFound):
		response.Error(c, apperror.NotFound(MsgPostNotFound))
	case errors.Is(err, post.ErrForbidden):
		response.Error(c, apperror.Forbidden(MsgNotPostOwner))
	case errors.Is(err, post.ErrNoCover):
		response.Error(c, apperror.NotFound(MsgNoCover))
	case errors.Is(err, post.ErrInvalidCover):
		response.Error(c, apperror.BadRequest(MsgInvalidCover))
	default:
		response.Error(c, apperror.Internal(err, "failed to "+what))
	}
}

func (h *Handler) List(c *gin.Context) {
	req := request.Query[ListPostsRequest](c)

	list, total, err := h.service.List(c.Request.Context(), actorOf(c), req.Filter())
	if err != nil {
		forward(c, err, "list posts")
		return
	}

	items := make([]PostResponse, len(list))
	for i, p := range list {
		items[i] = NewPostResponse(p)
	}

	response.OK(c, response.NewPageResponse(items, req.Page, req.Limit, total))
}

func (h *Handler) Get(c *gin.Context) {
	uri := request.Params[request.ByIDRequest](c)

	p, err := h.service.GetByID(c.Request.Context(), actorOf(c), uri.ID)
	if err != nil {
		forward(c, err, "get post")
		return
	}

	response.OK(c, NewPostResponse(p))
}

func (h *Handler) Create(c *gin.Context) {
	body := request.Body[CreatePostRequest](c)

	p, err := h.service.Create(c.Request.Context(), post.CreateRequest{
		Title:    body.Title,
		Content:  body.Content,
		Summary:  body.Summary,
		Tags:     body.Tags,
		Status:   body.Status,
		AuthorID: auth.GetUserID(c),
	})
	if err != nil {
		forward(c, err, "create post")
		return
	}

	response.Created(c, NewPostResponse(p), "Post created successfully")
}

func (h *Handler) Update(c *gin.Context) {
	uri := request.Params[request.ByIDRequest](c)
	body := request.Body[UpdatePostRequest](c)

	p, err := h.service.Update(c.Request.Context(), actorOf(c), uri.ID, body.toService())
	if err != nil {
		forward(c, err, "update post")
		return
	}

	response.JSON(c, http.StatusOK, NewPostResponse(p), "Post updated successfully")
}

func (h *Handler) Delete(c *gin.Context) {
	uri := request.Params[request.ByIDRequest](c)

	if err := h.service.Delete(c.Request.Context(), actorOf(c), uri.ID); err != nil {
		forward(c, err, "delete post")
		return
	}

	c.Status(http.StatusNoContent)
}

// UploadCover replaces the cover image from the multipart field "cover".
func (h *Handler) UploadCover(c *gin.Context) {
	uri := request.Params[request.ByIDRequest](c)

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("cover")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.PayloadTooLarge(MsgCoverTooLarge))
			return
		}
		response.Error(c, apperror.BadRequest(MsgCoverMissing))
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Error(c, apperror.Internal(err, "failed to read upload"))
		return
	}
	defer f.Close()

	p, err := h.service.SetCover(c.Request.Context(), actorOf(c), uri.ID, f)
	if err != nil {
		forward(c, err, "set cover")
		return
	}

	response.JSON(c, http.StatusOK, NewPostResponse(p), "Cover updated successfully")
}

func (h *Handler) GetCover(c *gin.Context) {
	uri := request.Params[request.ByIDRequest](c)

	rc, err := h.service.GetCover(c.Request.Context(), actorOf(c), uri.ID)
	if err != nil {
		forward(c, err, "get cover")
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// Generate runs one content generation now and returns the new draft.
func (h *Handler) Generate(c *gin.Context) {
	if h.generator == nil {
		response.Error(c, apperror.New(http.StatusServiceUnavailable, MsgGenerationOff))
		return
	}

	p, err := h.generator.GenerateOne(c.Request.Context())
	if err != nil {
		if errors.Is(err, generation.ErrInProgress) {
			response.Error(c, apperror.Conflict(MsgGenerationBusy))
			return
		}
		response.Error(c, apperror.Wrap(err, http.StatusBadGateway, "Post generation failed"))
		return
	}

	response.JSON(c, http.StatusAccepted, NewPostResponse(p), MsgGenerated)
}
