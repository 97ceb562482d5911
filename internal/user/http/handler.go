package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/blog-backend/internal/pkg/request"
	"github.com/nekogravitycat/blog-backend/internal/pkg/response"
	"github.com/nekogravitycat/blog-backend/internal/user"
)

const (
	MsgEmailTaken         = "User with this email already exists"
	MsgInvalidCredentials = "Invalid email or password"
	MsgUserGone           = "User no longer exists"
)

type UserHandler struct {
	userService user.Service
	jwtManager  *auth.JWTManager
}

func NewHandler(userService user.Service, jwtManager *auth.JWTManager) *UserHandler {
	return &UserHandler{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// Register creates a new account and signs the user in.
func (h *UserHandler) Register(c *gin.Context) {
	req := request.Body[RegisterRequest](c)

	u, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			response.Error(c, apperror.Conflict(MsgEmailTaken))
			return
		}
		response.Error(c, apperror.Internal(err, "failed to create user"))
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		response.Error(c, apperror.Internal(err, "failed to generate token"))
		return
	}

	response.Created(c, AuthResponse{User: NewUserResponse(u), Token: token}, "User registered successfully")
}

// Login authenticates a user using email and password.
// On success, it returns a JWT access token and the user profile.
func (h *UserHandler) Login(c *gin.Context) {
	req := request.Body[LoginRequest](c)

	u, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Do not reveal which of email or password was wrong.
		if errors.Is(err, user.ErrInvalidCredentials) || errors.Is(err, user.ErrNotFound) {
			response.Error(c, apperror.Unauthorized(MsgInvalidCredentials))
			return
		}
		response.Error(c, apperror.Internal(err, "login failed"))
		return
	}

	token, err := h.jwtManager.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		response.Error(c, apperror.Internal(err, "failed to generate token"))
		return
	}

	response.JSON(c, http.StatusOK, AuthResponse{User: NewUserResponse(u), Token: token}, "Login successful")
}

// Me retrieves the profile of the currently authenticated user.
func (h *UserHandler) Me(c *gin.Context) {
	userID := auth.GetUserID(c)
	if userID == "" {
		response.Error(c, apperror.Unauthorized(auth.MsgNoToken))
		return
	}

	u, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		// The token outlived its account.
		if errors.Is(err, user.ErrNotFound) {
			response.Error(c, apperror.Unauthorized(MsgUserGone))
			return
		}
		response.Error(c, apperror.Internal(err, "failed to load user"))
		return
	}

	response.OK(c, MeResponse{User: NewUserResponse(u)})
}
