package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler wires account routes to the service.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches account routes. Register and login are public;
// /users/me requires a bearer token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/users/register", h.register)
	rg.POST("/users/login", h.login)
	rg.GET("/users/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "username, email and password are required", nil)
		return
	}

	user, err := h.Svc.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, toResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "email and password are required", nil)
		return
	}

	token, user, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond.OK(c, LoginResponse{Token: token, User: toResponse(user)})
}

func (h *Handler) me(c *gin.Context) {
	ident := middleware.IdentityFromContext(c)
	if ident.ID == 0 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
		return
	}

	user, err := h.Svc.GetByID(c.Request.Context(), ident.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond.OK(c, toResponse(user))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBadCredentials):
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", "email already registered", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected failure", nil)
	}
}
