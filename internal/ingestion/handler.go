package ingestion

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler wires ingestion routes to the coordinator service.
type Handler struct {
	Svc *Service

	// WebhookToken, when non-empty, must match the X-Callback-Token header
	// on status callbacks.
	WebhookToken string

	// Limiter throttles the unauthenticated webhook per client IP.
	Limiter *middleware.RateLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, webhookToken string, limiter *middleware.RateLimiter) *Handler {
	return &Handler{Svc: svc, WebhookToken: webhookToken, Limiter: limiter}
}

// RegisterRoutes attaches ingestion routes to the router group. The status
// webhook is reachable without a bearer token; triggering requires an
// elevated role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	webhookRule := middleware.RateLimitRule{Rate: 5, Burst: 20}
	rg.POST("/ingestion/status", middleware.RateLimit(h.Limiter, webhookRule), h.statusCallback)
	rg.GET("/ingestion/trigger/:id", middleware.RequireRoles(auth.RoleAdmin, auth.RoleEditor), h.trigger)
	rg.GET("/ingestion/document/:id", h.documentStatus)
	rg.GET("/ingestion/status/:status", h.listByStatus)
}

func (h *Handler) statusCallback(c *gin.Context) {
	if h.WebhookToken != "" {
		token := c.GetHeader("X-Callback-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.WebhookToken)) != 1 {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid callback token", nil)
			return
		}
	}

	var payload CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status and document_id are required", nil)
		return
	}

	if err := h.Svc.ApplyCallback(c.Request.Context(), payload); err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("documentId", payload.DocumentID)
	c.Set("documentStatus", payload.Status)
	respond.OK(c, gin.H{"message": "Status updated."})
}

func (h *Handler) trigger(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id, ok := docID(c)
	if !ok {
		return
	}

	resp, err := h.Svc.Trigger(c.Request.Context(), caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("documentId", id)
	respond.JSON(c, http.StatusAccepted, resp)
}

func (h *Handler) documentStatus(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id, ok := docID(c)
	if !ok {
		return
	}

	resp, err := h.Svc.StatusFor(c.Request.Context(), caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) listByStatus(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	limit, offset := pageParams(c)

	total, docs, err := h.Svc.PageByStatus(c.Request.Context(), caller, c.Param("status"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	entries := make([]StatusResponse, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, StatusResponse{DocumentID: doc.ID, Status: doc.Status.String()})
	}
	respond.OK(c, gin.H{"totalRecords": total, "entries": entries})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "processor_unavailable", "ingestion processor is unavailable", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, documents.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not authorized for this document", nil)
	case errors.Is(err, documents.ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
}

func docID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid document id", nil)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
