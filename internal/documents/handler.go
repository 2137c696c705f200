package documents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.read)
	rg.PATCH("/documents/:id", h.replace)
	rg.DELETE("/documents/:id", h.remove)
}

func (h *Handler) upload(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("document")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	name := c.PostForm("name")

	doc, err := h.Svc.Upload(c.Request.Context(), caller, name, fileHeader.Filename, file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	metrics.IncDocumentsUploaded()
	c.Set("documentId", doc.ID)
	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	limit, offset := pageParams(c)

	total, docs, err := h.Svc.List(c.Request.Context(), caller, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respond.OK(c, toPageResponse(total, docs))
}

func (h *Handler) read(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id, ok := docID(c)
	if !ok {
		return
	}

	link, err := h.Svc.Read(c.Request.Context(), caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("documentId", id)
	respond.OK(c, FileLinkResponse{URL: link.URL, Name: link.Name})
}

func (h *Handler) replace(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id, ok := docID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	newName := c.PostForm("name")
	var (
		fileName string
		doc      Document
		err      error
	)
	if fileHeader, ferr := c.FormFile("document"); ferr == nil {
		file, oerr := fileHeader.Open()
		if oerr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer file.Close()
		fileName = fileHeader.Filename
		doc, err = h.Svc.ReplaceContent(c.Request.Context(), caller, id, newName, fileName, file)
	} else {
		doc, err = h.Svc.ReplaceContent(c.Request.Context(), caller, id, newName, "", nil)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("documentId", id)
	respond.OK(c, toResponse(doc))
}

func (h *Handler) remove(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id, ok := docID(c)
	if !ok {
		return
	}

	if err := h.Svc.Remove(c.Request.Context(), caller, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Set("documentId", id)
	respond.OK(c, gin.H{"message": "Document deleted successfully."})
}

// respondError maps service failures onto the error envelope. NotFound and
// Forbidden keep their specific statuses; everything else surfaces as a bad
// request carrying the upstream message.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not authorized for this document", nil)
	case errors.Is(err, ErrConflict):
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
