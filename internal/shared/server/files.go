package server

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/server/respond"
	"docvault-backend/internal/shared/storage/object"
	localstore "docvault-backend/internal/shared/storage/object/local"
)

// registerFileRoutes serves local-store objects behind HMAC-signed links.
// The exp/sig query pair is produced by the store's SignedURL; anything
// tampered or expired is rejected before touching the filesystem.
func registerFileRoutes(rg *gin.RouterGroup, store *localstore.Store) {
	rg.GET("/files/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "missing or invalid exp", nil)
			return
		}
		sig := c.Query("sig")

		if !store.Verify(key, exp, sig) {
			respond.Error(c, http.StatusForbidden, "forbidden", "invalid or expired link", nil)
			return
		}

		f, err := store.Open(key)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open file", nil)
			return
		}
		defer f.Close()

		c.Header("Content-Type", object.InferContentType(key))
		c.Header("Content-Disposition", "inline; filename=\""+path.Base(key)+"\"")
		c.Status(http.StatusOK)
		io.Copy(c.Writer, f)
	})
}
