package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/internal/repo/memory"
	"github.com/resplendentHSHI/AR-Glasses-Tour-Guide/pkg/types"
)

type PhotosHandler struct {
	Repo *memory.PhotoRepo
}

func NewPhotosHandler(repo *memory.PhotoRepo) *PhotosHandler {
	return &PhotosHandler{Repo: repo}
}

// Latest reports metadata for the user's most recent photo.
func (h *PhotosHandler) Latest(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, types.ErrorResp{Error: "unauthorized"})
		return
	}
	p, ok := h.Repo.Get(userID)
	if !ok {
		c.JSON(http.StatusNotFound, types.ErrorResp{Error: "no photo available"})
		return
	}
	c.JSON(http.StatusOK, types.LatestPhotoResp{
		RequestID: p.RequestID,
		Timestamp: p.Timestamp.UnixMilli(),
		HasPhoto:  true,
	})
}

// ByRequestID serves the photo bytes only when the path id matches the cached
// photo, so a stale or newer photo is never returned under an old id.
func (h *PhotosHandler) ByRequestID(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, types.ErrorResp{Error: "unauthorized"})
		return
	}
	p, ok := h.Repo.Get(userID)
	if !ok || p.RequestID != c.Param("requestId") {
		c.JSON(http.StatusNotFound, types.ErrorResp{Error: "photo not found"})
		return
	}
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(http.StatusOK, p.MIMEType, p.Data)
}
