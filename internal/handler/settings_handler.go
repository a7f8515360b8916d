package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"zenfocus/backend/internal/assets"
	apperrors "zenfocus/backend/internal/errors"
	"zenfocus/backend/internal/model"
	"zenfocus/backend/internal/service"
)

// uploadField is the multipart field carrying a background image.
const uploadField = "image"

type SettingsHandler struct {
	settingsService *service.SettingsService
	assetService    *service.AssetService
}

func NewSettingsHandler(settingsService *service.SettingsService, assetService *service.AssetService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, assetService: assetService}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	settings, apiErr := h.settingsService.Get(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var patch model.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		writeInvalidJSON(c)
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}
	settings, apiErr := h.settingsService.Update(c.Request.Context(), userID, patch)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Presets(c *gin.Context) {
	c.JSON(http.StatusOK, h.settingsService.Presets())
}

func (h *SettingsHandler) UploadBackground(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	// Allow for multipart framing on top of the image itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, assets.MaxImageBytes+1<<20)

	header, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(c, apperrors.TooLarge("image_too_large", "image must be 5MB or smaller"))
			return
		}
		writeError(c, apperrors.BadRequest("missing_file", "multipart field \"image\" is required"))
		return
	}
	if header.Size > assets.MaxImageBytes {
		writeError(c, apperrors.TooLarge("image_too_large", "image must be 5MB or smaller"))
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, apperrors.BadRequest("invalid_file", "uploaded file could not be read"))
		return
	}
	defer file.Close()

	settings, apiErr := h.assetService.Upload(c.Request.Context(), userID, file)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) RemoveBackground(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	settings, apiErr := h.assetService.Remove(c.Request.Context(), userID)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
