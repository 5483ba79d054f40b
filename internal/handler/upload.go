package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
	"github.com/luxora/storefront-api/internal/service"
)

const imageField = "image"

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

func (h *UploadHandler) Upload(c *gin.Context) {
	header, err := c.FormFile(imageField)
	if err != nil {
		fail(c, apperror.BadRequest("Please upload an image"))
		return
	}
	if header.Size > service.MaxImageSize {
		fail(c, apperror.BadRequest("Image must be 5MB or smaller"))
		return
	}

	file, err := header.Open()
	if err != nil {
		fail(c, apperror.BadRequest("Please upload an image"))
		return
	}
	defer file.Close()

	url, publicID, err := h.uploadService.Upload(
		c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), header.Size, file,
	)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.UploadResponse{Success: true, URL: url, PublicID: publicID})
}

func (h *UploadHandler) Delete(c *gin.Context) {
	if err := h.uploadService.Delete(c.Request.Context(), c.Param("publicId")); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Image deleted successfully", nil)
}
