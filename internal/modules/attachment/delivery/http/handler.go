package handler

import (
	"net/http"

	attachment "anoa.com/forumboard/internal/modules/attachment/service"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	service attachment.AttachmentService
}

func NewAttachmentHandler(service attachment.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

func (h *AttachmentHandler) UploadAttachment(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "No file provided", apperror.ErrBadRequest))
		return
	}

	resp, err := h.service.UploadAttachment(c.Request.Context(), file)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
