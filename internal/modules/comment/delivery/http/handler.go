package handler

import (
	"net/http"

	commentDto "anoa.com/forumboard/internal/modules/comment/dto"
	comment "anoa.com/forumboard/internal/modules/comment/service"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/response"
	"anoa.com/forumboard/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	service comment.Service
}

func NewCommentHandler(service comment.Service) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req commentDto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrBadRequest))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.CreateComment(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *CommentHandler) GetCommentsByThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("thread_id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid thread id", apperror.ErrBadRequest))
		return
	}

	tree, err := h.service.GetCommentsByThread(c.Request.Context(), threadID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, tree)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid comment id", apperror.ErrBadRequest))
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), commentID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully", "deleted": commentID})
}
