package handler

import (
	"net/http"

	threadDto "anoa.com/forumboard/internal/modules/thread/dto"
	thread "anoa.com/forumboard/internal/modules/thread/service"
	"anoa.com/forumboard/pkg/apperror"
	commonDto "anoa.com/forumboard/pkg/dto"
	"anoa.com/forumboard/pkg/response"
	"anoa.com/forumboard/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ThreadHandler struct {
	service thread.Service
}

func NewThreadHandler(service thread.Service) *ThreadHandler {
	return &ThreadHandler{service: service}
}

func badRequest(c *gin.Context, err error) {
	response.ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrBadRequest))
}

func threadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid thread id", apperror.ErrBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ThreadHandler) CreateThread(c *gin.Context) {
	var req threadDto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	resp, err := h.service.CreateThread(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *ThreadHandler) ListThreads(c *gin.Context) {
	var q commonDto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.ListThreads(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ThreadHandler) SearchThreads(c *gin.Context) {
	var q threadDto.SearchThreadsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.SearchThreads(c.Request.Context(), q)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetThreadWithComments(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ThreadHandler) UpdateThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	var req threadDto.UpdateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.UpdateThread(c.Request.Context(), id, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	id, ok := threadID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteThread(c.Request.Context(), id); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Thread deleted successfully", "deleted": id})
}
