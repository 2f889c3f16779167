package handler

import (
	"log/slog"
	"net/http"
	"strings"

	notification "anoa.com/forumboard/internal/modules/notification/service"
	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type NotificationHandler struct {
	service  notification.NotificationService
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewNotificationHandler accepts websocket upgrades from allowedOrigins, a
// comma separated list where "*" allows any origin.
func NewNotificationHandler(service notification.NotificationService, allowedOrigins string, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := map[string]bool{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}

	return &NotificationHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
		logger: logger.With("component", "thread_events"),
	}
}

// ThreadEvents streams comment events of one thread over a websocket.
func (h *NotificationHandler) ThreadEvents(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ResponseError(c, apperror.New(http.StatusBadRequest, "invalid thread id", apperror.ErrBadRequest))
		return
	}
	if !h.service.Enabled() {
		response.ResponseError(c, apperror.New(http.StatusServiceUnavailable, "live updates are not available", nil))
		return
	}

	pubsub, err := h.service.Subscribe(c.Request.Context(), threadID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	defer pubsub.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Debug("websocket write failed", "thread_id", threadID, "error", err)
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
