package handler

import (
	"net/http"

	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List serves GET /v1/notifications?unread=true&limit=n.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	unreadOnly, err := parseBool(c.Query("unread"))
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		fail(c, err)
		return
	}

	items, err := h.service.List(c.Request.Context(), userID, unreadOnly, limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewNotificationResponses(items)))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewNotificationResponse(n)))
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkAllReadResponse{Updated: updated}))
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
