package handler

import (
	"net/http"

	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewConversationResponses(items, userID)))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	conv, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewConversationResponse(conv, userID)))
}
