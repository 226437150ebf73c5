package handler

import (
	"net/http"

	"campus-relay/internal/services"
	"campus-relay/internal/transport/httpdto"
	relay_errors "campus-relay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	delivery *services.DeliveryService
	messages *services.MessageService
}

func NewMessageHandler(delivery *services.DeliveryService, messages *services.MessageService) *MessageHandler {
	return &MessageHandler{delivery: delivery, messages: messages}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, relay_errors.Invalidf("invalid request body"))
		return
	}

	msg, err := h.delivery.SendMessage(c.Request.Context(), services.SendMessageInput{
		SenderID:    userID,
		RecipientID: req.RecipientID,
		Text:        req.Text,
		ListingID:   req.ListingID,
		TextbookID:  req.TextbookID,
		NoteID:      req.NoteID,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewMessageResponse(msg)))
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	thread, err := h.messages.GetMessages(c.Request.Context(), userID,
		c.Query("otherUserId"), c.Query("listingId"), c.Query("textbookId"), c.Query("noteId"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewMessageResponses(thread)))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	var req httpdto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, relay_errors.Invalidf("invalid request body"))
		return
	}

	updated, err := h.messages.MarkRead(c.Request.Context(), userID, req.MessageIDs)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Updated: updated}))
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}

	count, err := h.messages.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}
