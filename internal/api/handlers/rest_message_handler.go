package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gawangliliw/sellerhub/internal/api/middleware"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/models"
	"gawangliliw/sellerhub/internal/services"
)

// RestMessageHandler serves the inbox, threads and their live streams.
type RestMessageHandler struct {
	cfg        *config.Config
	messages   services.IMessageService
	taskClient IAsynqClient
}

func NewRestMessageHandler(cfg *config.Config, messages services.IMessageService, taskClient IAsynqClient) *RestMessageHandler {
	return &RestMessageHandler{cfg: cfg, messages: messages, taskClient: taskClient}
}

// ListConversations handles GET /v1/conversations
func (h *RestMessageHandler) ListConversations(c *gin.Context) {
	inbox, err := h.messages.ListInbox(c.Request.Context(), middleware.SellerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": inbox})
}

// ListMessages handles GET /v1/conversations/:id/messages
func (h *RestMessageHandler) ListMessages(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	msgs, err := h.messages.ListMessages(c.Request.Context(), middleware.SellerID(c), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// UploadAttachment handles POST /v1/conversations/:id/attachments. The
// returned attachment is then passed to sendMessage.
func (h *RestMessageHandler) UploadAttachment(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	up, ok := readUpload(c, h.cfg.UploadMaxSizeMB)
	if !ok {
		return
	}
	sellerID := middleware.SellerID(c)
	att, err := h.messages.UploadAttachment(c.Request.Context(), sellerID, conversationID, up.filename, up.contentType, up.data)
	if err != nil {
		respondError(c, err)
		return
	}
	enqueueImage(c, h.taskClient, att.FileKey, up.contentType, sellerID)
	c.JSON(http.StatusOK, gin.H{"data": att})
}

// StreamConversation handles GET /v1/stream/conversations/:id
func (h *RestMessageHandler) StreamConversation(c *gin.Context) {
	conversationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	prepareStream(c)
	err := h.messages.WatchConversation(c.Request.Context(), middleware.SellerID(c), conversationID, clientID(c),
		func(change services.ThreadChange) error {
			return sendEvent(c, "messages", change)
		})
	finishStream(c, err)
}

// StreamInbox handles GET /v1/stream/inbox
func (h *RestMessageHandler) StreamInbox(c *gin.Context) {
	prepareStream(c)
	err := h.messages.WatchInbox(c.Request.Context(), middleware.SellerID(c), clientID(c),
		func(inbox []models.Conversation) error {
			return sendEvent(c, "inbox", inbox)
		})
	finishStream(c, err)
}
