package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"techrepair-server/internal/metrics"
	"techrepair-server/internal/model"
	"techrepair-server/internal/relay"
	"techrepair-server/internal/store"
)

type ChatHandler struct {
	Store *store.Store
	Relay Broadcaster
	Log   zerolog.Logger
}

func messageJSON(msg model.Message) gin.H {
	return gin.H{
		"id":         msg.ID,
		"senderType": msg.SenderType,
		"content":    msg.Content,
		"createdAt":  msg.CreatedAt,
	}
}

// Messages returns the session's chat log, oldest first.
func (h *ChatHandler) Messages(c *gin.Context) {
	msgs, err := h.Store.ListMessages(c.Param("accessCode"))
	if err != nil {
		writeStoreError(c, err)
		return
	}

	resp := make([]gin.H, 0, len(msgs))
	for _, msg := range msgs {
		resp = append(resp, messageJSON(msg))
	}
	c.JSON(http.StatusOK, resp)
}

type sendMessageBody struct {
	Content    string           `json:"content"`
	SenderType model.SenderType `json:"senderType"`
}

// Send persists a message over HTTP and fans it out through the same relay
// broadcast the realtime path uses.
func (h *ChatHandler) Send(c *gin.Context) {
	var body sendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}

	code := c.Param("accessCode")
	msg, err := h.Store.AppendMessage(code, body.SenderType, body.Content, time.Now().UnixMilli())
	if err != nil {
		writeStoreError(c, err)
		return
	}

	metrics.MessagesRelayed.WithLabelValues("http").Inc()
	h.Log.Info().Str("accessCode", code).Str("senderType", string(msg.SenderType)).Msg("message sent")
	if h.Relay != nil {
		h.Relay.Broadcast(code, relay.EventMessage, gin.H{
			"id":         msg.ID,
			"content":    msg.Content,
			"senderType": msg.SenderType,
			"createdAt":  msg.CreatedAt,
		})
	}
	c.JSON(http.StatusCreated, messageJSON(msg))
}
