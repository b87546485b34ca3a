package handler

import (
	"errors"
	"net/http"
	"quiz-bot-go/internal/dispatcher"
	"quiz-bot-go/internal/transport"
	"quiz-bot-go/pkg/log"
	"time"

	"github.com/gin-gonic/gin"
)

// MessageHandler 接收聊天平台通过 webhook 推送的入站消息。
type MessageHandler struct {
	inbound transport.Inbound
}

// NewMessageHandler 创建一个新的 MessageHandler。
func NewMessageHandler(inbound transport.Inbound) *MessageHandler {
	return &MessageHandler{inbound: inbound}
}

// Receive 把消息排进处理队列后立即返回 202，回复通过出站通道异步发送。
func (h *MessageHandler) Receive(c *gin.Context) {
	var msg transport.InboundMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		log.Warnf("Receive: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：from 不能为空", "data": nil})
		return
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	if err := h.inbound.Submit(c.Request.Context(), msg); err != nil {
		if errors.Is(err, dispatcher.ErrStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "服务正在关闭", "data": nil})
			return
		}
		log.Error("Receive: failed to submit message", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "消息提交失败", "data": nil})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "accepted", "data": nil})
}
