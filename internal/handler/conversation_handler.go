package handler

import (
	"net/http"
	"quiz-bot-go/internal/service"
	"quiz-bot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理后台查看聊天记录的 API 请求。
type ConversationHandler struct {
	conversations service.ConversationService
	reports       service.ReportService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(conversations service.ConversationService, reports service.ReportService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, reports: reports}
}

// ListConversations 返回所有保存了聊天记录的手机号。
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	phones, err := h.conversations.ListPhoneNumbers(c.Request.Context())
	if err != nil {
		log.Error("ListConversations: Failed to list conversations", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to list conversations", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": phones})
}

// GetConversation 返回某个手机号的聊天记录，可按 start_date / end_date 过滤。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	startTime, endTime, ok := dateRange(c)
	if !ok {
		return
	}

	history, err := h.reports.GetConversation(c.Request.Context(), c.Param("phone"), startTime, endTime)
	if err != nil {
		log.Error("GetConversation: Failed to retrieve conversation history", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    history,
	})
}
