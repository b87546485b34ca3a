package handler

import (
	"encoding/json"
	"net/http"
	"quiz-bot-go/internal/transport"
	"quiz-bot-go/pkg/log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理聊天通道的 WebSocket 连接。
// 连接上收到的每一帧都作为一条入站消息提交，回复由 Hub 异步写回。
type ChatHandler struct {
	hub     *transport.Hub
	inbound transport.Inbound
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(hub *transport.Hub, inbound transport.Inbound) *ChatHandler {
	return &ChatHandler{hub: hub, inbound: inbound}
}

// Handle 处理一个传入的 WebSocket 连接，路径参数 userId 是用户的手机号。
func (h *ChatHandler) Handle(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "缺少用户标识", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	unregister := h.hub.Register(userID, conn)
	defer unregister()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		msg := parseFrame(message)
		msg.UserID = userID
		if err := h.inbound.Submit(c.Request.Context(), msg); err != nil {
			log.Warnw("提交入站消息失败", "user", userID, "error", err)
			return
		}
	}
}

// parseFrame 支持 JSON 帧 {"type":"message","id":"...","content":"..."} 和纯文本两种格式。
func parseFrame(raw []byte) transport.InboundMessage {
	msg := transport.InboundMessage{Text: string(raw), ReceivedAt: time.Now()}
	if len(raw) > 0 && raw[0] == '{' {
		var frame transport.Frame
		if err := json.Unmarshal(raw, &frame); err == nil && frame.Type == transport.FrameMessage {
			msg.ID = frame.ID
			msg.Text = frame.Content
		}
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg
}
