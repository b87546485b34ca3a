package transport

import (
	"context"
	"encoding/json"
	"quiz-bot-go/pkg/log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame 是 WebSocket 上收发的 JSON 帧。
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// 帧类型。
const (
	FrameMessage = "message"
	FrameReply   = "reply"
)

type wsClient struct {
	conn *websocket.Conn
	// gorilla/websocket 只允许一个并发写者。
	writeMu sync.Mutex
}

// Hub 维护每个用户的 WebSocket 连接，并实现 Sender。
// 同一用户重复连接时，新连接替换旧连接。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
}

// NewHub 创建一个空的 Hub。
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*wsClient)}
}

// Register 登记用户的连接，返回注销函数。注销只会移除这一条连接。
func (h *Hub) Register(userID string, conn *websocket.Conn) func() {
	c := &wsClient{conn: conn}
	h.mu.Lock()
	if old, ok := h.clients[userID]; ok {
		_ = old.conn.Close()
	}
	h.clients[userID] = c
	h.mu.Unlock()
	log.Infof("WebSocket 连接已建立，用户: %s", userID)

	return func() {
		h.mu.Lock()
		if h.clients[userID] == c {
			delete(h.clients, userID)
		}
		h.mu.Unlock()
		log.Infof("WebSocket 连接已断开，用户: %s", userID)
	}
}

// Connected 判断用户当前是否在线。
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Send 以 reply 帧把文本写给用户。用户不在线时返回 ErrNotConnected。
func (h *Hub) Send(ctx context.Context, userID, text string) error {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	b, err := json.Marshal(Frame{Type: FrameReply, Content: text, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}
