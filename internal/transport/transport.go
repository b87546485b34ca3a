// Package transport 是聊天通道的边界：入站消息的统一结构，以及出站发送的接口与实现。
// 连接、重连和鉴权都留在这一层，问卷引擎只看到 (用户, 文本)。
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrNotConnected 表示用户当前没有可用的连接。
var ErrNotConnected = errors.New("user is not connected")

// InboundMessage 是一条来自聊天通道的用户消息。
// ID 是通道给出的消息 ID，用于丢弃重复投递；为空时不去重。
type InboundMessage struct {
	ID         string    `json:"id"`
	UserID     string    `json:"from" binding:"required"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Sender 把回复发送给用户。
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

// Inbound 接收入站消息，由 dispatcher.Dispatcher 实现。
type Inbound interface {
	Submit(ctx context.Context, msg InboundMessage) error
}

// FallbackSender 优先通过 primary 发送；用户不在线时改用 fallback。
type FallbackSender struct {
	primary  Sender
	fallback Sender
}

// NewFallbackSender 创建一个 FallbackSender。fallback 可以为 nil。
func NewFallbackSender(primary, fallback Sender) *FallbackSender {
	return &FallbackSender{primary: primary, fallback: fallback}
}

// Send 实现 Sender。
func (s *FallbackSender) Send(ctx context.Context, userID, text string) error {
	err := s.primary.Send(ctx, userID, text)
	if errors.Is(err, ErrNotConnected) && s.fallback != nil {
		return s.fallback.Send(ctx, userID, text)
	}
	return err
}
