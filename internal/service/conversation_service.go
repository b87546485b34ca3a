package service

import (
	"context"
	"quiz-bot-go/internal/model"
	"quiz-bot-go/internal/repository"
	"time"
)

// ConversationService 定义了聊天记录业务逻辑的接口。
type ConversationService interface {
	RecordExchange(ctx context.Context, phoneNumber, inbound, reply string) error
	GetHistory(ctx context.Context, phoneNumber string) ([]model.ChatMessage, error)
	ListPhoneNumbers(ctx context.Context) ([]string, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// RecordExchange 把一轮用户消息和机器人回复追加到聊天记录中。
func (s *conversationService) RecordExchange(ctx context.Context, phoneNumber, inbound, reply string) error {
	now := time.Now()
	return s.repo.Append(ctx, phoneNumber,
		model.ChatMessage{Role: model.RoleUser, Content: inbound, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: reply, Timestamp: now},
	)
}

// GetHistory 获取用户的聊天记录。
func (s *conversationService) GetHistory(ctx context.Context, phoneNumber string) ([]model.ChatMessage, error) {
	return s.repo.GetHistory(ctx, phoneNumber)
}

// ListPhoneNumbers 列出所有存在聊天记录的用户。
func (s *conversationService) ListPhoneNumbers(ctx context.Context) ([]string, error) {
	return s.repo.ListPhoneNumbers(ctx)
}
