package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chat-service/apierror"
	"chat-service/model"
)

type MessageService struct {
	chats    ChatStore
	messages MessageStore
	emitter  Emitter
	files    FileRemover
	log      *slog.Logger
}

func NewMessageService(
	log *slog.Logger,
	chats ChatStore,
	messages MessageStore,
	emitter Emitter,
	files FileRemover,
) *MessageService {
	return &MessageService{
		log:      log,
		chats:    chats,
		messages: messages,
		emitter:  emitter,
		files:    files,
	}
}

func (s *MessageService) participantChat(ctx context.Context, requester, chatID string) (*model.Chat, error) {
	chat, err := s.chats.FindChatByID(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, apierror.NotFound("Chat not found")
	}
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(requester) {
		return nil, apierror.Forbidden("You are not a participant of this chat")
	}
	return chat, nil
}

// ListMessages returns the chat's messages, newest first.
func (s *MessageService) ListMessages(ctx context.Context, requester, chatID string) ([]model.MessagePayload, error) {
	ctx, span := tracer.Start(ctx, "MessageService.ListMessages", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
	))
	defer span.End()

	if _, err := s.participantChat(ctx, requester, chatID); err != nil {
		return nil, fail(span, err)
	}

	messages, err := s.messages.ListMessagePayloads(ctx, chatID)
	if err != nil {
		return nil, fail(span, err)
	}
	if messages == nil {
		messages = []model.MessagePayload{}
	}
	span.SetAttributes(attribute.Int("message_count", len(messages)))
	return messages, nil
}

// PostMessage stores a message, moves the chat's last-message pointer and
// notifies every other participant.
func (s *MessageService) PostMessage(ctx context.Context, requester, chatID, content string, attachments []model.Attachment) (*model.MessagePayload, error) {
	ctx, span := tracer.Start(ctx, "MessageService.PostMessage", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
		attribute.Int("attachments", len(attachments)),
	))
	defer span.End()

	if content == "" && len(attachments) == 0 {
		return nil, fail(span, apierror.BadRequest("Message content or files are required"))
	}

	chat, err := s.participantChat(ctx, requester, chatID)
	if err != nil {
		return nil, fail(span, err)
	}

	msg := &model.Message{
		ChatID:      chatID,
		SenderID:    requester,
		Content:     content,
		Attachments: attachments,
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		s.log.ErrorContext(ctx, "messages - post message - create failed", "chat_id", chatID, "sender_id", requester, "err", err)
		return nil, fail(span, err)
	}

	if err := s.chats.UpdateChat(ctx, chatID, map[string]any{"last_message_id": msg.ID}); err != nil {
		return nil, fail(span, err)
	}

	payload, err := s.messages.MessagePayload(ctx, msg.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "messages - post message - build payload failed", "message_id", msg.ID, "err", err)
		return nil, fail(span, apierror.Internal("Internal server error"))
	}

	for _, id := range chat.Participants {
		if id == requester {
			continue
		}
		s.emitter.Emit(ctx, id, model.EventMessageReceived, payload)
	}
	s.log.InfoContext(ctx, "messages - post message - success", "chat_id", chatID, "message_id", msg.ID, "sender_id", requester)
	return payload, nil
}

// DeleteMessage removes a message sent by the requester. When it was the chat's
// last message the pointer moves to the newest surviving message.
func (s *MessageService) DeleteMessage(ctx context.Context, requester, chatID, messageID string) (*model.MessagePayload, error) {
	ctx, span := tracer.Start(ctx, "MessageService.DeleteMessage", trace.WithAttributes(
		attribute.String("user_id", requester),
		attribute.String("chat_id", chatID),
		attribute.String("message_id", messageID),
	))
	defer span.End()

	chat, err := s.chats.FindChatByID(ctx, chatID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !chat.HasParticipant(requester)) {
		return nil, fail(span, apierror.NotFound("Chat not found or access denied"))
	}
	if err != nil {
		return nil, fail(span, err)
	}

	msg, err := s.messages.FindMessageByID(ctx, messageID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && msg.ChatID != chatID) {
		return nil, fail(span, apierror.NotFound("Message not found"))
	}
	if err != nil {
		return nil, fail(span, err)
	}
	if msg.SenderID != requester {
		return nil, fail(span, apierror.Forbidden("You are not authorized to delete this message, you are not the sender"))
	}

	payload, err := s.messages.MessagePayload(ctx, msg.ID)
	if err != nil {
		return nil, fail(span, apierror.Internal("Internal server error"))
	}

	if err := s.messages.DeleteMessage(ctx, msg.ID); err != nil {
		return nil, fail(span, err)
	}

	paths := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		paths = append(paths, a.LocalPath)
	}
	s.files.Remove(paths...)

	if chat.LastMessageID != nil && *chat.LastMessageID == msg.ID {
		var next any
		latest, err := s.messages.LatestMessage(ctx, chatID)
		switch {
		case err == nil:
			next = latest.ID
		case !errors.Is(err, model.ErrNotFound):
			return nil, fail(span, err)
		}
		if err := s.chats.UpdateChat(ctx, chatID, map[string]any{"last_message_id": next}); err != nil {
			return nil, fail(span, err)
		}
	}

	for _, id := range chat.Participants {
		if id == requester {
			continue
		}
		s.emitter.Emit(ctx, id, model.EventMessageDeleted, payload)
	}
	s.log.InfoContext(ctx, "messages - delete message - success", "chat_id", chatID, "message_id", msg.ID)
	return payload, nil
}
