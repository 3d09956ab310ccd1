package service

import (
	"context"

	"chat-service/model"
)

// UserStore is the persistence gateway for users.
type UserStore interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	// FindUserByLogin matches either the username or the email.
	FindUserByLogin(ctx context.Context, username, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, id string, patch map[string]any) (*model.User, error)
	SearchUsers(ctx context.Context, exceptID string) ([]model.UserSummary, error)
}

// ChatStore is the persistence gateway for chats and their participants.
type ChatStore interface {
	FindChatByID(ctx context.Context, id string) (*model.Chat, error)
	FindGroupChat(ctx context.Context, id string) (*model.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error)
	// CreateChat reports created=false when a direct chat for the same pair already exists.
	CreateChat(ctx context.Context, chat *model.Chat, participantIDs []string) (*model.Chat, bool, error)
	UpdateChat(ctx context.Context, id string, patch map[string]any) error
	AddParticipant(ctx context.Context, chatID, userID string) error
	RemoveParticipant(ctx context.Context, chatID, userID string) error
	// DeleteChat removes the chat with its participants and messages atomically
	// and returns the removed messages.
	DeleteChat(ctx context.Context, id string) ([]model.Message, error)
	ChatPayload(ctx context.Context, id string) (*model.ChatPayload, error)
	ListChatPayloads(ctx context.Context, userID string) ([]model.ChatPayload, error)
}

// MessageStore is the persistence gateway for messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	FindMessageByID(ctx context.Context, id string) (*model.Message, error)
	LatestMessage(ctx context.Context, chatID string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MessagePayload(ctx context.Context, id string) (*model.MessagePayload, error)
	ListMessagePayloads(ctx context.Context, chatID string) ([]model.MessagePayload, error)
}

// TokenStore keeps the single valid refresh token per user.
type TokenStore interface {
	SetRefreshToken(ctx context.Context, userID, token string) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

// Emitter delivers an event to a socket room. Delivery is fire-and-forget.
type Emitter interface {
	Emit(ctx context.Context, room string, event string, payload any)
}

// FileRemover deletes stored upload files without blocking the caller.
type FileRemover interface {
	Remove(paths ...string)
}
