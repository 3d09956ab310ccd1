package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"chat-service/model"
)

// Fetcher is the REST surface the synchronizer needs.
type Fetcher interface {
	ListChats(ctx context.Context) ([]model.ChatPayload, error)
	ListMessages(ctx context.Context, chatID string) ([]model.MessagePayload, error)
	SendMessage(ctx context.Context, chatID, content string) (*model.MessagePayload, error)
}

// Synchronizer keeps a client's chat list, open conversation and unread
// buffer consistent with the realtime events it receives.
type Synchronizer struct {
	log      *slog.Logger
	api      Fetcher
	socket   Socket
	typing   *TypingNotifier
	onLogout func()

	mu           sync.Mutex
	chats        []model.ChatPayload
	messages     []model.MessagePayload
	unread       []model.MessagePayload
	open         *model.ChatPayload
	remoteTyping bool
}

func NewSynchronizer(log *slog.Logger, api Fetcher, socket Socket, onLogout func()) *Synchronizer {
	return &Synchronizer{
		log:      log,
		api:      api,
		socket:   socket,
		typing:   NewTypingNotifier(socket, TypingIdle),
		onLogout: onLogout,
	}
}

func (s *Synchronizer) fail(err error) error {
	if errors.Is(err, ErrUnauthorized) && s.onLogout != nil {
		s.onLogout()
	}
	return err
}

func activity(c model.ChatPayload) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// LoadChats replaces the chat list, most recent activity first.
func (s *Synchronizer) LoadChats(ctx context.Context) error {
	chats, err := s.api.ListChats(ctx)
	if err != nil {
		return s.fail(err)
	}
	slices.SortStableFunc(chats, func(a, b model.ChatPayload) int {
		return activity(b).Compare(activity(a))
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = chats
	return nil
}

// OpenChat makes chat the active conversation and loads its messages.
func (s *Synchronizer) OpenChat(ctx context.Context, chat model.ChatPayload) error {
	s.typing.Stop()

	s.mu.Lock()
	s.open = &chat
	s.messages = nil
	s.remoteTyping = false
	s.unread = slices.DeleteFunc(s.unread, func(m model.MessagePayload) bool { return m.Chat == chat.ID })
	s.mu.Unlock()

	s.socket.Emit(model.EventJoinChat, chat.ID)

	messages, err := s.api.ListMessages(ctx, chat.ID)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil && s.open.ID == chat.ID {
		s.messages = messages
	}
	return nil
}

func (s *Synchronizer) CloseChat() {
	s.typing.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = nil
	s.messages = nil
	s.remoteTyping = false
}

// Keystroke reports local input in the open chat.
func (s *Synchronizer) Keystroke() {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()

	if open != nil {
		s.typing.Keystroke(open.ID)
	}
}

// Send posts a message to the open chat. Typing stops before the request.
func (s *Synchronizer) Send(ctx context.Context, content string) (*model.MessagePayload, error) {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if open == nil {
		return nil, errors.New("client: no open chat")
	}

	s.typing.Stop()
	message, err := s.api.SendMessage(ctx, open.ID, content)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil && s.open.ID == message.Chat {
		s.messages = slices.Insert(s.messages, 0, *message)
	}
	s.touchLocked(*message)
	return message, nil
}

// touchLocked sets the chat's preview and moves it to the top of the list.
func (s *Synchronizer) touchLocked(message model.MessagePayload) {
	i := s.chatIndexLocked(message.Chat)
	if i < 0 {
		return
	}
	chat := s.chats[i]
	chat.LastMessage = &message
	s.chats = slices.Delete(s.chats, i, i+1)
	s.chats = slices.Insert(s.chats, 0, chat)
}

func (s *Synchronizer) chatIndexLocked(chatID string) int {
	return slices.IndexFunc(s.chats, func(c model.ChatPayload) bool { return c.ID == chatID })
}

func (s *Synchronizer) MessageReceived(message model.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open != nil && s.open.ID == message.Chat {
		s.messages = slices.Insert(s.messages, 0, message)
		s.unread = slices.DeleteFunc(s.unread, func(m model.MessagePayload) bool { return m.ID == message.ID })
	} else {
		s.unread = slices.Insert(s.unread, 0, message)
	}
	s.touchLocked(message)
}

// MessageDeleted drops the message locally. When it was the chat's preview
// the chat's messages are refetched and the newest one becomes the preview.
func (s *Synchronizer) MessageDeleted(ctx context.Context, message model.MessagePayload) error {
	byID := func(m model.MessagePayload) bool { return m.ID == message.ID }

	s.mu.Lock()
	s.unread = slices.DeleteFunc(s.unread, byID)
	s.messages = slices.DeleteFunc(s.messages, byID)
	i := s.chatIndexLocked(message.Chat)
	tracked := i >= 0 && s.chats[i].LastMessage != nil && s.chats[i].LastMessage.ID == message.ID
	s.mu.Unlock()

	if !tracked {
		return nil
	}

	messages, err := s.api.ListMessages(ctx, message.Chat)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i = s.chatIndexLocked(message.Chat); i < 0 {
		return nil
	}
	s.chats[i].LastMessage = nil
	if len(messages) > 0 {
		latest := messages[0]
		s.chats[i].LastMessage = &latest
	}
	return nil
}

func (s *Synchronizer) NewChat(chat model.ChatPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatIndexLocked(chat.ID) >= 0 {
		return
	}
	s.chats = slices.Insert(s.chats, 0, chat)
}

// LeaveChat removes the chat and closes it when it is the open one.
func (s *Synchronizer) LeaveChat(chat model.ChatPayload) {
	s.mu.Lock()
	if i := s.chatIndexLocked(chat.ID); i >= 0 {
		s.chats = slices.Delete(s.chats, i, i+1)
	}
	s.unread = slices.DeleteFunc(s.unread, func(m model.MessagePayload) bool { return m.Chat == chat.ID })
	closing := s.open != nil && s.open.ID == chat.ID
	s.mu.Unlock()

	if closing {
		s.CloseChat()
	}
}

func (s *Synchronizer) GroupNameUpdated(chat model.ChatPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.chatIndexLocked(chat.ID); i >= 0 {
		s.chats[i] = chat
	}
	if s.open != nil && s.open.ID == chat.ID {
		s.open = &chat
	}
}

// RemoteTyping toggles the typing indicator of the open chat.
func (s *Synchronizer) RemoteTyping(chatID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open != nil && s.open.ID == chatID {
		s.remoteTyping = typing
	}
}

// Dispatch decodes a server event and applies it.
func (s *Synchronizer) Dispatch(ctx context.Context, event string, data []byte) error {
	switch event {
	case model.EventMessageReceived, model.EventMessageDeleted:
		var message model.MessagePayload
		if err := json.Unmarshal(data, &message); err != nil {
			return fmt.Errorf("client: decode %s: %w", event, err)
		}
		if event == model.EventMessageDeleted {
			return s.MessageDeleted(ctx, message)
		}
		s.MessageReceived(message)
	case model.EventNewChat, model.EventLeaveChat, model.EventUpdateGroupName:
		var chat model.ChatPayload
		if err := json.Unmarshal(data, &chat); err != nil {
			return fmt.Errorf("client: decode %s: %w", event, err)
		}
		switch event {
		case model.EventNewChat:
			s.NewChat(chat)
		case model.EventLeaveChat:
			s.LeaveChat(chat)
		default:
			s.GroupNameUpdated(chat)
		}
	case model.EventTyping, model.EventStopTyping:
		var chatID string
		if err := json.Unmarshal(data, &chatID); err != nil {
			return fmt.Errorf("client: decode %s: %w", event, err)
		}
		s.RemoteTyping(chatID, event == model.EventTyping)
	case model.EventSocketError:
		s.log.WarnContext(ctx, "client - socket error", "data", string(data))
	default:
		s.log.DebugContext(ctx, "client - unhandled event", "event", event)
	}
	return nil
}

func (s *Synchronizer) Chats() []model.ChatPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chats)
}

func (s *Synchronizer) Messages() []model.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

func (s *Synchronizer) Unread() []model.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.unread)
}

// OpenChatID is empty when no chat is open.
func (s *Synchronizer) OpenChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open == nil {
		return ""
	}
	return s.open.ID
}

func (s *Synchronizer) IsRemoteTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteTyping
}
