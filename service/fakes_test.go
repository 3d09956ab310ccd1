package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-service/model"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore is an in-memory persistence gateway used by the service tests.
type memStore struct {
	mu       sync.Mutex
	now      time.Time
	users    map[string]*model.User
	chats    map[string]*model.Chat
	chatSeq  []string
	messages map[string]*model.Message
	refresh  map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    map[string]*model.User{},
		chats:    map[string]*model.Chat{},
		messages: map[string]*model.Message{},
		refresh:  map[string]string{},
	}
}

func (s *memStore) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}

func (s *memStore) addUser(username string) *model.User {
	u := &model.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    username + "@example.com",
		Role:     model.RoleUser,
		Avatar:   model.Avatar{URL: model.DefaultAvatarURL},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u.CreatedAt = s.tick()
	s.users[u.ID] = u
	return u
}

func (s *memStore) FindUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) FindUserByLogin(_ context.Context, username, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *memStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.tick()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) UpdateUser(_ context.Context, id string, patch map[string]any) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	for k, v := range patch {
		switch k {
		case "password":
			u.Password = v.(string)
		case "avatar_url":
			u.Avatar.URL = v.(string)
		case "avatar_local_path":
			u.Avatar.LocalPath = v.(string)
		case "otp_secret":
			u.OtpSecret = v.(string)
		case "otp_enabled":
			u.OtpEnabled = v.(bool)
		}
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) SearchUsers(_ context.Context, exceptID string) ([]model.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UserSummary
	for _, u := range s.users {
		if u.ID != exceptID {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *memStore) copyChat(c *model.Chat) *model.Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.LastMessageID != nil {
		id := *c.LastMessageID
		cp.LastMessageID = &id
	}
	return &cp
}

func (s *memStore) FindChatByID(_ context.Context, id string) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.copyChat(c), nil
}

func (s *memStore) FindGroupChat(ctx context.Context, id string) (*model.Chat, error) {
	c, err := s.FindChatByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsGroupChat {
		return nil, model.ErrNotFound
	}
	return c, nil
}

func (s *memStore) FindDirectChat(_ context.Context, userA, userB string) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.DirectKey(userA, userB)
	for _, c := range s.chats {
		if c.DirectKey != nil && *c.DirectKey == key {
			return s.copyChat(c), nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *memStore) CreateChat(_ context.Context, chat *model.Chat, participantIDs []string) (*model.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat.DirectKey != nil {
		for _, c := range s.chats {
			if c.DirectKey != nil && *c.DirectKey == *chat.DirectKey {
				return s.copyChat(c), false, nil
			}
		}
	}
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	chat.CreatedAt = s.tick()
	chat.Participants = append([]string(nil), participantIDs...)
	s.chats[chat.ID] = s.copyChat(chat)
	s.chatSeq = append(s.chatSeq, chat.ID)
	return s.copyChat(chat), true, nil
}

func (s *memStore) UpdateChat(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return model.ErrNotFound
	}
	for k, v := range patch {
		switch k {
		case "name":
			c.Name = v.(string)
		case "last_message_id":
			if v == nil {
				c.LastMessageID = nil
			} else {
				id := v.(string)
				c.LastMessageID = &id
			}
		}
	}
	return nil
}

func (s *memStore) AddParticipant(_ context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chats[chatID]
	c.Participants = append(c.Participants, userID)
	return nil
}

func (s *memStore) RemoveParticipant(_ context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chats[chatID]
	kept := c.Participants[:0]
	for _, id := range c.Participants {
		if id != userID {
			kept = append(kept, id)
		}
	}
	c.Participants = kept
	return nil
}

func (s *memStore) DeleteChat(_ context.Context, id string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []model.Message
	for _, m := range s.chatMessagesLocked(id) {
		removed = append(removed, *m)
		delete(s.messages, m.ID)
	}
	delete(s.chats, id)
	return removed, nil
}

func (s *memStore) messagePayloadLocked(m *model.Message) *model.MessagePayload {
	var sender model.UserSummary
	if u, ok := s.users[m.SenderID]; ok {
		sender = u.Summary()
	}
	return model.NewMessagePayload(m, sender)
}

func (s *memStore) chatPayloadLocked(c *model.Chat) *model.ChatPayload {
	p := &model.ChatPayload{
		ID:           c.ID,
		Name:         c.Name,
		IsGroupChat:  c.IsGroupChat,
		Admin:        c.AdminID,
		Participants: []model.User{},
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	for _, id := range c.Participants {
		if u, ok := s.users[id]; ok {
			p.Participants = append(p.Participants, *u)
		}
	}
	if c.LastMessageID != nil {
		if m, ok := s.messages[*c.LastMessageID]; ok {
			p.LastMessage = s.messagePayloadLocked(m)
		}
	}
	return p
}

func (s *memStore) ChatPayload(_ context.Context, id string) (*model.ChatPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.chatPayloadLocked(c), nil
}

func (s *memStore) ListChatPayloads(_ context.Context, userID string) ([]model.ChatPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ChatPayload
	for _, id := range s.chatSeq {
		c, ok := s.chats[id]
		if ok && c.HasParticipant(userID) {
			out = append(out, *s.chatPayloadLocked(c))
		}
	}
	return out, nil
}

func (s *memStore) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = s.tick()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *memStore) FindMessageByID(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) chatMessagesLocked(chatID string) []*model.Message {
	var out []*model.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memStore) LatestMessage(_ context.Context, chatID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.chatMessagesLocked(chatID)
	if len(msgs) == 0 {
		return nil, model.ErrNotFound
	}
	cp := *msgs[0]
	return &cp, nil
}

func (s *memStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *memStore) MessagePayload(_ context.Context, id string) (*model.MessagePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.messagePayloadLocked(m), nil
}

func (s *memStore) ListMessagePayloads(_ context.Context, chatID string) ([]model.MessagePayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MessagePayload
	for _, m := range s.chatMessagesLocked(chatID) {
		out = append(out, *s.messagePayloadLocked(m))
	}
	return out, nil
}

func (s *memStore) SetRefreshToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[userID] = token
	return nil
}

func (s *memStore) GetRefreshToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[userID]
	if !ok {
		return "", model.ErrNotFound
	}
	return t, nil
}

func (s *memStore) DeleteRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, userID)
	return nil
}

type emitted struct {
	Room    string
	Event   string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(_ context.Context, room, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{Room: room, Event: event, Payload: payload})
}

// rooms returns the rooms that received the event, in emission order.
func (e *recordingEmitter) rooms(event string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, ev := range e.events {
		if ev.Event == event {
			out = append(out, ev.Room)
		}
	}
	return out
}

func (e *recordingEmitter) last(event string) (emitted, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.events) - 1; i >= 0; i-- {
		if e.events[i].Event == event {
			return e.events[i], true
		}
	}
	return emitted{}, false
}

func (e *recordingEmitter) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

type recordingRemover struct {
	mu      sync.Mutex
	removed []string
}

func (r *recordingRemover) Remove(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		if p != "" {
			r.removed = append(r.removed, p)
		}
	}
}

func (r *recordingRemover) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

type fixture struct {
	store    *memStore
	emitter  *recordingEmitter
	files    *recordingRemover
	chats    *ChatService
	messages *MessageService
}

func newFixture() *fixture {
	store := newMemStore()
	emitter := &recordingEmitter{}
	files := &recordingRemover{}
	return &fixture{
		store:    store,
		emitter:  emitter,
		files:    files,
		chats:    NewChatService(testLog, store, store, emitter, files),
		messages: NewMessageService(testLog, store, store, emitter, files),
	}
}
