package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-service/model"
)

// Store is the gorm implementation of the user, chat and message gateways.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}

// Users

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) FindUserByLogin(ctx context.Context, username, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("(username = ? AND username <> '') OR (email = ? AND email <> '')", username, email).
		Take(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch map[string]any) (*model.User, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	return s.FindUserByID(ctx, id)
}

func (s *Store) SearchUsers(ctx context.Context, exceptID string) ([]model.UserSummary, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Where("id <> ?", exceptID).Order("created_at asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	summaries := make([]model.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

// Chats

// withParticipants fills the participant ids of each chat in membership order.
func (s *Store) withParticipants(ctx context.Context, chats ...*model.Chat) error {
	if len(chats) == 0 {
		return nil
	}
	ids := make([]string, 0, len(chats))
	byID := make(map[string]*model.Chat, len(chats))
	for _, c := range chats {
		c.Participants = []string{}
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	var rows []model.ChatParticipant
	err := s.db.WithContext(ctx).
		Where("chat_id IN ?", ids).
		Order("position asc").
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	for _, r := range rows {
		c := byID[r.ChatID]
		c.Participants = append(c.Participants, r.UserID)
	}
	return nil
}

func (s *Store) findChat(ctx context.Context, query string, args ...any) (*model.Chat, error) {
	var chat model.Chat
	if err := s.db.WithContext(ctx).Where(query, args...).Take(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.withParticipants(ctx, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *Store) FindChatByID(ctx context.Context, id string) (*model.Chat, error) {
	return s.findChat(ctx, "id = ?", id)
}

func (s *Store) FindGroupChat(ctx context.Context, id string) (*model.Chat, error) {
	return s.findChat(ctx, "id = ? AND is_group_chat = ?", id, true)
}

func (s *Store) FindDirectChat(ctx context.Context, userA, userB string) (*model.Chat, error) {
	return s.findChat(ctx, "direct_key = ?", model.DirectKey(userA, userB))
}

// CreateChat inserts the chat with its participants. A direct chat whose pair
// key already exists is left untouched and the stored one is returned.
func (s *Store) CreateChat(ctx context.Context, chat *model.Chat, participantIDs []string) (*model.Chat, bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chat)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		rows := make([]model.ChatParticipant, 0, len(participantIDs))
		for i, id := range participantIDs {
			rows = append(rows, model.ChatParticipant{ChatID: chat.ID, UserID: id, Position: i})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("create chat: %w", err)
	}

	if !created {
		if chat.DirectKey == nil {
			return nil, false, fmt.Errorf("create chat: %s not inserted", chat.ID)
		}
		existing, err := s.findChat(ctx, "direct_key = ?", *chat.DirectKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	chat.Participants = append([]string(nil), participantIDs...)
	return chat, true, nil
}

func (s *Store) UpdateChat(ctx context.Context, id string, patch map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return fmt.Errorf("update chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, chatID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		err := tx.Model(&model.ChatParticipant{}).
			Where("chat_id = ?", chatID).
			Select("COALESCE(MAX(position), -1) + 1").
			Scan(&next).Error
		if err != nil {
			return fmt.Errorf("next participant position: %w", err)
		}
		row := model.ChatParticipant{ChatID: chatID, UserID: userID, Position: next}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return fmt.Errorf("add participant: %w", err)
		}
		return nil
	})
}

func (s *Store) RemoveParticipant(ctx context.Context, chatID, userID string) error {
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Delete(&model.ChatParticipant{}).Error
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// DeleteChat removes the chat with its participants and messages in one
// transaction and returns the removed messages.
func (s *Store) DeleteChat(ctx context.Context, id string) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Find(&messages).Error; err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.ChatParticipant{}).Error; err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.Chat{}).Error; err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete chat %s: %w", id, err)
	}
	return messages, nil
}

// usersByID loads the given users keyed by id.
func (s *Store) usersByID(ctx context.Context, ids []string) (map[string]model.User, error) {
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// messagePayloads resolves the senders of the messages, keeping their order.
func (s *Store) messagePayloads(ctx context.Context, messages []model.Message) ([]model.MessagePayload, error) {
	senderIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := s.usersByID(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	out := make([]model.MessagePayload, 0, len(messages))
	for i := range messages {
		sender := senders[messages[i].SenderID]
		out = append(out, *model.NewMessagePayload(&messages[i], sender.Summary()))
	}
	return out, nil
}

// chatPayloads resolves participants and last messages for a batch of chats.
func (s *Store) chatPayloads(ctx context.Context, chats []*model.Chat) ([]model.ChatPayload, error) {
	if err := s.withParticipants(ctx, chats...); err != nil {
		return nil, err
	}

	var userIDs, lastIDs []string
	for _, c := range chats {
		userIDs = append(userIDs, c.Participants...)
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}
	users, err := s.usersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	last := map[string]model.MessagePayload{}
	if len(lastIDs) > 0 {
		var messages []model.Message
		if err := s.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&messages).Error; err != nil {
			return nil, fmt.Errorf("load last messages: %w", err)
		}
		payloads, err := s.messagePayloads(ctx, messages)
		if err != nil {
			return nil, err
		}
		for _, p := range payloads {
			last[p.ID] = p
		}
	}

	out := make([]model.ChatPayload, 0, len(chats))
	for _, c := range chats {
		p := model.ChatPayload{
			ID:           c.ID,
			Name:         c.Name,
			IsGroupChat:  c.IsGroupChat,
			Admin:        c.AdminID,
			Participants: make([]model.User, 0, len(c.Participants)),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		}
		for _, id := range c.Participants {
			if u, ok := users[id]; ok {
				p.Participants = append(p.Participants, u)
			}
		}
		if c.LastMessageID != nil {
			if m, ok := last[*c.LastMessageID]; ok {
				p.LastMessage = &m
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ChatPayload(ctx context.Context, id string) (*model.ChatPayload, error) {
	var chat model.Chat
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	payloads, err := s.chatPayloads(ctx, []*model.Chat{&chat})
	if err != nil {
		return nil, err
	}
	return &payloads[0], nil
}

func (s *Store) ListChatPayloads(ctx context.Context, userID string) ([]model.ChatPayload, error) {
	var chats []model.Chat
	member := s.db.Model(&model.ChatParticipant{}).Select("chat_id").Where("user_id = ?", userID)
	err := s.db.WithContext(ctx).
		Where("id IN (?)", member).
		Order("created_at asc").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	refs := make([]*model.Chat, 0, len(chats))
	for i := range chats {
		refs = append(refs, &chats[i])
	}
	return s.chatPayloads(ctx, refs)
}

// Messages

func (s *Store) CreateMessage(ctx context.Context, msg *model.Message) error {
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *Store) FindMessageByID(ctx context.Context, id string) (*model.Message, error) {
	var msg model.Message
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&msg).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (s *Store) LatestMessage(ctx context.Context, chatID string) (*model.Message, error) {
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		Take(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Store) MessagePayload(ctx context.Context, id string) (*model.MessagePayload, error) {
	msg, err := s.FindMessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payloads, err := s.messagePayloads(ctx, []model.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &payloads[0], nil
}

func (s *Store) ListMessagePayloads(ctx context.Context, chatID string) ([]model.MessagePayload, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return s.messagePayloads(ctx, messages)
}
