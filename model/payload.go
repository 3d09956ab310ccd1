package model

import "time"

// MessagePayload is a message with its sender resolved.
type MessagePayload struct {
	ID          string       `json:"_id"`
	Chat        string       `json:"chat"`
	Sender      UserSummary  `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ChatPayload is a chat with its participants and last message resolved.
type ChatPayload struct {
	ID           string          `json:"_id"`
	Name         string          `json:"name"`
	IsGroupChat  bool            `json:"isGroupChat"`
	Admin        string          `json:"admin"`
	Participants []User          `json:"participants"`
	LastMessage  *MessagePayload `json:"lastMessage"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func NewMessagePayload(m *Message, sender UserSummary) *MessagePayload {
	attachments := m.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	return &MessagePayload{
		ID:          m.ID,
		Chat:        m.ChatID,
		Sender:      sender,
		Content:     m.Content,
		Attachments: attachments,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (p *ChatPayload) ParticipantIDs() []string {
	ids := make([]string, 0, len(p.Participants))
	for _, u := range p.Participants {
		ids = append(ids, u.ID)
	}
	return ids
}
