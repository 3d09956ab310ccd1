package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment is embedded in a message: URL for display, LocalPath for removal.
type Attachment struct {
	URL       string `json:"url"`
	LocalPath string `json:"localPath"`
}

type Message struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"_id"`
	ChatID      string       `gorm:"type:uuid;index;not null" json:"chat"`
	SenderID    string       `gorm:"type:uuid;index;not null" json:"sender"`
	Content     string       `gorm:"not null;default:''" json:"content"`
	Attachments []Attachment `gorm:"serializer:json" json:"attachments"`
	CreatedAt   time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	return nil
}
