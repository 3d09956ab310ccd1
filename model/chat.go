package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DirectChatName = "one-on-one chat"

// Chat is either a one-on-one conversation or a named group.
// Participants live in the chat_participants table and are loaded by the store.
type Chat struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"_id"`
	Name          string    `gorm:"not null" json:"name"`
	IsGroupChat   bool      `gorm:"not null;default:false" json:"isGroupChat"`
	AdminID       string    `gorm:"type:uuid;not null" json:"admin"`
	LastMessageID *string   `gorm:"type:uuid" json:"lastMessage"`
	DirectKey     *string   `gorm:"uniqueIndex" json:"-"`
	Participants  []string  `gorm:"-" json:"participants"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (c *Chat) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

type ChatParticipant struct {
	ChatID    string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"primaryKey;type:uuid;index"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// DirectKey identifies the unordered pair of a one-on-one chat.
func DirectKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
