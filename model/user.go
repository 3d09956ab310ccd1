package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	LoginEmailPassword = "EMAIL_PASSWORD"

	DefaultAvatarURL = "https://avatar.iran.liara.run/public/29"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

type Avatar struct {
	URL       string `json:"url"`
	LocalPath string `json:"localPath"`
}

// User struct
type User struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"_id"`
	Username        string    `gorm:"uniqueIndex;not null" json:"username"`
	Email           string    `gorm:"uniqueIndex;not null" json:"email"`
	Password        string    `gorm:"not null" json:"-"`
	Avatar          Avatar    `gorm:"embedded;embeddedPrefix:avatar_" json:"avatar"`
	Role            string    `gorm:"not null;default:USER" json:"role"`
	LoginType       string    `gorm:"not null;default:EMAIL_PASSWORD" json:"loginType"`
	IsEmailVerified bool      `gorm:"not null;default:false" json:"isEmailVerified"`
	OtpEnabled      bool      `gorm:"not null;default:false" json:"otpEnabled"`
	OtpSecret       string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Avatar.URL == "" {
		u.Avatar.URL = DefaultAvatarURL
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.LoginType == "" {
		u.LoginType = LoginEmailPassword
	}
	return nil
}

// UserSummary is the projection of a user embedded in message payloads
// and returned by the user search.
type UserSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   Avatar `json:"avatar"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
	}
}
