package model

import (
	"time"

	"gorm.io/gorm"
)

// User is the identity record. Username and email are stored lowercase and
// unique. RefreshToken holds the single currently-valid refresh token; empty
// means no live session.
type User struct {
	gorm.Model
	Username      string    `gorm:"column:username;unique;not null;index"`
	Email         string    `gorm:"column:email;unique;not null"`
	FullName      string    `gorm:"column:full_name;not null;index"`
	Password      string    `gorm:"column:password;not null"`
	AvatarURL     string    `gorm:"column:avatar_url;not null"`
	AvatarKey     string    `gorm:"column:avatar_key"`
	CoverImageURL string    `gorm:"column:cover_image_url"`
	CoverImageKey string    `gorm:"column:cover_image_key"`
	RefreshToken  string    `gorm:"column:refresh_token;index:idx_users_refresh_token,where:refresh_token <> ''"`
	LastLogin     time.Time `gorm:"column:last_login"`
}
