package entity

import (
	"time"
)

type User struct {
	ID             string    `gorm:"primaryKey"`
	Username       string    `gorm:"uniqueIndex;not null"`
	Email          string
	FirstName      string
	LastName       string
	ProfilePicture string
	IsOnline       bool `gorm:"not null;default:false"`
	LastSeen       time.Time
	IsActive       bool      `gorm:"not null;default:true"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// UserSummary is the public projection embedded in chat payloads.
type UserSummary struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}
