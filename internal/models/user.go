package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID               uuid.UUID   `json:"id"`
	Email            string      `json:"email,omitempty"`
	FullName         string      `json:"full_name"`
	Bio              string      `json:"bio"`
	ProfilePic       string      `json:"profile_pic"`
	NativeLanguage   string      `json:"native_language"`
	LearningLanguage string      `json:"learning_language"`
	Location         string      `json:"location"`
	IsOnboarded      bool        `json:"is_onboarded"`
	Friends          []uuid.UUID `json:"friends"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// UserSummary is the public projection of a user returned by list endpoints.
type UserSummary struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Bio              string    `json:"bio,omitempty"`
	ProfilePic       string    `json:"profile_pic"`
	NativeLanguage   string    `json:"native_language"`
	LearningLanguage string    `json:"learning_language"`
	Location         string    `json:"location,omitempty"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:               u.ID,
		FullName:         u.FullName,
		Bio:              u.Bio,
		ProfilePic:       u.ProfilePic,
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		Location:         u.Location,
	}
}

func (u User) HasFriend(id uuid.UUID) bool {
	for _, friendID := range u.Friends {
		if friendID == id {
			return true
		}
	}
	return false
}
