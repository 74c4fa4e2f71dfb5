// Package model defines the data structures used throughout the application.
package model

import "time"

// SignInMode records how an account authenticates. It is fixed when the
// account is created and decides, per request, whether reads and writes go to
// the local store or to the user's own Google account.
type SignInMode string

const (
	SignInPassword SignInMode = "password"
	SignInGoogle   SignInMode = "google"
)

// Channel is the public profile denormalized onto every user. Local accounts
// get one at signup; its ChannelID is the user ID so locally authored
// comments can be attributed without a second lookup.
type Channel struct {
	ChannelID   string `json:"channelId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	ProfileURL  string `json:"profileUrl"`
	BannerURL   string `json:"bannerUrl"`
}

// User represents a registered account.
//
// WHY PasswordHash HAS json:"-"?
// The struct is returned by /api/auth/profile as-is. Tagging the hash with "-"
// means encoding/json never writes it, so no handler can leak it by accident.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	GoogleID     string     `json:"googleId,omitempty"`
	Name         string     `json:"name,omitempty"`
	Picture      string     `json:"picture,omitempty"`
	SignInMode   SignInMode `json:"signInMode"`
	Channel      Channel    `json:"channel"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) IsGoogleSignIn() bool {
	return u.SignInMode == SignInGoogle
}
