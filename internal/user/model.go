package user

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

// Subscription is the plan tier of an account
type Subscription string

const (
	SubscriptionStarter  Subscription = "starter"
	SubscriptionPro      Subscription = "pro"
	SubscriptionBusiness Subscription = "business"
)

// Subscriptions lists the accepted plan values
var Subscriptions = []Subscription{SubscriptionStarter, SubscriptionPro, SubscriptionBusiness}

// Valid reports whether s is one of the known plans
func (s Subscription) Valid() bool {
	for _, known := range Subscriptions {
		if s == known {
			return true
		}
	}
	return false
}

type User struct {
	ID                uuid.UUID    `json:"id"`
	Email             string       `json:"email"`
	PasswordHash      string       `json:"-"` // Never expose password hash in JSON
	Name              string       `json:"name"`
	AvatarURL         string       `json:"avatarURL"`
	Verify            bool         `json:"verify"`
	VerificationToken *string      `json:"-"`
	Subscription      Subscription `json:"subscription"`
	Token             *string      `json:"-"`
	CreatedAt         time.Time    `json:"-"`
	UpdatedAt         time.Time    `json:"-"`
}

// HasToken reports whether token is the live session token of the user
func (u *User) HasToken(token string) bool {
	if u.Token == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.Token), []byte(token)) == 1
}

// NewUser is the data needed to create an account
type NewUser struct {
	Email             string
	PasswordHash      string
	Name              string
	AvatarURL         string
	Subscription      Subscription
	VerificationToken string
}

// Profile is the public projection of a user, without credentials or timestamps
type Profile struct {
	ID           uuid.UUID    `json:"_id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	AvatarURL    string       `json:"avatarURL"`
	Verify       bool         `json:"verify"`
	Subscription Subscription `json:"subscription"`
}

// ToProfile strips credentials and administrative timestamps
func (u *User) ToProfile() Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		Verify:       u.Verify,
		Subscription: u.Subscription,
	}
}
