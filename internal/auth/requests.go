package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/redmonkez12/users-auth-api/internal/user"
)

const minPasswordLength = 6

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	Name         string            `json:"name,omitempty"`
	Subscription user.Subscription `json:"subscription,omitempty"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(&r.Name, validation.Length(0, 100)),
		validation.Field(
			&r.Subscription,
			validation.In(
				user.SubscriptionStarter,
				user.SubscriptionPro,
				user.SubscriptionBusiness,
			),
		),
	)
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 0)),
	)
}

// EmailRequest represents the resend verification request body
type EmailRequest struct {
	Email string `json:"email"`
}

func (r EmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// RegisterResponse is returned after a successful registration
type RegisterResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SessionUser is the user summary returned by login and current
type SessionUser struct {
	Email        string            `json:"email"`
	Subscription user.Subscription `json:"subscription"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}
