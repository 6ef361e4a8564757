package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the persisted user row
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                uuid.UUID `bun:"id,pk,type:uuid"`
	Email             string    `bun:"email,notnull,unique"`
	PasswordHash      string    `bun:"password_hash,notnull"`
	Name              string    `bun:"name,notnull,default:''"`
	AvatarURL         string    `bun:"avatar_url,notnull,default:''"`
	Verify            bool      `bun:"verify,notnull,default:false"`
	VerificationToken *string   `bun:"verification_token"`
	Subscription      string    `bun:"subscription,notnull,default:'starter'"`
	Token             *string   `bun:"token"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
