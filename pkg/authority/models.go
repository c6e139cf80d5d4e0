package authority

import (
	"time"

	"github.com/goldenpathdev/registry/pkg/metadata"
)

// User is an account that owns a namespace.
type User struct {
	UserID           string    `gorm:"primaryKey;size:255" json:"user_id"`
	Email            string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	EmailVerified    bool      `gorm:"not null;default:false" json:"email_verified"`
	Name             string    `gorm:"size:255" json:"name,omitempty"`
	Namespace        string    `gorm:"size:100;uniqueIndex;not null" json:"namespace"`
	Bio              string    `gorm:"type:text" json:"bio,omitempty"`
	GithubUsername   string    `gorm:"size:100" json:"github_username,omitempty"`
	AuthProvider     string    `gorm:"size:50;not null" json:"auth_provider"`
	SubscriptionTier string    `gorm:"size:50;not null;default:'free'" json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName maps User to the users table.
func (User) TableName() string { return "users" }

// APIKey is a stored credential. Only the bcrypt hash is persisted; the
// plaintext key is shown once at creation and never echoed back.
type APIKey struct {
	KeyID     string                   `gorm:"primaryKey;size:100" json:"key_id"`
	UserID    string                   `gorm:"size:255;index;not null" json:"user_id"`
	Name      string                   `gorm:"size:255;not null" json:"name"`
	KeyHash   string                   `gorm:"size:255;uniqueIndex;not null" json:"-"`
	KeyPrefix string                   `gorm:"size:20;index;not null" json:"key_prefix"`
	Scopes    metadata.JSONStringSlice `gorm:"type:text" json:"scopes"`
	CreatedAt time.Time                `json:"created_at"`
	LastUsed  *time.Time               `json:"last_used,omitempty"`
	ExpiresAt *time.Time               `json:"expires_at,omitempty"`
	IsActive  bool                     `gorm:"not null;default:true;index" json:"is_active"`
}

// TableName maps APIKey to the api_keys table.
func (APIKey) TableName() string { return "api_keys" }
