package authority

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Key format constants. Keys look like gp_live_<43 urlsafe chars>; the first
// 16 characters plus an ellipsis are stored for display and used to narrow
// the hash comparison to a handful of candidate rows.
const (
	keyPrefixLive    = "gp_live_"
	displayPrefixLen = 16
	defaultKeyExpiry = 90 * 24 * time.Hour
)

// DBAuthority is the database-backed Authority. It owns the users and
// api_keys tables; nothing else in the process mutates them.
type DBAuthority struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDBAuthority creates a DBAuthority over db.
func NewDBAuthority(db *gorm.DB, logger *slog.Logger) *DBAuthority {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBAuthority{db: db, logger: logger}
}

// AutoMigrate creates or updates the users and api_keys tables.
func (a *DBAuthority) AutoMigrate() error {
	if err := a.db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("auto-migrate users: %w", err)
	}
	if err := a.db.AutoMigrate(&APIKey{}); err != nil {
		return fmt.Errorf("auto-migrate api_keys: %w", err)
	}
	return nil
}

// Resolve maps a bearer credential to a principal. Empty credentials resolve
// to the anonymous principal. The last-used stamp is recorded best-effort in
// the background and never fails the caller.
func (a *DBAuthority) Resolve(ctx context.Context, credential string) (*Principal, error) {
	if credential == "" {
		return Anon(), nil
	}

	record, err := a.verifyKey(ctx, credential)
	if err != nil {
		return nil, err
	}

	var user User
	if err := a.db.WithContext(ctx).Where("user_id = ?", record.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Key exists but its owner is gone; treat as revoked.
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("resolve credential owner: %w", err)
	}

	go a.stampLastUsed(record.KeyID)

	return &Principal{
		UserID:     user.UserID,
		Namespaces: []string{user.Namespace},
		Scopes:     []string(record.Scopes),
	}, nil
}

// Authorize reports whether principal owns namespace and its credential
// carries the write scope.
func (a *DBAuthority) Authorize(principal *Principal, namespace string) bool {
	return principal.Owns(namespace) && principal.HasScope("write")
}

// verifyKey finds the active key record matching the plaintext credential.
// Candidates are narrowed by the stored display prefix before the bcrypt
// comparison.
func (a *DBAuthority) verifyKey(ctx context.Context, credential string) (*APIKey, error) {
	if len(credential) < displayPrefixLen {
		return nil, ErrInvalidCredential
	}

	var candidates []APIKey
	err := a.db.WithContext(ctx).
		Where("key_prefix = ? AND is_active = ?", displayPrefix(credential), true).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("look up credential: %w", err)
	}

	now := time.Now()
	for i := range candidates {
		record := &candidates[i]
		if bcrypt.CompareHashAndPassword([]byte(record.KeyHash), []byte(credential)) != nil {
			continue
		}
		if record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
			return nil, ErrInvalidCredential
		}
		return record, nil
	}
	return nil, ErrInvalidCredential
}

// stampLastUsed records when a key was last used. Failures are logged only.
func (a *DBAuthority) stampLastUsed(keyID string) {
	now := time.Now()
	err := a.db.Model(&APIKey{}).
		Where("key_id = ?", keyID).
		UpdateColumn("last_used", now).Error
	if err != nil {
		a.logger.Warn("failed to stamp api key last-used", "keyID", keyID, "error", err)
	}
}

// CreateKey mints a new API key for a user. The plaintext key is returned
// exactly once; only its bcrypt hash is stored.
func (a *DBAuthority) CreateKey(ctx context.Context, userID, name string, scopes []string) (plaintext string, record *APIKey, err error) {
	if scopes == nil {
		scopes = []string{"read", "write"}
	}

	plaintext = keyPrefixLive + randomToken(32)
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	expires := time.Now().Add(defaultKeyExpiry)
	record = &APIKey{
		KeyID:     "key_" + randomToken(16),
		UserID:    userID,
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: displayPrefix(plaintext),
		Scopes:    scopes,
		ExpiresAt: &expires,
		IsActive:  true,
	}
	if err := a.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", nil, fmt.Errorf("create api key: %w", err)
	}
	return plaintext, record, nil
}

// ListKeys returns a user's keys, newest first. Hashes are never included in
// the JSON form.
func (a *DBAuthority) ListKeys(ctx context.Context, userID string) ([]APIKey, error) {
	var keys []APIKey
	err := a.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// DeleteKey removes a key. The user ID must match so a caller can only
// delete their own keys. Returns false if nothing was deleted.
func (a *DBAuthority) DeleteKey(ctx context.Context, keyID, userID string) (bool, error) {
	res := a.db.WithContext(ctx).
		Where("key_id = ? AND user_id = ?", keyID, userID).
		Delete(&APIKey{})
	if res.Error != nil {
		return false, fmt.Errorf("delete api key: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RevokeKey deactivates a key without deleting its record.
func (a *DBAuthority) RevokeKey(ctx context.Context, keyID, userID string) (bool, error) {
	res := a.db.WithContext(ctx).Model(&APIKey{}).
		Where("key_id = ? AND user_id = ?", keyID, userID).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return false, fmt.Errorf("revoke api key: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// EnsureUser creates a user with the given namespace if none exists.
// Used by server bootstrap to seed a development account.
func (a *DBAuthority) EnsureUser(ctx context.Context, userID, email, namespace string) (*User, error) {
	var user User
	err := a.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	user = User{
		UserID:        userID,
		Email:         email,
		EmailVerified: true,
		Namespace:     namespace,
		AuthProvider:  "local",
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func displayPrefix(plaintext string) string {
	return plaintext[:displayPrefixLen] + "..."
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

var _ Authority = (*DBAuthority)(nil)
