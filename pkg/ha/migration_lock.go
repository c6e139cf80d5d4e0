// Package ha serializes startup work across registry replicas. Multiple
// replicas pointed at the same database must not run schema migrations
// concurrently; MigrationLocker makes exactly one replica migrate while the
// others wait.
package ha

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

// MigrationLocker runs a function while holding an exclusive cross-replica
// lock. It blocks until the lock is acquired and releases it when fn returns.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a locking strategy for the database dialect.
// Postgres gets an advisory lock; sqlite and mysql fall back to a lock table
// with stale-row recovery. A nil db yields a no-op locker for tests.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	if db == nil {
		return noopLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{
			db:     db,
			lockID: int64(crc32.ChecksumIEEE([]byte("registry-migration"))),
		}
	}
	lock := &tableLock{db: db}
	// Create the lock table up front so concurrent first callers never race
	// on "no such table".
	_ = db.AutoMigrate(&lockRow{})
	return lock
}

type noopLock struct{}

func (noopLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

// advisoryLock serializes via pg_advisory_lock, which blocks server-side
// until the lock is free.
type advisoryLock struct {
	db     *gorm.DB
	lockID int64
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.lockID).Error; err != nil {
		return fmt.Errorf("acquire migration advisory lock: %w", err)
	}
	defer func() {
		_ = l.db.Exec("SELECT pg_advisory_unlock(?)", l.lockID).Error
	}()
	return fn()
}

type lockRow struct {
	ID       string    `gorm:"primaryKey;column:id"`
	LockedAt time.Time `gorm:"column:locked_at"`
	LockedBy string    `gorm:"column:locked_by"`
}

func (lockRow) TableName() string { return "migration_lock" }

const (
	lockKey       = "migration"
	lockMaxTries  = 30
	lockRetryWait = time.Second
	staleLockAge  = 5 * time.Minute
)

// tableLock uses insert-or-fail on a single-row table. A replica that
// crashed while holding the lock leaves a stale row, which later waiters
// clear once it passes staleLockAge.
type tableLock struct {
	db *gorm.DB
}

func (l *tableLock) WithLock(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	row := lockRow{ID: lockKey, LockedBy: holder}

	acquired := false
	for i := 0; i < lockMaxTries; i++ {
		l.db.WithContext(ctx).
			Where("id = ? AND locked_at < ?", lockKey, time.Now().Add(-staleLockAge)).
			Delete(&lockRow{})

		row.LockedAt = time.Now()
		result := l.db.WithContext(ctx).Create(&row)
		if result.Error == nil {
			acquired = true
			break
		}
		if i == lockMaxTries-1 {
			return fmt.Errorf("acquire migration lock after %d tries: %w", lockMaxTries, result.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
	if !acquired {
		return fmt.Errorf("acquire migration lock")
	}

	defer func() {
		l.db.Where("id = ?", lockKey).Delete(&lockRow{})
	}()
	return fn()
}
