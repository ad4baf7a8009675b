package objects

import (
	"fmt"
	"time"

	"advflow/app/db/models"
	"advflow/pkg/contextx"
	"advflow/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AcquireNamedLock inserts a lock row for name. The unique index on the name
// makes a second holder fail with ErrLockHeld, inside or across transactions.
func AcquireNamedLock(ctx *contextx.Context, conn *gorm.DB, name, owner string) error {
	db := GetDB(ctx, conn)

	var existing models.NamedLock
	err := db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return fmt.Errorf("%w: %s is held by %s", ErrLockHeld, name, existing.Owner)
	}
	if !IsNotFoundError(err) {
		return err
	}

	now := time.Now().UTC()
	lock := &models.NamedLock{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(lock).Error; err != nil {
		if IsDuplicateError(err) {
			return fmt.Errorf("%w: %s", ErrLockHeld, name)
		}
		return err
	}
	return nil
}

func ReleaseNamedLock(ctx *contextx.Context, conn *gorm.DB, name string) error {
	return GetDB(ctx, conn).Where("name = ?", name).Delete(&models.NamedLock{}).Error
}

// WithNamedLock runs callback while holding name.
func WithNamedLock(ctx *contextx.Context, conn *gorm.DB, name string, callback func() error) error {
	owner := uuid.NewString()
	if err := AcquireNamedLock(ctx, conn, name, owner); err != nil {
		return err
	}

	err := callback()
	if delErr := ReleaseNamedLock(ctx, conn, name); delErr != nil {
		log.Warnf(ctx, "clear lock %s failed, error: %s", name, delErr.Error())
	}
	return err
}
