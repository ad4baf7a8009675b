package objects

import (
	"advflow/pkg/contextx"

	"gorm.io/gorm"
)

// GetDB returns the transaction carried by ctx, or conn when no
// transaction is open.
func GetDB(ctx *contextx.Context, conn *gorm.DB) *gorm.DB {
	var db *gorm.DB
	if ctx != nil {
		if tx, ok := ctx.GetDB().(*gorm.DB); ok && tx != nil {
			db = tx
		}
	}
	if db == nil {
		db = conn
	}
	if ctx != nil && ctx.Context != nil {
		return db.WithContext(ctx.Context)
	}
	return db
}
