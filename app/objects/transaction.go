package objects

import (
	"advflow/pkg/contextx"

	"gorm.io/gorm"
)

// Transaction runs fc inside a database transaction. Stores called with
// subCtx use the transaction; a transaction already open in ctx is nested.
func Transaction(ctx *contextx.Context, conn *gorm.DB, fc func(subCtx *contextx.Context) error) error {
	if ctx == nil {
		ctx = contextx.NewContext()
	}
	subCtx := ctx.Clone()
	return GetDB(ctx, conn).Transaction(func(tx *gorm.DB) error {
		subCtx.SetDB(tx)
		return fc(subCtx)
	})
}
