package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional transaction so repo
// methods run inside the caller's transaction when one is open and fall
// back to the shared handle otherwise.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func New(ctx context.Context, tx *gorm.DB) Context {
	return Context{Ctx: ctx, Tx: tx}
}

func Background() Context {
	return Context{Ctx: context.Background()}
}

// DB resolves the handle to run queries on. def is the repo's default
// connection, used when no transaction is attached.
func (d Context) DB(def *gorm.DB) *gorm.DB {
	ctx := d.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if d.Tx != nil {
		return d.Tx.WithContext(ctx)
	}
	return def.WithContext(ctx)
}
