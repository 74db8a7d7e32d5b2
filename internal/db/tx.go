package db

import (
	"context"
	"database/sql"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/avito-tech/go-transaction-manager/trm/v2/settings"
)

// Conn is what repositories query through: the transaction bound to ctx, or
// the plain pool when none is open.
type Conn = trmsql.Tr

// TxManager runs fn inside a transaction; nested calls join the outer one.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxSettings runs transactions at READ COMMITTED so every statement after the
// booking row lock reads the latest committed ledger rows.
func TxSettings() trmsql.Settings {
	return trmsql.MustSettings(
		settings.Must(settings.WithCancelable(true)),
		trmsql.WithTxOptions(&sql.TxOptions{Isolation: sql.LevelReadCommitted}),
	)
}

// NewTxManager binds a transaction manager to db.
func NewTxManager(db *sql.DB) *manager.Manager {
	return manager.Must(trmsql.NewDefaultFactory(db), manager.WithSettings(TxSettings()))
}

// ConnFrom returns the transaction stored in ctx, falling back to db.
func ConnFrom(ctx context.Context, db *sql.DB) Conn {
	return trmsql.DefaultCtxGetter.DefaultTrOrDB(ctx, db)
}

// Direct runs fn without a transaction. Used when no manager is wired.
type Direct struct{}

func (Direct) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
