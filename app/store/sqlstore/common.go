// Package sqlstore implements app/store's repository interfaces on top of
// jmoiron/sqlx and Masterminds/squirrel, grounded in the teacher's
// app/store/sqlstore package (CommonFields, GetMaster/GetReplica wrapping a
// transaction pulled off the context, squirrel query building with the
// dollar placeholder format).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ironvale-labs/dtcforge/pkg/types"
)

func init() {
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func ErrorSqlBuild(err error) error {
	return fmt.Errorf("failed to build sql query: %w", err)
}

// SqlProviderAchieve is the subset of pkg/sqlstore.SqlProvider every store
// needs: a master connection, a replica connection, and the ambient
// transaction (if any) pinned to ctx by SqlProvider.Transaction.
type SqlProviderAchieve interface {
	GetMaster() *sqlx.DB
	GetReplica() *sqlx.DB
	GetTxFromCtx(ctx context.Context) *sqlx.Tx
}

// CommonFields is embedded by every concrete store; it resolves each call
// to either the ambient transaction (if the caller is inside
// SqlProvider.Transaction) or a fresh context-bound connection.
type CommonFields struct {
	table    string
	provider SqlProviderAchieve
}

func (c *CommonFields) SetProvider(p SqlProviderAchieve) { c.provider = p }
func (c *CommonFields) SetTable(t types.TableName)        { c.table = t.Name() }
func (c *CommonFields) GetTable() string                  { return c.table }

type Master interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type Replica interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
}

type dbWithContext struct {
	db  *sqlx.DB
	ctx context.Context
}

func (d *dbWithContext) Exec(query string, args ...interface{}) (sql.Result, error) {
	return d.db.ExecContext(d.ctx, query, args...)
}

func (d *dbWithContext) Get(dest interface{}, query string, args ...interface{}) error {
	return d.db.GetContext(d.ctx, dest, query, args...)
}

func (d *dbWithContext) Select(dest interface{}, query string, args ...interface{}) error {
	return d.db.SelectContext(d.ctx, dest, query, args...)
}

func (c *CommonFields) GetMaster(ctx context.Context) Master {
	if tx := c.provider.GetTxFromCtx(ctx); tx != nil {
		return tx
	}
	return &dbWithContext{db: c.provider.GetMaster(), ctx: ctx}
}

func (c *CommonFields) GetReplica(ctx context.Context) Replica {
	if tx := c.provider.GetTxFromCtx(ctx); tx != nil {
		return tx
	}
	return &dbWithContext{db: c.provider.GetReplica(), ctx: ctx}
}
