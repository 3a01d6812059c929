// Package postgres implements masterdata persistence on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
)

// DBTX is the database handle shared by repositories, satisfied by both
// *sql.DB and *sql.Tx so shipment provisioning can reuse repositories
// inside one transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
