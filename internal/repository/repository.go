// Package repository is the ledger store: hand-written queries over
// database/sql against Postgres.
//
// Queries run against any DBTX, so the same query set works on a *sql.DB
// for single-statement operations and on a *sql.Tx when an engine needs
// several writes to commit or fail together.
package repository

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql that queries need. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the ledger's query set.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
