package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

// exists reports whether table holds a row with the given id. table is
// always a package constant, never caller input.
func exists(ctx context.Context, q Getter, table, id string) (bool, error) {
	var found bool
	err := q.GetContext(ctx, &found, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, id)
	if err != nil {
		return false, fmt.Errorf("check %s id: %w", table, err)
	}
	return found, nil
}

// placeholder renders the n-th positional parameter for queries whose
// argument list is built up conditionally.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
