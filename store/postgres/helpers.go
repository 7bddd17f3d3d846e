package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// queryBuilder accumulates WHERE clauses and positional arguments.
type queryBuilder struct {
	query string
	args  []any
}

func (b *queryBuilder) where(clause string, arg any) {
	b.args = append(b.args, arg)
	b.query += fmt.Sprintf(" AND "+clause, len(b.args))
}

func (b *queryBuilder) page(orderBy string, limit, offset int) {
	b.query += " ORDER BY " + orderBy
	if limit > 0 {
		b.args = append(b.args, limit)
		b.query += fmt.Sprintf(" LIMIT $%d", len(b.args))
	}
	if offset > 0 {
		b.args = append(b.args, offset)
		b.query += fmt.Sprintf(" OFFSET $%d", len(b.args))
	}
}
