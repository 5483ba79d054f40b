package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// uniqueViolation maps a Postgres unique-constraint failure to a *DuplicateError
// naming the offending field. Constraint names not listed fall back to the raw name.
func uniqueViolation(err error) (*DuplicateError, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil, false
	}
	field, ok := constraintFields[pgErr.ConstraintName]
	if !ok {
		field = pgErr.ConstraintName
	}
	return &DuplicateError{Field: field}, true
}

func foreignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

var constraintFields = map[string]string{
	"users_email_key":         "email",
	"categories_slug_key":     "slug",
	"products_slug_key":       "slug",
	"products_sku_key":        "sku",
	"orders_order_number_key": "orderNumber",
}
