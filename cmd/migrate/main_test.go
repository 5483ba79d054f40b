package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPgx5URL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/luxora?sslmode=disable", pgx5URL("postgres://u:p@db:5432/luxora?sslmode=disable"))
	assert.Equal(t, "pgx5://db/luxora", pgx5URL("postgresql://db/luxora"))
	assert.Equal(t, "pgx5://db/luxora", pgx5URL("pgx5://db/luxora"))
}
