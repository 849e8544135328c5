package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, models.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("query: %w", pgx.ErrNoRows), models.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.ErrConflict},
		{"not null violation", &pgconn.PgError{Code: "23502"}, models.ErrBadRequest},
		{"bad uuid", &pgconn.PgError{Code: "22P02"}, models.ErrBadRequest},
		{"connection failure", &pgconn.PgError{Code: "08006"}, models.ErrStoreUnavailable},
		{"too many connections", &pgconn.PgError{Code: "53300"}, models.ErrStoreUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, models.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, models.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapPostgresError(tt.err), tt.want)
		})
	}
}

func TestMapPostgresError_PassesThroughUnknown(t *testing.T) {
	assert.Nil(t, MapPostgresError(nil))

	other := errors.New("something else")
	assert.Equal(t, other, MapPostgresError(other))
}
