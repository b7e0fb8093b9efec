//go:build !integration

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"salon-billing/internal/domain"
)

func TestGetExecutor(t *testing.T) {
	if _, err := getExecutor(nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without pool or tx, got %v", err)
	}
	if _, err := getExecutor(nil, "not a tx"); !errors.Is(err, domain.ErrInvalidExecContext) {
		t.Errorf("expected ErrInvalidExecContext, got %v", err)
	}
}

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "tenants_email_key"}, domain.ErrAlreadyExists},
		{"canceled", context.Canceled, context.Canceled},
		{"driver fault", errors.New("conn reset"), domain.ErrOperationFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := mapErr("op", c.in); !errors.Is(err, c.want) {
				t.Errorf("mapErr(%v) = %v, want %v", c.in, err, c.want)
			}
		})
	}
	if err := mapErr("op", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := mapErr("query", errors.New("conn reset")); !strings.Contains(err.Error(), "conn reset") {
		t.Errorf("driver message lost: %v", err)
	}
}
