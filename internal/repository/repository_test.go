package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorCode(t *testing.T) {
	unique := &pgconn.PgError{Code: codeUniqueViolation}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("unique violation"), ""},
		{"pg error", unique, codeUniqueViolation},
		{"wrapped pg error", fmt.Errorf("insert: %w", unique), codeUniqueViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pgErrorCode(tt.err); got != tt.want {
				t.Errorf("pgErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("nonNil(nil) = %#v, want empty non-nil", got)
	}
	in := []string{"a"}
	if got := nonNil(in); len(got) != 1 || got[0] != "a" {
		t.Errorf("nonNil(%v) = %v", in, got)
	}
}
