package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestLogFieldsFromPgx(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "reviews_reviewer_reviewee_key", TableName: "reviews"}
	err := Wrap(CodeConflict, fmt.Errorf("insert review: %w", pgErr), "review exists").
		WithDetails(map[string]any{"step": "insert"})

	fields := LogFields(err)
	if fields["error_code"] != "CONFLICT" || fields["pg_code"] != "23505" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if fields["pg_constraint"] != "reviews_reviewer_reviewee_key" || fields["step"] != "insert" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_detail"]; ok {
		t.Fatalf("empty diagnostics should be omitted")
	}
	if chain := fields["error_chain"].([]string); len(chain) != 3 {
		t.Fatalf("expected three links, got %v", chain)
	}
}

func TestLogFieldsFromPq(t *testing.T) {
	fields := LogFields(fmt.Errorf("update: %w", &pq.Error{Code: "40001", Table: "orders"}))
	if fields["pg_code"] != "40001" || fields["pg_table"] != "orders" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["error_code"]; ok {
		t.Fatalf("untyped errors carry no code")
	}
	if len(LogFields(nil)) != 0 {
		t.Fatalf("nil error should produce no fields")
	}
}
