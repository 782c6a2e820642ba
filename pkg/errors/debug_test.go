package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_payment_id", TableName: "orders", Message: "duplicate key value"}
	err := Wrap(CodeDependency, fmt.Errorf("create order: %w", pgErr), "settle payment")

	d := Dump(err)
	if d.Code != CodeDependency || !d.Retryable {
		t.Fatalf("unexpected code dump %+v", d)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_orders_payment_id" || d.PGTable != "orders" {
		t.Fatalf("pg fields not extracted: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
}

func TestDumpExtractsPqDiagnostics(t *testing.T) {
	err := fmt.Errorf("update item: %w", &pq.Error{Code: "40001", Table: "items", Message: "could not serialize access"})
	if got := PGCode(err); got != "40001" {
		t.Fatalf("expected 40001, got %q", got)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
