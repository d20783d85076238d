package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: the typed code, the
// unwrap chain and any postgres diagnostics from pgx or lib/pq drivers.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error_chain": chain(err)}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
		if details, ok := typed.Details().(map[string]any); ok {
			if step, ok := details["step"]; ok {
				fields["step"] = step
			}
		}
	}
	for k, v := range postgresFields(err) {
		fields[k] = v
	}
	return fields
}

func chain(err error) []string {
	var out []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		out = append(out, fmt.Sprintf("%T", e))
	}
	return out
}

func postgresFields(err error) map[string]any {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgFields(pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail)
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgFields(string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail)
	}
	return nil
}

func pgFields(code, constraint, table, detail string) map[string]any {
	out := map[string]any{"pg_code": code}
	if constraint != "" {
		out["pg_constraint"] = constraint
	}
	if table != "" {
		out["pg_table"] = table
	}
	if detail != "" {
		out["pg_detail"] = detail
	}
	return out
}
