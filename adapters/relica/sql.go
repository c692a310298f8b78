package relica

import (
	"strconv"
	"strings"
)

// rebind converts "?" placeholders to the driver's native style.
// MySQL and SQLite use "?" as-is; PostgreSQL needs "$1".."$n".
func rebind(driverName, query string) string {
	if driverName != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// upsertConflictClause returns the driver-specific insert-or-update tail
// for an upsert keyed on keyColumns, updating setColumns from the
// attempted insert values.
func upsertConflictClause(driverName string, keyColumns, setColumns []string) string {
	var b strings.Builder
	if driverName == "mysql" {
		b.WriteString(" ON DUPLICATE KEY UPDATE ")
		for i, col := range setColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(col)
			b.WriteString(" = VALUES(")
			b.WriteString(col)
			b.WriteString(")")
		}
		return b.String()
	}

	// PostgreSQL and SQLite share ON CONFLICT syntax.
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(keyColumns, ", "))
	b.WriteString(") DO UPDATE SET ")
	for i, col := range setColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col)
		b.WriteString(" = excluded.")
		b.WriteString(col)
	}
	return b.String()
}
