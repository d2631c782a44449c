// Package database assembles parameterized list queries for the record
// tables. Store queries filter on a varying subset of columns, so the SQL is
// built from typed conditions with every identifier quoted through pgx.
package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ConditionType selects the SQL operator a Condition renders with.
type ConditionType string

const (
	Equal              ConditionType = "="
	NotEqual           ConditionType = "!="
	GreaterThan        ConditionType = ">"
	LessThan           ConditionType = "<"
	LessThanOrEqual    ConditionType = "<="
	GreaterThanOrEqual ConditionType = ">="
	// Any renders to "field = ANY($n)" with the slice bound as a single
	// parameter; the pgx driver encodes Go slices as Postgres arrays.
	Any ConditionType = "ANY"
)

// Condition is one WHERE predicate on a plain column.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

// WhereCond builds a condition on a column. The field is quoted before it
// reaches the query, so it must be a bare or table-qualified identifier,
// never an expression.
func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

type ordering struct {
	column    string
	direction string
}

// ListQueryOptions describes a single-table SELECT for BuildListQuery.
type ListQueryOptions struct {
	Table      string
	Columns    []string
	Conditions []Condition
	orderings  []ordering
	Limit      int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select. Omitting it selects *.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Columns = cols
	}
}

// WithCondition appends a single condition. Conditions combine with AND.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = append(o.Conditions, cond)
	}
}

// WithOrderBy appends one ordering column; call it once per column. The
// direction must be ASC or DESC and is dropped otherwise.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.orderings = append(o.orderings, ordering{column: column, direction: direction})
	}
}

// WithLimit sets the limit. Zero or negative leaves the query unbounded.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Limit = limit
	}
}

// sanitizeIdentifier quotes a bare or table-qualified identifier, splitting
// on '.' so each part is quoted separately.
func sanitizeIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

// BuildListQuery constructs the SQL text and positional arguments for the
// options. Identifiers are quoted and values are always bound as parameters.
//
// Example usage:
//
//	options := NewListQueryOptions("jobtrawl_records",
//		WithColumns("id", "state"),
//		WithCondition(WhereCond("platform", Equal, "boardfeed")),
//		WithCondition(WhereCond("state", Any, []string{"queued", "failed"})),
//		WithOrderBy("discovered_at", "ASC"),
//		WithLimit(10),
//	)
//
//	query, args := BuildListQuery(options)
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var query strings.Builder
	query.WriteString(buildSelectClause(options))
	query.WriteString("FROM ")
	query.WriteString(sanitizeIdentifier(options.Table))

	whereClause, args := buildWhereClause(options.Conditions)
	if whereClause != "" {
		query.WriteString(" ")
		query.WriteString(whereClause)
	}

	if orderClause := buildOrderClause(options.orderings); orderClause != "" {
		query.WriteString(orderClause)
	}

	if options.Limit > 0 {
		args = append(args, options.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	return query.String(), args
}

func buildSelectClause(options *ListQueryOptions) string {
	if len(options.Columns) == 0 {
		return "SELECT * "
	}
	cols := make([]string, len(options.Columns))
	for i, col := range options.Columns {
		cols[i] = sanitizeIdentifier(col)
	}
	return fmt.Sprintf("SELECT %s ", strings.Join(cols, ", "))
}

// buildWhereClause renders the conditions, numbering parameters from $1.
// Conditions with an empty field or an unknown type are skipped rather than
// emitted broken.
func buildWhereClause(conditions []Condition) (string, []any) {
	clauses := make([]string, 0, len(conditions))
	args := []any{}

	for _, cond := range conditions {
		if cond.Field == "" {
			continue
		}
		field := sanitizeIdentifier(cond.Field)
		switch cond.Type {
		case Any:
			args = append(args, cond.Value)
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", field, len(args)))
		case Equal, NotEqual, GreaterThan, LessThan, LessThanOrEqual, GreaterThanOrEqual:
			args = append(args, cond.Value)
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", field, cond.Type, len(args)))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func buildOrderClause(orderings []ordering) string {
	if len(orderings) == 0 {
		return ""
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		part := sanitizeIdentifier(ord.column)
		if dir := strings.ToUpper(ord.direction); dir == "ASC" || dir == "DESC" {
			part += " " + dir
		}
		parts = append(parts, part)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
