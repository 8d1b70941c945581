package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Query is a filtered read of one manifest table.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit>
//
// Columns must be explicit. Order is required: every read is deterministic.
type Query struct {
	From    string
	Columns []string
	Filter  Predicate // nil = no filter
	Order   []string  // "column" or "column DESC"
	Limit   int       // 0 = no limit
}

// Predicate is a filter condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Equals matches rows whose field equals a literal. Value must be a
// string, int, int64 or bool.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// And matches rows accepted by every predicate. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where returns a conjunction of equality predicates for every non-empty
// value in fields, in argument order. Pairs are field, value.
func Where(pairs ...string) Predicate {
	var preds []Predicate
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			preds = append(preds, Equals{Field: pairs[i], Value: pairs[i+1]})
		}
	}
	if len(preds) == 0 {
		return nil
	}
	return And{Predicates: preds}
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// compileQuery converts q to parameterized SQL.
// CRITICAL: values are never interpolated - always ? placeholders.
func compileQuery(q Query) (string, []any, error) {
	if !identPattern.MatchString(q.From) {
		return "", nil, fmt.Errorf("invalid table %q", q.From)
	}
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("query on %s: explicit columns required", q.From)
	}
	for _, c := range q.Columns {
		if !identPattern.MatchString(c) {
			return "", nil, fmt.Errorf("invalid column %q", c)
		}
	}
	if len(q.Order) == 0 {
		return "", nil, fmt.Errorf("query on %s: order required", q.From)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(q.Columns, ", "), q.From)

	var params []any
	if q.Filter != nil {
		where, p, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = p
	}

	order, err := compileOrder(q.Order)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

func compileOrder(keys []string) (string, error) {
	parts := make([]string, len(keys))
	for i, k := range keys {
		col, dir, _ := strings.Cut(k, " ")
		if !identPattern.MatchString(col) {
			return "", fmt.Errorf("invalid order column %q", col)
		}
		switch strings.ToUpper(dir) {
		case "", "ASC":
			parts[i] = col + " ASC"
		case "DESC":
			parts[i] = col + " DESC"
		default:
			return "", fmt.Errorf("invalid order direction %q", dir)
		}
	}
	return strings.Join(parts, ", "), nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	if !identPattern.MatchString(eq.Field) {
		return "", nil, fmt.Errorf("invalid field %q", eq.Field)
	}
	switch v := eq.Value.(type) {
	case string, int, int64:
		return eq.Field + " = ?", []any{v}, nil
	case bool:
		if v {
			return eq.Field + " = ?", []any{1}, nil
		}
		return eq.Field + " = ?", []any{0}, nil
	default:
		return "", nil, fmt.Errorf("field %s: unsupported value type %T", eq.Field, eq.Value)
	}
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, p := range and.Predicates {
		sql, ps, err := compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}
