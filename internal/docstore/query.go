package docstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

var validOps = map[Op]bool{OpEq: true, OpNe: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true}

// dialect renders JSON field access for one SQL engine.
type dialect interface {
	placeholder(n int) string
	field(path string) string
	timeField(path string) string
	timeParam(p string) string
	numField(path string) string
}

type sqliteDialect struct{}

func (sqliteDialect) placeholder(int) string { return "?" }
func (sqliteDialect) field(path string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", path)
}
func (d sqliteDialect) timeField(path string) string {
	return fmt.Sprintf("julianday(%s)", d.field(path))
}
func (sqliteDialect) timeParam(p string) string { return "julianday(" + p + ")" }
func (d sqliteDialect) numField(path string) string {
	return d.field(path)
}

type postgresDialect struct{}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (postgresDialect) field(path string) string {
	parts := strings.Split(path, ".")
	return fmt.Sprintf("(data #>> '{%s}')", strings.Join(parts, ","))
}
func (d postgresDialect) timeField(path string) string {
	return d.field(path) + "::timestamptz"
}
func (postgresDialect) timeParam(p string) string { return p + "::timestamptz" }
func (d postgresDialect) numField(path string) string {
	return d.field(path) + "::numeric"
}

// buildWhere renders the conditions of f. argOffset is the number of
// positional arguments already bound before the first condition.
func buildWhere(d dialect, f Filter, argOffset int) (string, []any, error) {
	var clauses []string
	var args []any
	for _, c := range f.Where {
		if !fieldPattern.MatchString(c.Field) {
			return "", nil, eris.Wrapf(ErrInvalidFilter, "field %q", c.Field)
		}
		if !validOps[c.Op] {
			return "", nil, eris.Wrapf(ErrInvalidFilter, "operator %q", c.Op)
		}
		ph := d.placeholder(argOffset + len(args) + 1)
		var lhs, rhs string
		var arg any
		switch v := c.Value.(type) {
		case time.Time:
			lhs, rhs, arg = d.timeField(c.Field), d.timeParam(ph), v.UTC().Format(time.RFC3339Nano)
		case int, int32, int64, float32, float64:
			lhs, rhs, arg = d.numField(c.Field), ph, v
		case bool:
			lhs, rhs, arg = d.field(c.Field), ph, boolText(d, v)
		case fmt.Stringer:
			lhs, rhs, arg = d.field(c.Field), ph, v.String()
		default:
			lhs, rhs, arg = d.field(c.Field), ph, fmt.Sprint(v)
		}
		op := string(c.Op)
		if c.Op == OpNe {
			op = "<>"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s %s", lhs, op, rhs))
		args = append(args, arg)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func boolText(d dialect, v bool) any {
	if _, ok := d.(sqliteDialect); ok {
		// json_extract yields 1/0 for JSON booleans.
		if v {
			return 1
		}
		return 0
	}
	if v {
		return "true"
	}
	return "false"
}

// buildOrder renders ORDER BY and LIMIT.
func buildOrder(d dialect, f Filter) (string, error) {
	var sb strings.Builder
	if f.OrderBy != "" {
		if !fieldPattern.MatchString(f.OrderBy) {
			return "", eris.Wrapf(ErrInvalidFilter, "order field %q", f.OrderBy)
		}
		expr := d.field(f.OrderBy)
		if strings.HasSuffix(f.OrderBy, "_at") {
			expr = d.timeField(f.OrderBy)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(expr)
		if f.Desc {
			sb.WriteString(" DESC")
		}
		sb.WriteString(", id")
	} else {
		sb.WriteString(" ORDER BY id")
	}
	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.Limit)
	}
	return sb.String(), nil
}
