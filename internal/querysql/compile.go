package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/queryir"
)

// tiebreakColumn is the primary key every table carries; ordering by it
// last makes every result order total.
const tiebreakColumn = "id"

// SQLCompiler compiles QueryIR statements to parameterized SQL for SQLite.
//
// CRITICAL: Every top-level SELECT ends with an ORDER BY whose last term
// is the FROM table's id, so results are deterministic.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates stmt and converts it to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(stmt queryir.Statement) (string, []any, error) {
	if stmt == nil {
		return "", nil, fmt.Errorf("cannot compile nil statement")
	}
	if err := queryir.Validate(stmt).Err(); err != nil {
		return "", nil, err
	}

	b := &builder{}
	var err error
	switch s := stmt.(type) {
	case queryir.Select:
		err = b.selectStmt(s, false)
	case *queryir.Select:
		err = b.selectStmt(*s, false)
	case queryir.Insert:
		err = b.insertStmt(s)
	case *queryir.Insert:
		err = b.insertStmt(*s)
	case queryir.Update:
		err = b.updateStmt(s)
	case *queryir.Update:
		err = b.updateStmt(*s)
	case queryir.Delete:
		err = b.deleteStmt(s)
	case *queryir.Delete:
		err = b.deleteStmt(*s)
	default:
		err = fmt.Errorf("unsupported statement type: %T", stmt)
	}
	if err != nil {
		return "", nil, err
	}

	return b.sql.String(), b.params, nil
}

// builder accumulates SQL text and bound parameters in step.
type builder struct {
	sql    strings.Builder
	params []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sql.WriteString(p)
	}
}

// bind writes a placeholder and records its value.
func (b *builder) bind(v keyring.Value) error {
	param, err := keyring.ToDriver(v)
	if err != nil {
		return fmt.Errorf("convert value: %w", err)
	}
	b.sql.WriteString("?")
	b.params = append(b.params, param)
	return nil
}

func col(c queryir.Col) string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

func table(t queryir.TableRef) string {
	if t.Alias == "" {
		return t.Name
	}
	return t.Name + " AS " + t.Alias
}

// selectStmt compiles a Select. Subqueries project SELECT 1 and carry no
// ORDER BY; top-level selects always get the id tiebreak.
func (b *builder) selectStmt(s queryir.Select, subquery bool) error {
	b.write("SELECT ")
	if subquery {
		b.write("1")
	} else {
		for i, p := range s.Columns {
			if i > 0 {
				b.write(", ")
			}
			b.write(col(p.Col))
			if p.As != "" {
				b.write(" AS ", p.As)
			}
		}
	}

	b.write(" FROM ", table(s.From))

	for _, j := range s.Joins {
		b.write(" INNER JOIN ", table(j.Table), " ON (")
		if err := b.predicate(j.On); err != nil {
			return fmt.Errorf("compile join ON: %w", err)
		}
		b.write(")")
	}

	if s.Where != nil {
		b.write(" WHERE ")
		if err := b.predicate(s.Where); err != nil {
			return fmt.Errorf("compile filter: %w", err)
		}
	}

	if subquery {
		return nil
	}

	b.write(" ORDER BY ", stableOrder(s))

	if s.Limit > 0 {
		b.write(fmt.Sprintf(" LIMIT %d", s.Limit))
	}
	return nil
}

// stableOrder renders the caller's order followed by the id tiebreak.
// COLLATE BINARY pins text ordering regardless of column collation.
func stableOrder(s queryir.Select) string {
	tiebreak := queryir.C(s.From.Ref(), tiebreakColumn)

	var parts []string
	seen := false
	for _, o := range s.OrderBy {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, col(o.Col)+" COLLATE BINARY "+dir)
		if o.Col == tiebreak {
			seen = true
		}
	}
	if !seen {
		parts = append(parts, col(tiebreak)+" ASC")
	}
	return strings.Join(parts, ", ")
}

func (b *builder) insertStmt(s queryir.Insert) error {
	names := s.Values.SortedKeys()
	b.write("INSERT INTO ", s.Table, " (", strings.Join(names, ", "), ") VALUES (")
	for i, name := range names {
		if i > 0 {
			b.write(", ")
		}
		if err := b.bind(s.Values[name]); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	b.write(")")
	return nil
}

func (b *builder) updateStmt(s queryir.Update) error {
	b.write("UPDATE ", s.Table, " SET ")
	for i, name := range s.Set.SortedKeys() {
		if i > 0 {
			b.write(", ")
		}
		b.write(name, " = ")
		if err := b.bind(s.Set[name]); err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
	}
	b.write(" WHERE ")
	return b.predicate(s.Where)
}

func (b *builder) deleteStmt(s queryir.Delete) error {
	b.write("DELETE FROM ", s.Table, " WHERE ")
	return b.predicate(s.Where)
}

// predicate compiles a predicate fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (b *builder) predicate(p queryir.Predicate) error {
	switch pred := p.(type) {
	case nil:
		b.write("1 = 1")
		return nil
	case queryir.Equals:
		return b.compare(pred.Col, queryir.OpEq, pred.Value)
	case queryir.Compare:
		return b.compare(pred.Col, pred.Op, pred.Value)
	case queryir.ColumnEquals:
		b.write(col(pred.Left), " = ", col(pred.Right))
		return nil
	case queryir.EndsWith:
		return b.endsWith(pred)
	case queryir.And:
		return b.junction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return b.junction(pred.Predicates, " OR ", "1 = 0")
	case queryir.Exists:
		b.write("EXISTS (")
		if err := b.selectStmt(pred.Query, true); err != nil {
			return err
		}
		b.write(")")
		return nil
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) compare(c queryir.Col, op queryir.Op, v keyring.Value) error {
	if _, isNull := v.(keyring.Null); isNull || v == nil {
		switch op {
		case queryir.OpEq:
			b.write(col(c), " IS NULL")
			return nil
		case queryir.OpNe:
			b.write(col(c), " IS NOT NULL")
			return nil
		default:
			return fmt.Errorf("operator %s cannot compare %s with NULL", op, col(c))
		}
	}

	b.write(col(c), " ", string(op), " ")
	return b.bind(v)
}

// endsWith compiles an exact, case-sensitive suffix test. The suffix is
// bound twice rather than spliced into a LIKE pattern, so '%' and '_' in
// caller text have no special meaning.
func (b *builder) endsWith(e queryir.EndsWith) error {
	if e.Suffix == "" {
		b.write(col(e.Col), " IS NOT NULL")
		return nil
	}
	b.write("substr(", col(e.Col), ", -length(")
	if err := b.bind(keyring.String(e.Suffix)); err != nil {
		return err
	}
	b.write(")) = ")
	return b.bind(keyring.String(e.Suffix))
}

func (b *builder) junction(preds []queryir.Predicate, sep, empty string) error {
	if len(preds) == 0 {
		b.write(empty)
		return nil
	}
	if len(preds) == 1 {
		return b.predicate(preds[0])
	}

	b.write("(")
	for i, p := range preds {
		if i > 0 {
			b.write(sep)
		}
		if err := b.predicate(p); err != nil {
			return err
		}
	}
	b.write(")")
	return nil
}
