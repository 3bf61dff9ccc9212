package queryir

import (
	"fmt"
	"regexp"
)

// identifierPattern is the only shape of table, alias and column names the
// backends will splice into SQL text. Everything else is a bound value.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s may appear unquoted in SQL text.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// ValidationResult lists the problems found in a statement.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Err returns the problems as an error, or nil when the statement is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid statement: %v", r.Problems)
}

// Validate checks that a statement can be compiled safely:
//  1. Every identifier matches identifierPattern
//  2. Selects project at least one column
//  3. Inserts carry at least one value
//  4. Updates set at least one column and, like deletes, have a WHERE
//  5. Compare uses a known operator
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) ValidationResult {
	v := &validator{
		problems: []string{},
	}
	v.validateStatement(stmt)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) ident(what, s string) {
	if !ValidIdentifier(s) {
		v.addProblem("invalid %s identifier %q", what, s)
	}
}

func (v *validator) col(c Col) {
	if c.Table != "" {
		v.ident("table", c.Table)
	}
	v.ident("column", c.Name)
}

func (v *validator) validateStatement(s Statement) {
	switch stmt := s.(type) {
	case nil:
		v.addProblem("nil statement")
	case Select:
		v.validateSelect(stmt, false)
	case *Select:
		v.validateSelect(*stmt, false)
	case Insert:
		v.validateInsert(stmt)
	case *Insert:
		v.validateInsert(*stmt)
	case Update:
		v.validateUpdate(stmt)
	case *Update:
		v.validateUpdate(*stmt)
	case Delete:
		v.validateDelete(stmt)
	case *Delete:
		v.validateDelete(*stmt)
	default:
		v.addProblem("unknown statement type %T", s)
	}
}

func (v *validator) table(t TableRef) {
	v.ident("table", t.Name)
	if t.Alias != "" {
		v.ident("alias", t.Alias)
	}
}

func (v *validator) validateSelect(sel Select, subquery bool) {
	v.table(sel.From)

	for _, j := range sel.Joins {
		v.table(j.Table)
		if j.On == nil {
			v.addProblem("join of %s has no ON condition", j.Table.Name)
		}
		v.validatePredicate(j.On)
	}

	if !subquery && len(sel.Columns) == 0 {
		v.addProblem("select from %s projects no columns", sel.From.Name)
	}
	for _, p := range sel.Columns {
		v.col(p.Col)
		if p.As != "" {
			v.ident("alias", p.As)
		}
	}

	v.validatePredicate(sel.Where)

	for _, o := range sel.OrderBy {
		v.col(o.Col)
	}

	if sel.Limit < 0 {
		v.addProblem("negative limit %d", sel.Limit)
	}
}

func (v *validator) validateInsert(ins Insert) {
	v.ident("table", ins.Table)
	if len(ins.Values) == 0 {
		v.addProblem("insert into %s has no values", ins.Table)
	}
	for _, name := range ins.Values.SortedKeys() {
		v.ident("column", name)
	}
}

func (v *validator) validateUpdate(upd Update) {
	v.ident("table", upd.Table)
	if len(upd.Set) == 0 {
		v.addProblem("update of %s sets no columns", upd.Table)
	}
	for _, name := range upd.Set.SortedKeys() {
		v.ident("column", name)
	}
	if upd.Where == nil {
		v.addProblem("update of %s has no WHERE", upd.Table)
	}
	v.validatePredicate(upd.Where)
}

func (v *validator) validateDelete(del Delete) {
	v.ident("table", del.Table)
	if del.Where == nil {
		v.addProblem("delete from %s has no WHERE", del.Table)
	}
	v.validatePredicate(del.Where)
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// nil predicates are valid (no filter)
	case Equals:
		v.col(pred.Col)
	case Compare:
		v.col(pred.Col)
		if !pred.Op.Valid() {
			v.addProblem("unknown operator %q", pred.Op)
		}
	case ColumnEquals:
		v.col(pred.Left)
		v.col(pred.Right)
	case EndsWith:
		v.col(pred.Col)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Exists:
		v.validateSelect(pred.Query, true)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}
