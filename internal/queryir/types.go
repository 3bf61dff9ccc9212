package queryir

import "github.com/roach88/keyringdb/internal/keyring"

// Statement is a compiled-to-be SQL statement in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in backend compilers.
//
// Statement types:
//   - Select: projection over a table and its inner joins
//   - Insert: one row into one table
//   - Update: conditional update of one table
//   - Delete: conditional delete from one table
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: column = literal (IS NULL for Null)
//   - Compare: column <op> literal
//   - ColumnEquals: column = column
//   - EndsWith: column ends with a literal suffix, case-sensitive
//   - And, Or: conjunction and disjunction
//   - Exists: correlated subquery
//
// Every literal is bound as a parameter by the backend.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Col is a column reference. Table is a table name or alias and may be
// empty for single-table statements.
type Col struct {
	Table string
	Name  string
}

// C is shorthand for a qualified column reference.
func C(table, name string) Col { return Col{Table: table, Name: name} }

// TableRef names a table with an optional alias.
type TableRef struct {
	Name  string
	Alias string
}

// Ref returns the name other clauses use to qualify this table's columns.
func (t TableRef) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Join is an INNER JOIN of Table on On.
type Join struct {
	Table TableRef
	On    Predicate
}

// Projection selects Col under the output name As.
type Projection struct {
	Col Col
	As  string
}

// Order is one ORDER BY term.
type Order struct {
	Col  Col
	Desc bool
}

// Select represents a read.
//
// Semantics:
//
//	SELECT <columns> FROM <from> [INNER JOIN <table> ON <on>]...
//	WHERE <where> ORDER BY <order> [LIMIT <limit>]
//
// Example:
//
//	Select{
//	  From:    TableRef{Name: "user_ids"},
//	  Columns: []Projection{{Col: C("user_ids", "user_id"), As: "user_id"}},
//	  Where:   Equals{Col: C("user_ids", "key_ring_row_id"), Value: keyring.Int(7)},
//	  OrderBy: []Order{{Col: C("user_ids", "rank")}},
//	}
//
// Translates to SQL:
//
//	SELECT user_ids.user_id AS user_id FROM user_ids
//	WHERE user_ids.key_ring_row_id = ?
//	ORDER BY user_ids.rank ASC
//
// Columns must be explicit; there is no SELECT *. Inside Exists the
// projection is ignored and the backend emits SELECT 1.
type Select struct {
	From    TableRef
	Joins   []Join
	Columns []Projection
	Where   Predicate // nil = no filter
	OrderBy []Order
	Limit   int // 0 = no limit
}

func (Select) statementNode() {}

// Insert adds one row. Values maps column name to value.
type Insert struct {
	Table  string
	Values keyring.Values
}

func (Insert) statementNode() {}

// Update sets columns on every row matching Where.
// Where is required; an unscoped update is rejected by Validate.
type Update struct {
	Table string
	Set   keyring.Values
	Where Predicate
}

func (Update) statementNode() {}

// Delete removes every row matching Where.
// Where is required; an unscoped delete is rejected by Validate.
type Delete struct {
	Table string
	Where Predicate
}

func (Delete) statementNode() {}

// Equals represents a column-equals-literal predicate.
//
//	<col> = ?      (Value is not Null)
//	<col> IS NULL  (Value is Null)
type Equals struct {
	Col   Col
	Value keyring.Value
}

func (Equals) predicateNode() {}

// Op is a comparison operator for Compare.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether op is one of the defined operators.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare represents a column-versus-literal comparison.
type Compare struct {
	Col   Col
	Op    Op
	Value keyring.Value
}

func (Compare) predicateNode() {}

// ColumnEquals represents an equi-join condition between two columns.
type ColumnEquals struct {
	Left  Col
	Right Col
}

func (ColumnEquals) predicateNode() {}

// EndsWith is true when the column's text ends with Suffix. Matching is
// exact and case-sensitive; it is not a LIKE pattern.
//
//	substr(<col>, -length(?)) = ?
type EndsWith struct {
	Col    Col
	Suffix string
}

func (EndsWith) predicateNode() {}

// And represents a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. An empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Exists is true when Query returns at least one row. Query may refer to
// tables of the enclosing statement, making it a correlated subquery.
type Exists struct {
	Query Select
}

func (Exists) predicateNode() {}

// AllOf builds an And, dropping nil predicates and flattening to the sole
// remaining predicate when only one is left.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
