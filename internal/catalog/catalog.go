// Package catalog exposes the logical table/column catalog of the keyring
// schema. The catalog is authored in CUE (catalog.cue) and evaluated once;
// callers use it to reject unknown columns and ill-typed values before any
// statement reaches the database.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/keyringdb/internal/keyring"
)

//go:embed catalog.cue
var catalogCUE string

// Type is a bit set of the value types a column accepts.
type Type uint8

const (
	TypeNull Type = 1 << iota
	TypeInt
	TypeBool
	TypeString
	TypeBytes
)

// Column describes one column.
type Column struct {
	Name string
	Type Type
}

// Nullable reports whether NULL is accepted.
func (c Column) Nullable() bool {
	return c.Type&TypeNull != 0
}

// Accepts reports whether v is a legal value for the column.
// Bool columns are persisted as INTEGER and also accept Int 0/1.
func (c Column) Accepts(v keyring.Value) bool {
	switch val := v.(type) {
	case nil, keyring.Null:
		return c.Type&TypeNull != 0
	case keyring.Int:
		if c.Type&TypeInt != 0 {
			return true
		}
		return c.Type&TypeBool != 0 && (val == 0 || val == 1)
	case keyring.Bool:
		return c.Type&TypeBool != 0
	case keyring.String:
		return c.Type&TypeString != 0
	case keyring.Bytes:
		return c.Type&TypeBytes != 0
	default:
		return false
	}
}

// Table describes one table in column order.
type Table struct {
	Name    string
	Columns []Column
	index   map[string]int
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is the set of known tables. It is immutable after construction.
type Catalog struct {
	tables map[string]*Table
	order  []string
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// TableNames returns table names in declaration order.
func (c *Catalog) TableNames() []string {
	return append([]string(nil), c.order...)
}

// ValidatePayload checks every payload column exists in table and carries
// a value of an accepted type.
func (c *Catalog) ValidatePayload(table string, values keyring.Values) error {
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for _, name := range values.SortedKeys() {
		col, ok := t.Column(name)
		if !ok {
			return fmt.Errorf("unknown column %q in table %q", name, table)
		}
		if !col.Accepts(values[name]) {
			return fmt.Errorf("column %s.%s does not accept %T", table, name, values[name])
		}
	}
	return nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog compiled from the embedded CUE document.
// It panics if the embedded document is invalid, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(catalogCUE)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", defaultErr))
	}
	return defaultCat
}

// Parse compiles a CUE catalog document. Each top-level field is a table;
// each table field is a column whose constraint determines its Type.
func Parse(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog: %w", err)
	}

	cat := &Catalog{tables: make(map[string]*Table)}

	tables, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for tables.Next() {
		name := tables.Selector().String()
		t, err := parseTable(name, tables.Value())
		if err != nil {
			return nil, err
		}
		cat.tables[name] = t
		cat.order = append(cat.order, name)
	}

	if len(cat.order) == 0 {
		return nil, fmt.Errorf("catalog declares no tables")
	}
	return cat, nil
}

func parseTable(name string, v cue.Value) (*Table, error) {
	cols, err := v.Fields()
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}

	t := &Table{Name: name, index: make(map[string]int)}
	for cols.Next() {
		colName := cols.Selector().String()
		typ, err := columnType(cols.Value().IncompleteKind())
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", name, colName, err)
		}
		t.index[colName] = len(t.Columns)
		t.Columns = append(t.Columns, Column{Name: colName, Type: typ})
	}

	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("table %q declares no columns", name)
	}
	return t, nil
}

func columnType(k cue.Kind) (Type, error) {
	var typ Type
	if k&cue.NullKind != 0 {
		typ |= TypeNull
	}
	if k&cue.IntKind != 0 {
		typ |= TypeInt
	}
	if k&cue.BoolKind != 0 {
		typ |= TypeBool
	}
	if k&cue.StringKind != 0 {
		typ |= TypeString
	}
	if k&cue.BytesKind != 0 {
		typ |= TypeBytes
	}
	if typ == 0 || typ == TypeNull {
		return 0, fmt.Errorf("unsupported constraint kind %v", k)
	}
	return typ, nil
}
