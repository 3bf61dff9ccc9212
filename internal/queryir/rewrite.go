package queryir

import "fmt"

// ColumnMapper resolves a caller-visible column to the column it stands
// for in a concrete statement.
type ColumnMapper func(Col) (Col, error)

// MapColumns returns a copy of p with every column reference passed
// through m. Exists is rejected: subqueries are built by the compiler and
// never taken from callers.
func MapColumns(p Predicate, m ColumnMapper) (Predicate, error) {
	switch pred := p.(type) {
	case nil:
		return nil, nil
	case Equals:
		c, err := m(pred.Col)
		if err != nil {
			return nil, err
		}
		return Equals{Col: c, Value: pred.Value}, nil
	case Compare:
		c, err := m(pred.Col)
		if err != nil {
			return nil, err
		}
		return Compare{Col: c, Op: pred.Op, Value: pred.Value}, nil
	case EndsWith:
		c, err := m(pred.Col)
		if err != nil {
			return nil, err
		}
		return EndsWith{Col: c, Suffix: pred.Suffix}, nil
	case ColumnEquals:
		l, err := m(pred.Left)
		if err != nil {
			return nil, err
		}
		r, err := m(pred.Right)
		if err != nil {
			return nil, err
		}
		return ColumnEquals{Left: l, Right: r}, nil
	case And:
		subs, err := mapAll(pred.Predicates, m)
		if err != nil {
			return nil, err
		}
		return And{Predicates: subs}, nil
	case Or:
		subs, err := mapAll(pred.Predicates, m)
		if err != nil {
			return nil, err
		}
		return Or{Predicates: subs}, nil
	default:
		return nil, fmt.Errorf("predicate %T cannot be rewritten", p)
	}
}

func mapAll(preds []Predicate, m ColumnMapper) ([]Predicate, error) {
	out := make([]Predicate, len(preds))
	for i, p := range preds {
		mapped, err := MapColumns(p, m)
		if err != nil {
			return nil, err
		}
		out[i] = mapped
	}
	return out, nil
}

// MapOrder rewrites the columns of an ORDER BY list.
func MapOrder(orders []Order, m ColumnMapper) ([]Order, error) {
	out := make([]Order, len(orders))
	for i, o := range orders {
		c, err := m(o.Col)
		if err != nil {
			return nil, err
		}
		out[i] = Order{Col: c, Desc: o.Desc}
	}
	return out, nil
}

// Columns returns every column referenced by p, in traversal order.
func Columns(p Predicate) []Col {
	var cols []Col
	var walk func(Predicate)
	walk = func(p Predicate) {
		switch pred := p.(type) {
		case Equals:
			cols = append(cols, pred.Col)
		case Compare:
			cols = append(cols, pred.Col)
		case EndsWith:
			cols = append(cols, pred.Col)
		case ColumnEquals:
			cols = append(cols, pred.Left, pred.Right)
		case And:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		case Or:
			for _, sub := range pred.Predicates {
				walk(sub)
			}
		}
	}
	walk(p)
	return cols
}
