// Package queryir provides the statement intermediate representation (IR)
// that sits between address routing and SQL generation.
//
// ARCHITECTURE:
//
//	[address + filter] → [route.Match] → [provider plan] → [Query IR] → [querysql]
//
// The provider turns each route into IR; querysql turns IR into SQL text
// plus bound parameters. Nothing outside querysql writes SQL.
//
// SEALED INTERFACES:
//
// Statement and Predicate are sealed interfaces using the marker method
// pattern. Only types in this package can implement them, so the backend
// can switch over them exhaustively:
//
//	switch s := stmt.(type) {
//	case Select:
//	case Insert:
//	case Update:
//	case Delete:
//	}
//
// SAFETY:
//
// Identifiers (tables, aliases, columns) are the only caller-influenced
// strings that reach SQL text, and Validate restricts them to
// [A-Za-z_][A-Za-z0-9_]*. Values are keyring.Value and are always bound
// as parameters. Update and Delete without a WHERE are invalid.
//
// Caller-supplied filters use caller-visible column names; MapColumns
// rewrites them onto the real columns of a statement and rejects names the
// route does not expose.
package queryir
