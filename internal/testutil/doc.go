// Package testutil provides helpers shared by keyringdb tests: temporary
// stores on either SQLite driver, key ring fixtures and a notifier that
// records what it hears.
package testutil
