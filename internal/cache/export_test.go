package cache

import "database/sql"

// SetOpenDB swaps the database opener for tests.
func SetOpenDB(fn func(driver, dsn string) (*sql.DB, error)) func() {
	prev := openDB
	openDB = fn
	return func() { openDB = prev }
}
