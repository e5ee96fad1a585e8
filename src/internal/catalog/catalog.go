// Package catalog provides read-only access to the local OpenLibrary-style
// SQLite catalog of authors and works, plus the fuzzy author resolver built
// on top of it.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// AuthorRow mirrors a row of the authors table.
type AuthorRow struct {
	AuthorID       string
	Name           string
	NameNormalized string
	AlternateID    string
}

// WorkRow mirrors a row of the works table.
type WorkRow struct {
	WorkID          string
	Title           string
	TitleNormalized string
	AuthorID        string
	AlternateID     string
}

// Open opens the catalog database read-only. The DSN carries mode=ro so a
// missing file is treated as a setup error rather than silently created.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping catalog %s: %w", path, err)
	}
	return db, nil
}
