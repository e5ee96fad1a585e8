package catalog

import (
	"database/sql"
	"fmt"

	"sortbook/src/internal/normalize"
)

// LoadAuthorHints returns up to max distinct author display names, used to
// seed the LLM prompt with a partial roster. Distinctness is judged on the
// normalized form so near-duplicate spellings collapse to one hint. max==0
// disables hint loading entirely.
func LoadAuthorHints(db *sql.DB, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	rows, err := db.Query(
		`SELECT name FROM authors WHERE name IS NOT NULL AND name <> '' LIMIT ?`, max)
	if err != nil {
		return nil, fmt.Errorf("load author hints: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var hints []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan author hint: %w", err)
		}
		norm := normalize.Normalize(name)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		hints = append(hints, name)
		if len(hints) >= max {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hints, nil
}
