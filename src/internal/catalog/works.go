package catalog

import (
	"database/sql"
	"fmt"
	"strings"
)

const strictPrefixProbeLen = 15

// WorkHit is the (work_id, title, author_id) triple returned by every works
// lookup below.
type WorkHit struct {
	WorkID   string
	Title    string
	AuthorID string
}

// FindAuthorByNameNorm looks up an author by exact normalized name, returning
// its alternate ids (parsed from the comma-separated column) alongside.
func FindAuthorByNameNorm(db *sql.DB, nameNorm string) (authorID string, alternates []string, ok bool, err error) {
	var alt string
	err = db.QueryRow(
		`SELECT author_id, alternate_id FROM authors WHERE name_normalized = ? LIMIT 1`, nameNorm,
	).Scan(&authorID, &alt)
	switch {
	case err == sql.ErrNoRows:
		return "", nil, false, nil
	case err != nil:
		return "", nil, false, fmt.Errorf("author by name_norm %q: %w", nameNorm, err)
	}
	return authorID, splitIDs(alt), true, nil
}

func splitIDs(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindWorkInDB is the exact title_normalized lookup.
func FindWorkInDB(db *sql.DB, titleNorm string) (*WorkHit, error) {
	var h WorkHit
	err := db.QueryRow(
		`SELECT work_id, title, author_id FROM works WHERE title_normalized = ? LIMIT 1`, titleNorm,
	).Scan(&h.WorkID, &h.Title, &h.AuthorID)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("work by title_norm %q: %w", titleNorm, err)
	}
	return &h, nil
}

// FindWorkByTitleAndAuthor scans every row with the given title_normalized,
// returning the first whose author_id equals one of candidateIDs or whose
// alternate_id CSV contains one of them as a full token.
func FindWorkByTitleAndAuthor(db *sql.DB, titleNorm string, candidateIDs []string) (*WorkHit, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	rows, err := db.Query(
		`SELECT work_id, title, author_id, alternate_id FROM works WHERE title_normalized = ?`, titleNorm)
	if err != nil {
		return nil, fmt.Errorf("works by title_norm %q: %w", titleNorm, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h WorkHit
		var alt string
		if err := rows.Scan(&h.WorkID, &h.Title, &h.AuthorID, &alt); err != nil {
			return nil, fmt.Errorf("scan work row: %w", err)
		}
		if containsID(candidateIDs, h.AuthorID) {
			return &h, nil
		}
		if alt != "" && csvContainsAny(alt, candidateIDs) {
			return &h, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func containsID(ids []string, id string) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

func csvContainsAny(csv string, candidateIDs []string) bool {
	bracketed := "," + csv + ","
	for _, c := range candidateIDs {
		if strings.Contains(bracketed, ","+c+",") {
			return true
		}
	}
	return false
}

// FindWorkStrictLike runs the strict-mode lookup cascade: prefix probe on
// title_normalized (first 15 chars), full-prefix probe, raw-title GLOB
// probe (skipped when titleOriginal is empty), then exact fallback.
func FindWorkStrictLike(db *sql.DB, titleOriginal, titleNorm string) (*WorkHit, error) {
	tn := strings.TrimSpace(titleNorm)
	if tn != "" {
		prefixLen := len(tn)
		if prefixLen > strictPrefixProbeLen {
			prefixLen = strictPrefixProbeLen
		}
		if hit, err := globProbe(db, tn[:prefixLen]+"*", 5); err != nil || hit != nil {
			return hit, err
		}
		if hit, err := globProbe(db, tn+"*", 5); err != nil || hit != nil {
			return hit, err
		}
	}

	if strings.TrimSpace(titleOriginal) != "" {
		lowerGlob := strings.ToLower(titleOriginal) + "*"
		var h WorkHit
		err := db.QueryRow(
			`SELECT work_id, title, author_id FROM works WHERE lower(title) GLOB ? LIMIT 1`, lowerGlob,
		).Scan(&h.WorkID, &h.Title, &h.AuthorID)
		switch {
		case err == nil:
			return &h, nil
		case err != sql.ErrNoRows:
			return nil, fmt.Errorf("raw title glob probe: %w", err)
		}
	}

	return FindWorkInDB(db, titleNorm)
}

func globProbe(db *sql.DB, pattern string, limit int) (*WorkHit, error) {
	var h WorkHit
	err := db.QueryRow(
		`SELECT work_id, title, author_id FROM works WHERE title_normalized GLOB ? LIMIT ?`,
		pattern, limit,
	).Scan(&h.WorkID, &h.Title, &h.AuthorID)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("title_normalized glob probe %q: %w", pattern, err)
	}
	return &h, nil
}
