package catalog

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE authors (
		author_id TEXT,
		name TEXT,
		name_normalized TEXT,
		alternate_id TEXT
	);
	CREATE TABLE works (
		work_id TEXT,
		title TEXT,
		title_normalized TEXT,
		author_id TEXT,
		alternate_id TEXT
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	seed := []struct{ authorID, name, nameNorm, alt string }{
		{"A1", "Jules Verne", "jules verne", ""},
		{"A2", "Victor Hugo", "victor hugo", ""},
		{"A3", "Honore de Balzac", "honore de balzac", "A3B"},
	}
	for _, s := range seed {
		if _, err := db.Exec(
			`INSERT INTO authors(author_id, name, name_normalized, alternate_id) VALUES (?, ?, ?, ?)`,
			s.authorID, s.name, s.nameNorm, s.alt); err != nil {
			t.Fatalf("seed author: %v", err)
		}
	}

	works := []struct{ workID, title, titleNorm, authorID, alt string }{
		{"W1", "Vingt Mille Lieues Sous les Mers", "vingt mille lieues sous les mers", "A1", ""},
		{"W2", "Les Miserables", "les miserables", "A2", ""},
	}
	for _, w := range works {
		if _, err := db.Exec(
			`INSERT INTO works(work_id, title, title_normalized, author_id, alternate_id) VALUES (?, ?, ?, ?, ?)`,
			w.workID, w.title, w.titleNorm, w.authorID, w.alt); err != nil {
			t.Fatalf("seed work: %v", err)
		}
	}
	return db
}

func TestResolverResolveExact(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	id, name, ok, err := r.Resolve("Jules Verne")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || id != "A1" || name != "Jules Verne" {
		t.Fatalf("Resolve = (%q, %q, %v), want (A1, Jules Verne, true)", id, name, ok)
	}

	_, _, ok, err = r.Resolve("Nobody Here")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match for unknown name")
	}
}

func TestResolverSuggestProbableMatch(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	s, err := r.Suggest("Jules Vernes")
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if s == nil {
		t.Fatal("expected a probable suggestion for a near-miss spelling")
	}
	if s.AuthorID != "A1" {
		t.Errorf("suggestion author = %q, want A1", s.AuthorID)
	}
}

func TestFindAuthorByNameNorm(t *testing.T) {
	db := openTestDB(t)
	id, alts, ok, err := FindAuthorByNameNorm(db, "honore de balzac")
	if err != nil {
		t.Fatalf("FindAuthorByNameNorm error: %v", err)
	}
	if !ok || id != "A3" {
		t.Fatalf("FindAuthorByNameNorm = (%q, %v), want (A3, true)", id, ok)
	}
	if len(alts) != 1 || alts[0] != "A3B" {
		t.Errorf("alternates = %v, want [A3B]", alts)
	}
}

func TestFindWorkInDBAndStrictLike(t *testing.T) {
	db := openTestDB(t)

	hit, err := FindWorkInDB(db, "les miserables")
	if err != nil {
		t.Fatalf("FindWorkInDB error: %v", err)
	}
	if hit == nil || hit.WorkID != "W2" {
		t.Fatalf("FindWorkInDB = %+v, want W2", hit)
	}

	hit, err = FindWorkStrictLike(db, "Vingt Mille Lieues", "vingt mille lieues")
	if err != nil {
		t.Fatalf("FindWorkStrictLike error: %v", err)
	}
	if hit == nil || hit.WorkID != "W1" {
		t.Fatalf("FindWorkStrictLike = %+v, want W1", hit)
	}
}

func TestFindWorkByTitleAndAuthor(t *testing.T) {
	db := openTestDB(t)
	hit, err := FindWorkByTitleAndAuthor(db, "les miserables", []string{"A2"})
	if err != nil {
		t.Fatalf("FindWorkByTitleAndAuthor error: %v", err)
	}
	if hit == nil || hit.AuthorID != "A2" {
		t.Fatalf("FindWorkByTitleAndAuthor = %+v, want author A2", hit)
	}

	hit, err = FindWorkByTitleAndAuthor(db, "les miserables", []string{"A1"})
	if err != nil {
		t.Fatalf("FindWorkByTitleAndAuthor error: %v", err)
	}
	if hit != nil {
		t.Fatalf("expected no hit for mismatched author, got %+v", hit)
	}
}

func TestLoadAuthorHints(t *testing.T) {
	db := openTestDB(t)

	hints, err := LoadAuthorHints(db, 0)
	if err != nil {
		t.Fatalf("LoadAuthorHints error: %v", err)
	}
	if hints != nil {
		t.Fatalf("LoadAuthorHints(max=0) = %v, want nil", hints)
	}

	hints, err = LoadAuthorHints(db, 2)
	if err != nil {
		t.Fatalf("LoadAuthorHints error: %v", err)
	}
	if len(hints) != 2 {
		t.Fatalf("LoadAuthorHints = %v, want 2 entries", hints)
	}
}
