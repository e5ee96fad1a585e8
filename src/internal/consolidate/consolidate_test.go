package consolidate

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"sortbook/src/internal/catalog"
)

func openConsolidateTestDB(t *testing.T) *sql.DB {
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
	if _, err := db.Exec(
		`INSERT INTO authors(author_id, name, name_normalized, alternate_id) VALUES (?, ?, ?, ?)`,
		"A1", "Jules Verne", "jules verne", ""); err != nil {
		t.Fatalf("seed author: %v", err)
	}
	return db
}

func TestAlignmentScoreRewardsRotatedOrder(t *testing.T) {
	score := alignmentScore(filepath.Join("root", "Jules Verne"), "Verne Jules")
	if score < 0.9 {
		t.Errorf("alignmentScore for rotated token order = %v, want >= 0.9", score)
	}
}

func TestAlignmentScoreEmptyDBName(t *testing.T) {
	if got := alignmentScore("root/Anybody", ""); got != 0 {
		t.Errorf("alignmentScore with empty db name = %v, want 0", got)
	}
}

func TestCountFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.epub"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.epub"), []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := countFiles(dir)
	if err != nil {
		t.Fatalf("countFiles: %v", err)
	}
	if n != 2 {
		t.Errorf("countFiles = %d, want 2", n)
	}
}

func TestSamePath(t *testing.T) {
	dir := t.TempDir()
	if !samePath(dir, dir) {
		t.Error("samePath should be true for identical paths")
	}
	if samePath(filepath.Join(dir, "a"), filepath.Join(dir, "b")) {
		t.Error("samePath should be false for distinct paths")
	}
}

func TestEntryBestProbableDisplay(t *testing.T) {
	withProbable := &AuthorEntry{Probable: &catalog.Suggestion{AuthorID: "A1", DisplayName: "Jules Verne"}}
	candidates := []mergeCandidate{
		{entry: &AuthorEntry{}, count: 1},
		{entry: withProbable, count: 2},
	}
	if got := entryBestProbableDisplay(candidates); got != "Jules Verne" {
		t.Errorf("entryBestProbableDisplay = %q, want Jules Verne", got)
	}
}

func TestRunMergesFoldersResolvingToSameAuthor(t *testing.T) {
	root := t.TempDir()
	db := openConsolidateTestDB(t)

	a := filepath.Join(root, "Jules Verne")
	b := filepath.Join(root, "verne, jules")
	if err := os.MkdirAll(a, 0o755); err != nil {
		t.Fatalf("mkdir a: %v", err)
	}
	if err := os.MkdirAll(b, 0o755); err != nil {
		t.Fatalf("mkdir b: %v", err)
	}
	if err := os.WriteFile(filepath.Join(a, "book-a.epub"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(filepath.Join(b, "book-b.epub"), []byte("b"), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	cfg := Config{
		Root:              root,
		CSVPath:           filepath.Join(root, "authors.csv"),
		ProbableThreshold: 0.90,
	}
	if err := Run(cfg, db, func(string, ...any) {}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(cfg.CSVPath); err != nil {
		t.Errorf("expected CSV at %s: %v", cfg.CSVPath, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 {
		t.Fatalf("expected a single merged author dir, got %v", dirs)
	}
	files, err := os.ReadDir(filepath.Join(root, dirs[0]))
	if err != nil {
		t.Fatalf("read merged dir: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 files in the merged dir, got %d", len(files))
	}
}

func TestRunNoAuthorDirsIsANoOp(t *testing.T) {
	root := t.TempDir()
	db := openConsolidateTestDB(t)

	cfg := Config{Root: root, CSVPath: filepath.Join(root, "authors.csv")}
	if err := Run(cfg, db, func(string, ...any) {}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(cfg.CSVPath); !os.IsNotExist(err) {
		t.Error("expected no CSV to be written when there are no author dirs")
	}
}
