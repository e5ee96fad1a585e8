package sortpipeline

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"sortbook/src/internal/llm"
)

// seedCatalog creates a real on-disk sqlite file (New opens the catalog
// read-only, so the schema and data must already be committed to disk
// before the Pipeline is constructed).
func seedCatalog(t *testing.T, root string) {
	t.Helper()
	dbPath := filepath.Join(root, catalogRelPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatalf("mkdir catalog dir: %v", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open catalog for seeding: %v", err)
	}
	defer db.Close()

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
	if _, err := db.Exec(
		`INSERT INTO works(work_id, title, title_normalized, author_id, alternate_id) VALUES (?, ?, ?, ?, ?)`,
		"W1", "Vingt Mille Lieues Sous les Mers", "vingt mille lieues sous les mers", "A1", ""); err != nil {
		t.Fatalf("seed work: %v", err)
	}
}

func strPtr(s string) *string { return &s }

type fakeInvoker struct {
	guess  llm.Guess
	err    error
	calls  int
}

func (f *fakeInvoker) Guess(ctx context.Context, prompt string) (llm.Guess, error) {
	f.calls++
	return f.guess, f.err
}

func newTestPipeline(t *testing.T, root string, mode Mode, invoker llm.Invoker) *Pipeline {
	t.Helper()
	cfg := Config{Root: root, Ext: "epub", Mode: mode, NoOLMeta: true}
	p, err := New(cfg, invoker, logrus.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func writeInputFile(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, rawDir, "epub")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir input dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("book contents"), 0o644); err != nil {
		t.Fatalf("write input file: %v", err)
	}
	return path
}

func TestNewCreatesOutputDirs(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	newTestPipeline(t, root, ModeNormal, &fakeInvoker{})

	for _, rel := range []string{sortedDir, failAuthorDir, failTitleDir} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("expected %s to exist: %v", rel, err)
		}
	}
}

func TestRunModeNormalResolvesKnownAuthor(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	writeInputFile(t, root, "book1.epub")

	invoker := &fakeInvoker{guess: llm.Guess{
		Title:           strPtr("Some Title"),
		AuthorFirstname: strPtr("Jules"),
		AuthorLastname:  strPtr("Verne"),
	}}
	p := newTestPipeline(t, root, ModeNormal, invoker)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dest := filepath.Join(root, sortedDir, "Verne, Jules", "book1.epub")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected file at %s: %v", dest, err)
	}
}

func TestRunModeNormalFailsUnknownAuthor(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	writeInputFile(t, root, "book2.epub")

	invoker := &fakeInvoker{guess: llm.Guess{
		Title:           strPtr("Some Title"),
		AuthorFirstname: strPtr("Nobody"),
		AuthorLastname:  strPtr("Unknown"),
	}}
	p := newTestPipeline(t, root, ModeNormal, invoker)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dest := filepath.Join(root, failAuthorDir, "book2.epub")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected failed file at %s: %v", dest, err)
	}
}

func TestRunModeStrictHitsCatalogWork(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	writeInputFile(t, root, "book3.epub")

	invoker := &fakeInvoker{guess: llm.Guess{
		Title:           strPtr("Vingt Mille Lieues Sous les Mers"),
		AuthorFirstname: strPtr("Jules"),
		AuthorLastname:  strPtr("Verne"),
	}}
	p := newTestPipeline(t, root, ModeStrict, invoker)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	authorDir := filepath.Join(root, sortedDir, "Verne, Jules")
	entries, err := os.ReadDir(authorDir)
	if err != nil {
		t.Fatalf("read author dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file in %s, got %d", authorDir, len(entries))
	}
}

func TestRunModeStrictMissTitleFailsToFailTitleDir(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	writeInputFile(t, root, "book4.epub")

	invoker := &fakeInvoker{guess: llm.Guess{}}
	p := newTestPipeline(t, root, ModeStrict, invoker)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	dest := filepath.Join(root, failTitleDir, "book4.epub")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected file at %s: %v", dest, err)
	}
}

func TestRunSkipsAlreadyRecordedSuccess(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	path := writeInputFile(t, root, "book5.epub")
	abs, err := filepath.Abs(path)
	if err != nil {
		t.Fatalf("abs: %v", err)
	}

	if err := os.MkdirAll(filepath.Join(root, "logs"), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, stateLogName),
		[]byte(`{"path":"`+abs+`","mode":"normal","work_id":""}`+"\n"), 0o644); err != nil {
		t.Fatalf("seed state log: %v", err)
	}

	invoker := &fakeInvoker{}
	p := newTestPipeline(t, root, ModeNormal, invoker)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if invoker.calls != 0 {
		t.Errorf("expected invoker not to be called for an already-recorded file, calls=%d", invoker.calls)
	}
}

func TestRunMissingInputDirErrors(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	p := newTestPipeline(t, root, ModeNormal, &fakeInvoker{})

	if err := p.Run(context.Background()); err == nil {
		t.Error("expected an error when the input directory does not exist")
	}
}

func TestHintsCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "author_hints_cache.yaml")

	if _, ok := loadHintsCache(path); ok {
		t.Fatal("expected no cache to load before one is saved")
	}

	names := []string{"Jules Verne", "Victor Hugo"}
	if err := saveHintsCache(path, names); err != nil {
		t.Fatalf("saveHintsCache: %v", err)
	}

	got, ok := loadHintsCache(path)
	if !ok {
		t.Fatal("expected cache to load after saving")
	}
	if len(got) != 2 || got[0] != "Jules Verne" || got[1] != "Victor Hugo" {
		t.Errorf("loadHintsCache = %v, want %v", got, names)
	}
}

func TestHintsCacheExpired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "author_hints_cache.yaml")
	stale := "generated_at: 2000-01-01T00:00:00Z\nnames:\n  - Jules Verne\n"
	if err := os.WriteFile(path, []byte(stale), 0o644); err != nil {
		t.Fatalf("write stale cache: %v", err)
	}

	if _, ok := loadHintsCache(path); ok {
		t.Error("expected an expired cache to be rejected")
	}
}

func TestAuthorDirNameFormatsLastCommaFirst(t *testing.T) {
	if got := authorDirName("Jules", "Verne"); got != "Verne, Jules" {
		t.Errorf("authorDirName = %q, want %q", got, "Verne, Jules")
	}
}

func TestResolveAuthorPairTriesBothOrderings(t *testing.T) {
	root := t.TempDir()
	seedCatalog(t, root)
	p := newTestPipeline(t, root, ModeNormal, &fakeInvoker{})

	first, last, ok := p.resolveAuthorPair(llm.Guess{
		AuthorFirstname: strPtr("Verne"),
		AuthorLastname:  strPtr("Jules"),
	})
	if !ok || first != "Jules" || last != "Verne" {
		t.Errorf("resolveAuthorPair = (%q, %q, %v), want swapped order to resolve", first, last, ok)
	}
}
