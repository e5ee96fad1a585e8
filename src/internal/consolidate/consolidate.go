// Package consolidate implements the Folder Consolidator: it normalizes
// author-folder names under a root directory, resolves each against the
// catalog, and merges folders that resolve to the same author id.
package consolidate

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sortbook/src/internal/catalog"
	"sortbook/src/internal/normalize"
	"sortbook/src/internal/similarity"
)

// Config holds the consolidator's command-line-derived settings.
type Config struct {
	Root              string
	CSVPath           string
	MinFiles          int
	ProbableThreshold float64
	DryRun            bool
}

// AuthorEntry is one author-folder candidate discovered under Root.
type AuthorEntry struct {
	Name         string
	Path         string
	AuthorID     string
	AuthorNameDB string
	Probable     *catalog.Suggestion
}

// Logger is the minimal sink for progress messages, matching the teacher's
// plain-println reporting style.
type Logger func(format string, args ...any)

// Stdout is the default Logger, printing to stdout.
func Stdout(format string, args ...any) { fmt.Printf(format+"\n", args...) }

// Run executes the full consolidator pass: directory normalization, catalog
// matching, CSV reporting, and author_id-based merging.
func Run(cfg Config, db *sql.DB, log Logger) error {
	if log == nil {
		log = Stdout
	}
	log("Running consolidate %son %s", dryRunTag(cfg.DryRun), cfg.Root)

	if err := normalizeDirectories(cfg.Root, cfg.DryRun, log); err != nil {
		return err
	}

	authors, err := collectAuthorDirs(cfg.Root)
	if err != nil {
		return err
	}
	if len(authors) == 0 {
		log("No author directories detected, aborting.")
		return nil
	}

	resolver := catalog.NewResolver(db)
	if err := matchAndFill(resolver, authors); err != nil {
		return err
	}

	if err := writeAuthorsCSV(cfg.CSVPath, authors); err != nil {
		return err
	}

	if err := mergeByAuthorID(cfg, authors, log); err != nil {
		return err
	}

	log("Done. CSV written to %s.", cfg.CSVPath)
	return nil
}

func dryRunTag(dryRun bool) string {
	if dryRun {
		return "(dry-run) "
	}
	return ""
}

// normalizeDirectories renames (or merges) every immediate subdirectory of
// root into its canonical "Last, First"-style display form.
func normalizeDirectories(root string, dryRun bool, log Logger) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read root %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		original := filepath.Join(root, name)
		if _, err := os.Stat(original); err != nil {
			continue
		}
		normalizedDisplay := normalize.NormalizeAuthorDisplay(name)
		sanitized := normalize.SanitizeComponent(normalizedDisplay)
		if sanitized == "" {
			continue
		}
		target := filepath.Join(root, sanitized)
		if samePath(original, target) {
			continue
		}
		if targetInfo, err := os.Stat(target); err == nil {
			originalInfo, err := os.Stat(original)
			if err != nil || !os.SameFile(originalInfo, targetInfo) {
				log("Merging %s into %s", original, target)
				if err := mergeDirectories(original, target, dryRun); err != nil {
					return err
				}
				continue
			}
		}
		if dryRun {
			log("[DRY-RUN] rename %s -> %s", original, target)
			continue
		}
		if err := renameWithCaseHandling(original, target); err != nil {
			return err
		}
	}
	return nil
}

func collectAuthorDirs(root string) ([]*AuthorEntry, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", root, err)
	}
	var authors []*AuthorEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.TrimSpace(e.Name())
		if name == "" {
			continue
		}
		authors = append(authors, &AuthorEntry{Name: name, Path: filepath.Join(root, e.Name())})
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i].Name < authors[j].Name })
	return authors, nil
}

func matchAndFill(resolver *catalog.Resolver, authors []*AuthorEntry) error {
	for _, entry := range authors {
		id, dbName, ok, err := resolver.Resolve(entry.Name)
		if err != nil {
			return err
		}
		if ok {
			entry.AuthorID = id
			entry.AuthorNameDB = dbName
			continue
		}
		suggestion, err := resolver.Suggest(entry.Name)
		if err != nil {
			return err
		}
		entry.Probable = suggestion
	}
	return nil
}

func writeAuthorsCSV(path string, authors []*AuthorEntry) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create csv dir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %s: %w", path, err)
	}
	defer f.Close()

	w := newCSVWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"author", "author_id", "author_name_db", "probable_author_multi"}); err != nil {
		return err
	}
	for _, entry := range authors {
		probableValue := ""
		if entry.Probable != nil {
			probableValue = catalog.FormatProbableValue(entry.Probable)
		}
		if err := w.Write([]string{entry.Name, entry.AuthorID, entry.AuthorNameDB, probableValue}); err != nil {
			return err
		}
	}
	return w.Error()
}

// mergeByAuthorID groups author entries by effective id (resolved id, else
// a probable match meeting cfg.ProbableThreshold), then merges every group
// member but the best-aligned one into that winner's directory.
func mergeByAuthorID(cfg Config, authors []*AuthorEntry, log Logger) error {
	grouped := make(map[string][]*AuthorEntry)
	for _, entry := range authors {
		effective := entry.AuthorID
		if effective == "" && entry.Probable != nil {
			score := entry.Probable.SeqScore
			if score == 0 {
				score = entry.Probable.AvgScore
			}
			if score >= cfg.ProbableThreshold {
				effective = entry.Probable.AuthorID
			}
		}
		if effective == "" {
			continue
		}
		grouped[effective] = append(grouped[effective], entry)
	}

	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, authorID := range ids {
		dirs := grouped[authorID]
		if len(dirs) < 2 {
			continue
		}

		var candidates []mergeCandidate
		for _, entry := range dirs {
			if _, err := os.Stat(entry.Path); err != nil {
				continue
			}
			count, err := countFiles(entry.Path)
			if err != nil {
				return err
			}
			if count < cfg.MinFiles {
				continue
			}
			candidates = append(candidates, mergeCandidate{entry: entry, count: count})
		}
		if len(candidates) < 2 {
			continue
		}

		dbName := ""
		for _, c := range candidates {
			if c.entry.AuthorNameDB != "" {
				dbName = c.entry.AuthorNameDB
				break
			}
		}
		if dbName == "" {
			dbName = entryBestProbableDisplay(candidates)
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			si := alignmentScore(candidates[i].entry.Path, dbName)
			sj := alignmentScore(candidates[j].entry.Path, dbName)
			if si != sj {
				return si > sj
			}
			if candidates[i].count != candidates[j].count {
				return candidates[i].count > candidates[j].count
			}
			return candidates[i].entry.Name < candidates[j].entry.Name
		})

		destination := candidates[0].entry.Path
		log("Merging author_id %s into %s", authorID, destination)
		for _, c := range candidates[1:] {
			log("  - %s -> %s", c.entry.Path, destination)
			if err := mergeDirectories(c.entry.Path, destination, cfg.DryRun); err != nil {
				return err
			}
		}
	}
	return nil
}

type mergeCandidate struct {
	entry *AuthorEntry
	count int
}

func entryBestProbableDisplay(candidates []mergeCandidate) string {
	for _, c := range candidates {
		if c.entry.Probable != nil {
			return c.entry.Probable.DisplayName
		}
	}
	return ""
}

// alignmentScore compares a directory's display name against the catalog's
// display name, trying both the literal form and a right-rotated token
// order (to catch "First Last" directories matched to "Last First" db
// names), and returns the best sequence-similarity ratio found.
func alignmentScore(path, dbName string) float64 {
	if strings.TrimSpace(dbName) == "" {
		return 0
	}
	dirName := filepath.Base(path)
	dirNorm := normalize.NormalizeStrict(dirName)
	dbNorm := normalize.NormalizeStrict(dbName)
	if dirNorm == "" || dbNorm == "" {
		return 0
	}

	variants := []string{dbNorm}
	parts := strings.Fields(dbNorm)
	if len(parts) >= 2 {
		rotated := append([]string{parts[len(parts)-1]}, parts[:len(parts)-1]...)
		variants = append(variants, strings.Join(rotated, " "))
	}

	best := 0.0
	for _, v := range variants {
		if s := similarity.Seq(dirNorm, v); s > best {
			best = s
		}
	}
	return best
}

func countFiles(root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count files under %s: %w", root, err)
	}
	return n, nil
}

func samePath(a, b string) bool {
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	if errA == nil && errB == nil {
		return ca == cb
	}
	return a == b
}
