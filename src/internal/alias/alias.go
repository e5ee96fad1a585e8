// Package alias implements the Online Alias Resolver: for each author
// folder under a root directory, it searches a Wikidata-style identity
// service for the closest matching person entity, resolves a canonical
// "Last, First" display form from that entity's given-name/family-name
// claims, and proposes (optionally applies) a folder rename/merge plus a
// CSV audit trail of every proposal.
package alias

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sortbook/src/internal/normalize"
)

// Config holds the resolver's command-line-derived settings.
type Config struct {
	Root       string
	OutCSV     string
	PreferLang string
	Limit      int
	Timeout    time.Duration
	DryRun     bool
	Verbose    bool
}

// Logger mirrors the teacher's plain-println reporting style.
type Logger func(format string, args ...any)

// Proposal is one author folder's resolved identity, written as a CSV row —
// the AliasProposal data model: directory, qid, given, family, source.
type Proposal struct {
	Directory string
	QID       string
	Given     string
	Family    string
	Source    string
}

const (
	minSearchQueryLen = 2
	defaultTimeout    = 15 * time.Second
)

// Run scans cfg.Root for author folders, resolves each against the
// identity service, applies folder renames/merges unless cfg.DryRun, and
// writes the full set of proposals to cfg.OutCSV.
func Run(ctx context.Context, cfg Config, log Logger) (int, error) {
	if log == nil {
		log = func(string, ...any) {}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	preferLang := cfg.PreferLang
	if preferLang == "" {
		preferLang = "en"
	}

	dirs, err := listAuthorDirs(cfg.Root)
	if err != nil {
		return 0, err
	}
	if cfg.Limit > 0 && len(dirs) > cfg.Limit {
		dirs = dirs[:cfg.Limit]
	}

	var proposals []Proposal
	for _, dir := range dirs {
		name := filepath.Base(dir)
		query := normalizeQuery(name)
		if len(query) < minSearchQueryLen {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		match, err := search(reqCtx, query, preferLang)
		cancel()
		if err != nil {
			log("Recherche échouée pour %s: %v", name, err)
			continue
		}
		if match == nil {
			continue
		}

		reqCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		given, family, source := enrichFirstLastWithWikidata(reqCtx, match.ID, match.Label)
		cancel()

		proposals = append(proposals, Proposal{
			Directory: name,
			QID:       match.ID,
			Given:     given,
			Family:    family,
			Source:    source,
		})

		if given == "" && family == "" {
			continue
		}
		target := formatAuthorDir(cfg.Root, given, family)
		if err := maybeMoveAuthorFolder(dir, target, cfg.DryRun, log); err != nil {
			log("Erreur déplacement %s -> %s: %v", dir, target, err)
		}
	}

	if err := writeProposalsCSV(cfg.OutCSV, proposals); err != nil {
		return len(proposals), err
	}
	return len(proposals), nil
}

func listAuthorDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read root %s: %w", root, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// formatAuthorDir builds the canonical "Last, First" directory name for
// (first, last) under root, sanitized for the filesystem.
func formatAuthorDir(root, first, last string) string {
	display := strings.TrimSpace(last) + ", " + strings.TrimSpace(first)
	sanitized := normalize.SanitizeComponent(normalize.NormalizeAuthorDisplay(display))
	return filepath.Join(root, sanitized)
}

// maybeMoveAuthorFolder renames src to dst when they differ, merging into
// dst instead of overwriting it when dst already exists.
func maybeMoveAuthorFolder(src, dst string, dryRun bool, log Logger) error {
	if samePath(src, dst) {
		return nil
	}
	tag := "RENOMMER"
	if _, err := os.Stat(dst); err == nil {
		tag = "FUSIONNER"
	}
	log("%s %s -> %s", tag, filepath.Base(src), filepath.Base(dst))
	if dryRun {
		return nil
	}
	if _, err := os.Stat(dst); err == nil {
		return mergeDirs(src, dst)
	}
	if dir := filepath.Dir(dst); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.Rename(src, dst)
}

// mergeDirs moves every file under src into dst, preferring the larger
// file on a name collision, then removes src.
func mergeDirs(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	for _, e := range entries {
		srcPath := filepath.Join(src, e.Name())
		dstPath := filepath.Join(dst, e.Name())
		if e.IsDir() {
			if err := mergeDirs(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := moveKeepLarger(srcPath, dstPath); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

func moveKeepLarger(src, dst string) error {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return os.Rename(src, dst)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if srcInfo.Size() > dstInfo.Size() {
		if err := os.Remove(dst); err != nil {
			return err
		}
		return os.Rename(src, dst)
	}
	return os.Remove(src)
}

func samePath(a, b string) bool {
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	if errA == nil && errB == nil {
		return ca == cb
	}
	return a == b
}

func normalizeQuery(dirName string) string {
	if idx := strings.IndexByte(dirName, ','); idx >= 0 {
		last := strings.TrimSpace(dirName[:idx])
		first := strings.TrimSpace(dirName[idx+1:])
		if last != "" && first != "" {
			return first + " " + last
		}
	}
	return strings.TrimSpace(dirName)
}

func writeProposalsCSV(path string, proposals []Proposal) error {
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

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"directory", "qid", "given", "family", "source"}); err != nil {
		return err
	}
	for _, p := range proposals {
		row := []string{p.Directory, p.QID, p.Given, p.Family, p.Source}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}
