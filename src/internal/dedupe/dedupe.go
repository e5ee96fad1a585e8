// Package dedupe implements the Cleanup Pass: within each author directory
// (and each of its immediate subdirectories, independently), it groups
// filenames by a lossy normalized key and keeps the single best file per
// group, discarding the rest.
package dedupe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"sortbook/src/internal/normalize"
)

// Config holds the cleanup pass's command-line-derived settings.
type Config struct {
	Root    string
	Exts    []string // lowercase, no leading dot; empty means "all extensions"
	DryRun  bool
	Verbose bool
	Workers int // 0 means GOMAXPROCS
}

// Logger mirrors the teacher's plain-println reporting style.
type Logger func(format string, args ...any)

var (
	sepRE   = regexp.MustCompile(`[\s_\-]+`)
	punctRE = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
)

type fileEntry struct {
	path string
	size int64
}

// Run fans out across author directories under cfg.Root, bounded by
// cfg.Workers (GOMAXPROCS if 0), processing each directory's root-level
// group and every immediate subdirectory group independently.
func Run(ctx context.Context, cfg Config, log Logger) (int, error) {
	if log == nil {
		log = func(string, ...any) {}
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return 0, fmt.Errorf("ensure root %s: %w", cfg.Root, err)
	}

	entries, err := os.ReadDir(cfg.Root)
	if err != nil {
		return 0, fmt.Errorf("read root %s: %w", cfg.Root, err)
	}
	var authorDirs []string
	for _, e := range entries {
		if e.IsDir() {
			authorDirs = append(authorDirs, filepath.Join(cfg.Root, e.Name()))
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	totals := make([]int, len(authorDirs))
	for i, dir := range authorDirs {
		i, dir := i, dir
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			n, err := processAuthorDir(dir, cfg, log)
			if err != nil {
				return err
			}
			totals[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range totals {
		total += n
	}
	return total, nil
}

func processAuthorDir(dir string, cfg Config, log Logger) (int, error) {
	count, err := processOneGroup(dir, cfg, log)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return count, fmt.Errorf("read author dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			n, err := processOneGroup(filepath.Join(dir, e.Name()), cfg, log)
			if err != nil {
				return count, err
			}
			count += n
		}
	}

	log("Auteur: %s — fichiers traités: %d", filepath.Base(dir), count)
	return count, nil
}

func processOneGroup(groupDir string, cfg Config, log Logger) (int, error) {
	entries, err := os.ReadDir(groupDir)
	if err != nil {
		return 0, fmt.Errorf("read group dir %s: %w", groupDir, err)
	}

	bestByNorm := make(map[string]fileEntry)
	allByNorm := make(map[string][]fileEntry)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(groupDir, e.Name())
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if len(cfg.Exts) > 0 && !containsExt(cfg.Exts, ext) {
			continue
		}

		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		info, err := e.Info()
		if err != nil {
			continue
		}
		entry := fileEntry{path: path, size: info.Size()}

		normKey := normalizeBasenameForGroup(stem)
		allByNorm[normKey] = append(allByNorm[normKey], entry)

		best, ok := bestByNorm[normKey]
		if !ok {
			bestByNorm[normKey] = entry
			continue
		}
		if shouldReplace(best, entry, stemOf(best.path), stem) {
			bestByNorm[normKey] = entry
		}
	}

	count := 0
	for normKey, best := range bestByNorm {
		ext := strings.TrimPrefix(filepath.Ext(best.path), ".")
		targetStem := normalize.CapitalizeFirst(normKey)
		targetName := targetStem
		if ext != "" {
			targetName = targetStem + "." + ext
		}
		targetPath := filepath.Join(filepath.Dir(best.path), targetName)
		keptOriginalPath := best.path

		if filepath.Base(best.path) != targetName {
			if cfg.Verbose {
				log("RENOM -> %s => %s", filepath.Base(best.path), targetName)
			}
			if !cfg.DryRun {
				if err := os.Rename(best.path, targetPath); err != nil {
					return count, fmt.Errorf("rename %s -> %s: %w", best.path, targetPath, err)
				}
			}
		}

		for _, other := range allByNorm[normKey] {
			if other.path == keptOriginalPath {
				continue
			}
			if cfg.Verbose {
				log("SUPPR -> %s", filepath.Base(other.path))
			}
			if !cfg.DryRun {
				if err := os.Remove(other.path); err != nil {
					log("Erreur suppression %s: %v", other.path, err)
				}
			}
		}
		count++
	}
	return count, nil
}

func stemOf(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// shouldReplace decides whether candidate should replace best as the kept
// file for a group: a file with accents beats one without, regardless of
// size; otherwise the strictly larger file wins.
func shouldReplace(best, candidate fileEntry, bestStem, candidateStem string) bool {
	bestAccented := hasAccents(bestStem)
	candAccented := hasAccents(candidateStem)
	switch {
	case bestAccented && !candAccented:
		return false
	case !bestAccented && candAccented:
		return true
	default:
		return candidate.size > best.size
	}
}

func hasAccents(s string) bool {
	nfc := norm.NFC.String(s)
	for _, r := range nfc {
		if r > 127 {
			return true
		}
	}
	return false
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// normalizeBasenameForGroup computes the lossy group key: lowercase,
// separators collapsed to single spaces, punctuation stripped, accents
// folded (via normalize.StripAccents), whitespace compacted.
func normalizeBasenameForGroup(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	collapsed := sepRE.ReplaceAllString(lower, " ")
	stripped := punctRE.ReplaceAllString(collapsed, "")
	deaccented := normalize.StripAccents(stripped)
	return strings.Join(strings.Fields(deaccented), " ")
}

// ParseExts splits a comma-separated extension list (as accepted by
// --exts) into the lowercase, dot-stripped form Config.Exts expects. An
// empty or all-whitespace input yields a nil slice (no filtering).
func ParseExts(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	var out []string
	for _, p := range parts {
		p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
