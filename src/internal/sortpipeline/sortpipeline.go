// Package sortpipeline implements the Sort Pipeline: it walks a directory of
// raw ebook files, asks a local LLM to guess each file's title and author,
// resolves that guess against the local catalog under one of three modes
// (strict, normal, full), and copies the file into a canonical
// "Last, First" author folder.
package sortpipeline

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"sortbook/src/internal/catalog"
	"sortbook/src/internal/llm"
	"sortbook/src/internal/normalize"
	"sortbook/src/internal/openlibrary"
	"sortbook/src/internal/statelog"
)

const (
	rawDir         = "input"
	sortedDir      = "output/sorted_books"
	failAuthorDir  = "output/fail_author"
	failTitleDir   = "output/fail_title"
	stateLogName   = "logs/sortbook_state.jsonl"
	copyFailLog    = "logs/sortbook_copy_failures.jsonl"
	debugLogName   = "logs/sortbook.log"
	ebookMetaTool  = "ebook-meta"
	catalogRelPath = "data/database/openlibrary.sqlite3"
	hintsCacheName = "logs/author_hints_cache.yaml"
)

// Mode is the matching strategy requested on the command line.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeNormal Mode = "normal"
	ModeFull   Mode = "full"
)

// Config holds the Sort Pipeline's command-line-derived settings.
type Config struct {
	Root        string
	Ext         string
	Limit       int
	Mode        Mode
	AuthorHints int
	Purge       bool
	NoOLMeta    bool
}

// Pipeline runs the sort over a single catalog connection.
type Pipeline struct {
	cfg      Config
	db       *sql.DB
	resolver *catalog.Resolver
	invoker  llm.Invoker
	log      logrus.FieldLogger
	state    *statelog.Log
	failLog  *statelog.Log
}

// New opens the catalog and prepares a Pipeline. Callers must call Close.
func New(cfg Config, invoker llm.Invoker, log logrus.FieldLogger) (*Pipeline, error) {
	if cfg.Purge {
		if err := purgeOutputs(cfg.Root); err != nil {
			return nil, err
		}
	}

	if err := ensureDirs(cfg.Root); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cfg.Root, catalogRelPath)
	db, err := catalog.Open(dbPath)
	if err != nil {
		return nil, err
	}

	state, err := statelog.Open(filepath.Join(cfg.Root, stateLogName))
	if err != nil {
		db.Close()
		return nil, err
	}
	failLog, err := statelog.Open(filepath.Join(cfg.Root, copyFailLog))
	if err != nil {
		db.Close()
		state.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		resolver: catalog.NewResolver(db),
		invoker:  invoker,
		log:      log,
		state:    state,
		failLog:  failLog,
	}, nil
}

// Close releases the catalog connection and log files.
func (p *Pipeline) Close() {
	p.state.Close()
	p.failLog.Close()
	p.db.Close()
}

func purgeOutputs(root string) error {
	for _, rel := range []string{sortedDir, failAuthorDir, failTitleDir, debugLogName, stateLogName} {
		path := filepath.Join(root, rel)
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge %s: %w", path, err)
		}
	}
	return nil
}

func ensureDirs(root string) error {
	for _, rel := range []string{sortedDir, failAuthorDir, failTitleDir, "logs"} {
		if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil {
			return fmt.Errorf("ensure dir %s: %w", rel, err)
		}
	}
	return nil
}

// Run walks input/<ext>, skips files already recorded as a success in the
// state log, and processes the rest through the configured mode.
func (p *Pipeline) Run(ctx context.Context) error {
	inputDir := filepath.Join(p.cfg.Root, rawDir, p.cfg.Ext)
	if _, err := os.Stat(inputDir); err != nil {
		return fmt.Errorf("input folder not found: %s", inputDir)
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("read input dir %s: %w", inputDir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(inputDir, e.Name()))
		}
	}
	sort.Strings(files)
	if p.cfg.Limit > 0 && len(files) > p.cfg.Limit {
		files = files[:p.cfg.Limit]
	}

	hintsCachePath := filepath.Join(p.cfg.Root, hintsCacheName)
	hints, fromCache := loadHintsCache(hintsCachePath)
	if !fromCache {
		hints, err = catalog.LoadAuthorHints(p.db, p.cfg.AuthorHints)
		if err != nil {
			p.log.WithError(err).Warn("failed to load author hints, continuing without")
			hints = nil
		}
		if len(hints) > 0 {
			if err := saveHintsCache(hintsCachePath, hints); err != nil {
				p.log.WithError(err).Warn("failed to write author hints cache")
			}
		}
	}

	seenOK, err := statelog.LoadSuccessPaths(filepath.Join(p.cfg.Root, stateLogName))
	if err != nil {
		return err
	}

	for idx, file := range files {
		canon, err := filepath.Abs(file)
		if err != nil {
			canon = file
		}
		if seenOK[canon] {
			continue
		}
		p.processFile(ctx, idx, file, canon, hints)
	}
	return nil
}

func (p *Pipeline) processFile(ctx context.Context, idx int, file, canon string, hints []string) {
	filename := filepath.Base(file)
	log := p.log.WithField("file", filename).WithField("idx", idx)
	log.Debug("processing file")

	prompt := llm.BuildPrompt(filename, hints)
	guess, err := p.invoker.Guess(ctx, prompt)
	if err != nil {
		log.WithError(err).Warn("llm guess failed")
		guess = llm.Guess{}
	} else {
		log.WithField("guess", guess).Debug("llm guess")
	}

	title := stringOrEmpty(guess.Title)
	titleNorm := normalize.Normalize(stringOrEmpty(guess.TitleNormalized))
	if titleNorm == "" {
		titleNorm = normalize.Normalize(title)
	}

	switch p.cfg.Mode {
	case ModeNormal:
		p.runNormal(guess, file, canon, filename, "normal", "normal-fail")
		return
	default:
		p.runStrict(ctx, guess, file, canon, filename, title, titleNorm)
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// runNormal resolves the file solely from the LLM's guessed author name,
// trying both (first,last) orderings. It serves mode=normal; mode=full's
// fallback calls resolveAuthorPair and copyFullNormal directly instead.
func (p *Pipeline) runNormal(guess llm.Guess, file, canon, filename, successMode, failMode string) {
	first, last, ok := p.resolveAuthorPair(guess)
	if !ok {
		p.copyToFailure(file, canon, filename, failAuthorDir, failMode)
		return
	}
	outDir := filepath.Join(p.cfg.Root, sortedDir, authorDirName(first, last))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.log.WithError(err).Warn("mkdir failed")
	}
	dest := filepath.Join(outDir, filename)
	if err := copyFile(file, dest); err != nil {
		p.recordCopyFailure(canon, successMode, err)
		return
	}
	p.recordSuccess(canon, successMode, "")
}

// resolveAuthorPair checks whether (first,last) or its swap resolves to a
// known author, returning the ordering that matched.
func (p *Pipeline) resolveAuthorPair(guess llm.Guess) (first, last string, ok bool) {
	first = stringOrEmpty(guess.AuthorFirstname)
	last = stringOrEmpty(guess.AuthorLastname)
	if first == "" || last == "" {
		return "", "", false
	}
	if _, _, found, err := p.resolver.Resolve(first + " " + last); err == nil && found {
		return first, last, true
	}
	if _, _, found, err := p.resolver.Resolve(last + " " + first); err == nil && found {
		return last, first, true
	}
	return first, last, false
}

func (p *Pipeline) runStrict(ctx context.Context, guess llm.Guess, file, canon, filename, title, titleNorm string) {
	if titleNorm == "" && p.cfg.Mode != ModeFull {
		p.copyToFailure(file, canon, filename, failTitleDir, "strict-fail-title")
		return
	}

	var hit *catalog.WorkHit
	if titleNorm != "" {
		var err error
		hit, err = catalog.FindWorkStrictLike(p.db, title, titleNorm)
		if err != nil {
			p.log.WithError(err).Warn("strict lookup failed")
		}
	}

	if hit == nil && titleNorm != "" {
		if first := stringOrEmpty(guess.AuthorFirstname); first != "" {
			if last := stringOrEmpty(guess.AuthorLastname); last != "" {
				authorNorm := normalize.Normalize(first + " " + last)
				if aid, alts, found, err := catalog.FindAuthorByNameNorm(p.db, authorNorm); err == nil && found {
					ids := append([]string{aid}, alts...)
					hit, _ = catalog.FindWorkByTitleAndAuthor(p.db, titleNorm, ids)
				}
			}
		}
	}

	if hit != nil {
		if first := stringOrEmpty(guess.AuthorFirstname); first != "" {
			if last := stringOrEmpty(guess.AuthorLastname); last != "" {
				authorNorm := normalize.Normalize(first + " " + last)
				if aid, alts, found, err := catalog.FindAuthorByNameNorm(p.db, authorNorm); err == nil && found {
					candidates := append(alts, aid)
					if hit.AuthorID != "" && !containsStr(candidates, hit.AuthorID) {
						hit = nil
					}
				}
			}
		}
	}

	if hit == nil && p.cfg.Mode == ModeFull {
		first, last, ok := p.resolveAuthorPair(guess)
		if ok {
			p.copyFullNormal(ctx, file, canon, filename, title, first, last)
			return
		}
	}

	if hit == nil {
		failMode := "strict-fail"
		if p.cfg.Mode == ModeFull {
			if p.copyFullRaw(file, canon, filename) {
				return
			}
			failMode = "full-fail"
		}
		p.copyToFailure(file, canon, filename, failAuthorDir, failMode)
		return
	}

	p.copyStrictHit(ctx, file, canon, filename, guess, *hit)
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// copyFullNormal places the file via the normal (author-only) workflow as
// mode=full's fallback, additionally stamping the destination filename with
// the LLM's title and invoking ebook-meta when available.
func (p *Pipeline) copyFullNormal(ctx context.Context, file, canon, filename, title, first, last string) {
	outDir := filepath.Join(p.cfg.Root, sortedDir, authorDirName(first, last))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.log.WithError(err).Warn("mkdir failed")
	}
	finalTitle := title
	if finalTitle == "" {
		finalTitle = filename
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	dest := filepath.Join(outDir, fmt.Sprintf("%s - %s %s.%s", finalTitle, first, last, ext))
	if err := copyFile(file, dest); err != nil {
		p.recordCopyFailure(canon, "full-normal", err)
		return
	}
	p.maybeRewriteMeta(ctx, dest, finalTitle, first+" "+last)
	p.recordSuccess(canon, "full-normal", "")
}

// copyFullRaw is mode=full's last-resort pass: it pairs every two tokens of
// the normalized filename and accepts the first pair that resolves to a
// known author and whose two tokens both appear in the normalized filename.
func (p *Pipeline) copyFullRaw(file, canon, filename string) bool {
	fnameNorm := normalize.Normalize(filename)
	tokens := strings.Fields(fnameNorm)
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			f, l := tokens[i], tokens[j]
			norm := normalize.Normalize(f + " " + l)
			if _, _, found, err := p.resolver.Resolve(norm); err != nil || !found {
				continue
			}
			if !strings.Contains(fnameNorm, f) || !strings.Contains(fnameNorm, l) {
				continue
			}
			outDir := filepath.Join(p.cfg.Root, sortedDir, authorDirName(f, l))
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				p.log.WithError(err).Warn("mkdir failed")
			}
			dest := filepath.Join(outDir, filename)
			if err := copyFile(file, dest); err != nil {
				p.recordCopyFailure(canon, "full-raw", err)
				return true
			}
			p.recordSuccess(canon, "full-raw", "")
			return true
		}
	}
	return false
}

func (p *Pipeline) copyStrictHit(ctx context.Context, file, canon, filename string, guess llm.Guess, hit catalog.WorkHit) {
	first := stringOrEmpty(guess.AuthorFirstname)
	last := stringOrEmpty(guess.AuthorLastname)
	if first == "" || last == "" {
		p.copyToFailure(file, canon, filename, failAuthorDir, "strict-fail-author")
		return
	}

	metaTitle := hit.Title
	if !p.cfg.NoOLMeta {
		if doc, err := openlibrary.FetchWork(ctx, hit.WorkID); err == nil && doc.Title != "" {
			metaTitle = doc.Title
		}
	}

	outDir := filepath.Join(p.cfg.Root, sortedDir, authorDirName(first, last))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.log.WithError(err).Warn("mkdir failed")
	}
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	dest := filepath.Join(outDir, fmt.Sprintf("%s - %s %s.%s", metaTitle, first, last, ext))
	if err := copyFile(file, dest); err != nil {
		p.recordCopyFailure(canon, "strict", err)
		return
	}
	p.maybeRewriteMeta(ctx, dest, metaTitle, first+" "+last)
	p.recordSuccess(canon, "strict", hit.WorkID)
}

// maybeRewriteMeta overwrites the copied file's embedded title/author via
// Calibre's ebook-meta CLI, when present on PATH. Failures are logged and
// otherwise ignored: metadata rewriting is a best-effort enrichment.
func (p *Pipeline) maybeRewriteMeta(ctx context.Context, path, title, authors string) {
	if _, err := exec.LookPath(ebookMetaTool); err != nil {
		p.log.Debug("ebook-meta not found; metadata not overwritten")
		return
	}
	cmd := exec.CommandContext(ctx, ebookMetaTool, path, "--title", title, "--authors", authors)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		p.log.WithError(err).Debug("ebook-meta rewrite failed")
	}
}

func authorDirName(first, last string) string {
	return normalize.SanitizeComponent(last) + ", " + normalize.SanitizeComponent(first)
}

func (p *Pipeline) copyToFailure(file, canon, filename, dir, mode string) {
	dest := filepath.Join(p.cfg.Root, dir, filename)
	_ = copyFile(file, dest)
	p.recordSuccess(canon, mode, "")
}

func (p *Pipeline) recordSuccess(canon, mode, workID string) {
	if err := p.state.AppendRecord(statelog.Record{Path: canon, Mode: statelog.Mode(mode), WorkID: workID}); err != nil {
		p.log.WithError(err).Warn("failed to append state record")
	}
}

func (p *Pipeline) recordCopyFailure(canon, context string, copyErr error) {
	p.log.WithError(copyErr).Warn("copy failed")
	if err := p.failLog.AppendCopyFailure(statelog.CopyFailure{Path: canon, Context: statelog.Mode(context), Error: copyErr.Error()}); err != nil {
		p.log.WithError(err).Warn("failed to append copy-failure record")
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
