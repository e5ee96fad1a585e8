package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"sortbook/src/internal/normalize"
	"sortbook/src/internal/similarity"
)

const (
	neighborLimit     = 25
	probableMinScore  = 0.65
	probableEarlyExit = 0.85
)

// Suggestion is the best-scored non-exact match for an author name.
type Suggestion struct {
	AuthorID    string
	DisplayName string
	AvgScore    float64
	SeqScore    float64
	PerMetric   map[string]float64
}

type exactHit struct {
	id   string
	name string
}

type candidateRow struct {
	authorID       string
	name           string
	nameNormalized string
}

// Resolver performs exact and probable author-name matching against the
// catalog, maintaining process-scoped caches keyed by normalized variant.
// A Resolver is not safe for concurrent use; each pipeline owns its own.
type Resolver struct {
	db            *sql.DB
	exactCache    map[string]*exactHit
	neighborCache map[string][]candidateRow
}

// NewResolver returns a Resolver bound to db.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{
		db:            db,
		exactCache:    make(map[string]*exactHit),
		neighborCache: make(map[string][]candidateRow),
	}
}

// Resolve runs the exact-match path over name's candidate variants. ok is
// false when no variant hits.
func (r *Resolver) Resolve(name string) (authorID, dbName string, ok bool, err error) {
	variants := normalize.NormalizedVariants(name)
	for _, variant := range variants {
		hit, hitErr := r.exactForVariant(variant)
		if hitErr != nil {
			return "", "", false, hitErr
		}
		if hit != nil {
			return hit.id, hit.name, true, nil
		}
	}
	return "", "", false, nil
}

func (r *Resolver) exactForVariant(variant string) (*exactHit, error) {
	if cached, found := r.exactCache[variant]; found {
		return cached, nil
	}
	var id, name string
	err := r.db.QueryRow(
		`SELECT author_id, name FROM authors WHERE name_normalized = ? LIMIT 1`, variant,
	).Scan(&id, &name)
	switch {
	case err == sql.ErrNoRows:
		r.exactCache[variant] = nil
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("exact author lookup %q: %w", variant, err)
	}
	hit := &exactHit{id: id, name: name}
	r.exactCache[variant] = hit
	return hit, nil
}

// Suggest runs the probable-match path: for each normalized variant of name,
// fetches a lexicographic neighborhood and scores every candidate, returning
// the best-scored candidate if its average reaches probableMinScore.
func (r *Resolver) Suggest(name string) (*Suggestion, error) {
	variants := normalize.NormalizedVariants(name)
	var best *Suggestion
	bestAvg := 0.0
	for _, variant := range variants {
		candidates, err := r.neighbors(variant)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			scores := similarity.Compute(variant, c.nameNormalized)
			avg := scores.Avg()
			if avg > bestAvg {
				bestAvg = avg
				best = &Suggestion{
					AuthorID:    c.authorID,
					DisplayName: c.name,
					AvgScore:    avg,
					SeqScore:    scores.Seq,
					PerMetric:   scores.Map(),
				}
			}
		}
		if bestAvg >= probableEarlyExit {
			break
		}
	}
	if best != nil && bestAvg >= probableMinScore {
		return best, nil
	}
	return nil, nil
}

func (r *Resolver) neighbors(normalized string) ([]candidateRow, error) {
	if cached, found := r.neighborCache[normalized]; found {
		return cached, nil
	}
	var rows []candidateRow

	ascRows, err := r.db.Query(
		`SELECT author_id, name, name_normalized FROM authors
		 WHERE name_normalized >= ? ORDER BY name_normalized LIMIT ?`,
		normalized, neighborLimit)
	if err != nil {
		return nil, fmt.Errorf("neighbor asc query %q: %w", normalized, err)
	}
	for ascRows.Next() {
		var c candidateRow
		if err := ascRows.Scan(&c.authorID, &c.name, &c.nameNormalized); err != nil {
			ascRows.Close()
			return nil, fmt.Errorf("neighbor asc scan: %w", err)
		}
		rows = append(rows, c)
	}
	ascRows.Close()
	if err := ascRows.Err(); err != nil {
		return nil, err
	}

	descRows, err := r.db.Query(
		`SELECT author_id, name, name_normalized FROM authors
		 WHERE name_normalized < ? ORDER BY name_normalized DESC LIMIT ?`,
		normalized, neighborLimit)
	if err != nil {
		return nil, fmt.Errorf("neighbor desc query %q: %w", normalized, err)
	}
	for descRows.Next() {
		var c candidateRow
		if err := descRows.Scan(&c.authorID, &c.name, &c.nameNormalized); err != nil {
			descRows.Close()
			return nil, fmt.Errorf("neighbor desc scan: %w", err)
		}
		rows = append(rows, c)
	}
	descRows.Close()
	if err := descRows.Err(); err != nil {
		return nil, err
	}

	r.neighborCache[normalized] = rows
	return rows, nil
}

// FormatProbableValue renders a Suggestion as the pipe-joined CSV cell
// described in SPEC_FULL.md §4.C: id|display|avg:X.XX|seq:…|token:…|… .
func FormatProbableValue(s *Suggestion) string {
	if s == nil {
		return ""
	}
	parts := []string{
		s.AuthorID,
		s.DisplayName,
		fmt.Sprintf("avg:%.2f", s.AvgScore),
	}
	for _, k := range similarity.Keys {
		if v, ok := s.PerMetric[k]; ok {
			parts = append(parts, fmt.Sprintf("%s:%.2f", k, v))
		}
	}
	return strings.Join(parts, "|")
}
