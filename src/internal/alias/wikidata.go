package alias

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sortbook/src/internal/httpx"
	"sortbook/src/internal/normalize"
)

const defaultWikidataAPI = "https://www.wikidata.org/w/api.php"

var (
	client  httpx.Doer = httpx.NewTimeoutClient(0)
	apiBase            = defaultWikidataAPI
)

// SetHTTPClient allows tests to inject a fake HTTP client.
func SetHTTPClient(c httpx.Doer) { client = c }

// SetAPIBaseURL overrides the identity service endpoint, used by
// --identity-base-url to point at a fake server in tests.
func SetAPIBaseURL(base string) {
	if base == "" {
		base = defaultWikidataAPI
	}
	apiBase = base
}

type searchResponse struct {
	Search []searchItem `json:"search"`
}

type searchItem struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type entityResponse struct {
	Entities map[string]entity `json:"entities"`
}

type entity struct {
	Claims map[string][]claim    `json:"claims"`
	Labels map[string]labelValue `json:"labels"`
}

type labelValue struct {
	Value string `json:"value"`
}

type claim struct {
	Mainsnak snak `json:"mainsnak"`
}

type snak struct {
	Datavalue *datavalue `json:"datavalue"`
}

type datavalue struct {
	Value json.RawMessage `json:"value"`
}

// Match is a scored Wikidata search hit.
type Match struct {
	ID          string
	Label       string
	Description string
	Score       float64
}

// Alias proposal provenance, matching the AliasProposal data model's
// source enum: "claims" when both given and family resolved from the
// entity's own claims, "label-heuristic" when either field instead came
// from splitting the entity label.
const (
	SourceClaims         = "claims"
	SourceLabelHeuristic = "label-heuristic"
)

func doGet(ctx context.Context, params map[string]string) (*http.Response, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "sortbook-author-alias-online/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("wikidata: http %d", resp.StatusCode)
	}
	return resp, nil
}

// search queries wbsearchentities for query, scoring every result against
// the normalized query and returning the best match.
func search(ctx context.Context, query, preferLang string) (*Match, error) {
	resp, err := doGet(ctx, map[string]string{
		"action":   "wbsearchentities",
		"search":   query,
		"format":   "json",
		"type":     "item",
		"language": preferLang,
		"limit":    "10",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode wikidata search: %w", err)
	}

	q := normalizeForScore(query)
	var best *Match
	for _, item := range data.Search {
		score := scoreCandidate(q, item.Label, item.Description)
		if best == nil || score > best.Score {
			best = &Match{ID: item.ID, Label: item.Label, Description: item.Description, Score: score}
		}
	}
	return best, nil
}

func scoreCandidate(q, label, description string) float64 {
	d := strings.ToLower(description)
	labelFL := normalizeForScore(label)
	labelLF := ""
	if inv, ok := invertFirstLast(label); ok {
		labelLF = normalizeForScore(inv)
	}

	score := 0.0
	if strings.Contains(d, "writer") || strings.Contains(d, "author") || strings.Contains(d, "novelist") ||
		strings.Contains(d, "poet") || strings.Contains(d, "écrivain") {
		score += 0.5
	}
	if labelFL == q || (labelLF != "" && labelLF == q) {
		return 1.0
	}

	ov := tokenOverlapF1(q, labelFL)
	if labelLF != "" {
		if lfOv := tokenOverlapF1(q, labelLF); lfOv > ov {
			ov = lfOv
		}
	}
	partial := 0.5 * ov
	if ov >= 0.90 {
		partial = 0.5
	}
	return score + partial
}

// enrichFirstLastWithWikidata resolves (first, last) from the entity's P735
// (given name) / P734 (family name) claims, each requiring a secondary
// label fetch. Whichever field has no claim falls back to splitting
// fallbackLabel — a per-field fallback: a claim found for one field is
// never discarded just because the other field has none. The returned
// source is SourceClaims only when both fields resolved from claims;
// otherwise it is SourceLabelHeuristic, since at least one field came from
// the label split.
func enrichFirstLastWithWikidata(ctx context.Context, qid, fallbackLabel string) (first, last, source string) {
	fallbackFirst, fallbackLast := pickFirstLast(fallbackLabel, fallbackLabel)

	if !strings.HasPrefix(qid, "Q") {
		return fallbackFirst, fallbackLast, SourceLabelHeuristic
	}

	resp, err := doGet(ctx, map[string]string{
		"action":    "wbgetentities",
		"ids":       qid,
		"format":    "json",
		"languages": "en|fr",
		"props":     "claims|labels",
	})
	if err != nil {
		return fallbackFirst, fallbackLast, SourceLabelHeuristic
	}
	defer resp.Body.Close()

	var data entityResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fallbackFirst, fallbackLast, SourceLabelHeuristic
	}
	ent, ok := data.Entities[qid]
	if !ok {
		return fallbackFirst, fallbackLast, SourceLabelHeuristic
	}

	first = fallbackFirst
	last = fallbackLast
	firstFromClaim := false
	lastFromClaim := false
	if items, ok := ent.Claims["P735"]; ok {
		if v := extractLabelFromClaim(ctx, items); v != "" {
			first = v
			firstFromClaim = true
		}
	}
	if items, ok := ent.Claims["P734"]; ok {
		if v := extractLabelFromClaim(ctx, items); v != "" {
			last = v
			lastFromClaim = true
		}
	}
	if firstFromClaim && lastFromClaim {
		return first, last, SourceClaims
	}
	return first, last, SourceLabelHeuristic
}

func extractLabelFromClaim(ctx context.Context, claims []claim) string {
	for _, c := range claims {
		if c.Mainsnak.Datavalue == nil {
			continue
		}
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Mainsnak.Datavalue.Value, &v); err != nil || v.ID == "" {
			continue
		}
		resp, err := doGet(ctx, map[string]string{
			"action":    "wbgetentities",
			"ids":       v.ID,
			"format":    "json",
			"languages": "en|fr",
			"props":     "labels",
		})
		if err != nil {
			continue
		}
		var data entityResponse
		err = json.NewDecoder(resp.Body).Decode(&data)
		resp.Body.Close()
		if err != nil {
			continue
		}
		if ent, ok := data.Entities[v.ID]; ok {
			if lbl, ok := ent.Labels["en"]; ok {
				return lbl.Value
			}
			if lbl, ok := ent.Labels["fr"]; ok {
				return lbl.Value
			}
		}
	}
	return ""
}

func normalizeForScore(s string) string {
	stripped := normalize.StripAccents(s)
	var b strings.Builder
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(toLowerASCII(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}

// invertFirstLast reinterprets "First [Middle] Last" as "Last, First
// Middle", used to check a search label against a "Last, First" directory
// name.
func invertFirstLast(label string) (string, bool) {
	tokens := strings.Fields(label)
	if len(tokens) < 2 {
		return "", false
	}
	last := tokens[len(tokens)-1]
	first := strings.Join(tokens[:len(tokens)-1], " ")
	return last + ", " + first, true
}

func tokenOverlapF1(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	aSet := make(map[string]bool, len(aTokens))
	for _, t := range aTokens {
		aSet[t] = true
	}
	bSet := make(map[string]bool, len(bTokens))
	for _, t := range bTokens {
		bSet[t] = true
	}
	inter := 0
	for t := range aSet {
		if bSet[t] {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	prec := float64(inter) / float64(len(bSet))
	rec := float64(inter) / float64(len(aSet))
	return 2 * prec * rec / (prec + rec)
}

// pickFirstLast splits localName (if it already looks like "Last, First")
// or, failing that, label (treated as "First [Middle] Last") into a
// (first, last) pair.
func pickFirstLast(localName, label string) (first, last string) {
	if idx := strings.IndexByte(localName, ','); idx >= 0 {
		l := strings.TrimSpace(localName[:idx])
		f := strings.TrimSpace(localName[idx+1:])
		if l != "" && f != "" {
			return f, l
		}
	}
	tokens := strings.Fields(label)
	if len(tokens) >= 2 {
		return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
	}
	return label, ""
}
