// Package normalize canonicalizes author and title strings into comparable
// keys, and generates candidate surface forms for fuzzy catalog lookups.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketRE = regexp.MustCompile(`\[[^\]]+\]`)
	parenRE   = regexp.MustCompile(`\([^)]+\)`)
	wsRE      = regexp.MustCompile(`\s+`)
)

var invalidFilenameChars = []rune{'<', '>', ':', '"', '/', '\\', '|', '?', '*'}

var windowsReserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// StripAccents decomposes s under NFKD and drops combining marks, the single
// accent-folding primitive shared by Normalize, NormalizeStrict,
// NormalizeAuthorDisplay, the cleanup pass's group key, and the online alias
// resolver's query scoring.
func StripAccents(s string) string {
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize produces the canonical comparison key: accent-stripped,
// lowercased, with every character outside [a-z0-9-] mapped to a space and
// runs of whitespace collapsed.
func Normalize(s string) string {
	stripped := StripAccents(s)
	lowered := strings.ToLower(stripped)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return collapseSpace(b.String())
}

// NormalizeStrict is the stricter flavor used by the consolidator's alignment
// scorer: same as Normalize but with no '-' exception.
func NormalizeStrict(s string) string {
	stripped := StripAccents(s)
	lowered := strings.ToLower(stripped)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	return strings.TrimSpace(wsRE.ReplaceAllString(s, " "))
}

// Candidates produces up to several candidate surface forms of raw, in
// priority order: the raw input; brackets/parens stripped; digit tokens
// removed; initials reordered to the end; and, for any candidate containing
// a comma, a comma-swapped form. Order is preserved, duplicates removed.
func Candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	base := []string{trimmed}
	stripped := stripEnclosures(trimmed)
	if stripped != trimmed {
		base = appendUnique(base, stripped)
	}
	digitsRemoved := removeNumericTokens(stripped)
	if digitsRemoved != "" {
		base = appendUnique(base, digitsRemoved)
	}
	reordered := reorderInitials(digitsRemoved)
	if reordered == "" {
		reordered = reorderInitials(stripped)
	}
	if reordered != "" {
		base = appendUnique(base, reordered)
	}

	seen := make(map[string]bool, len(base)*2)
	var results []string
	for _, candidate := range base {
		if !seen[candidate] {
			seen[candidate] = true
			results = append(results, candidate)
		}
		if idx := strings.IndexByte(candidate, ','); idx >= 0 {
			left := strings.TrimSpace(candidate[:idx])
			right := strings.TrimSpace(candidate[idx+1:])
			swapped := strings.TrimSpace(right + " " + left)
			if swapped != "" && !seen[swapped] {
				seen[swapped] = true
				results = append(results, swapped)
			}
		}
	}
	return results
}

// NormalizedVariants applies Candidates then Normalize, deduplicating the
// normalized forms while preserving first-seen order.
func NormalizedVariants(raw string) []string {
	seen := make(map[string]bool)
	var variants []string
	for _, candidate := range Candidates(raw) {
		n := Normalize(candidate)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		variants = append(variants, n)
	}
	return variants
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func stripEnclosures(s string) string {
	step := bracketRE.ReplaceAllString(s, " ")
	return parenRE.ReplaceAllString(step, " ")
}

func removeNumericTokens(s string) string {
	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, t := range tokens {
		if !allDigits(t) {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// reorderInitials moves all single-character tokens (initials) after all
// longer tokens. Returns "" if there are no initials or no longer tokens.
func reorderInitials(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ""
	}
	var initials, others []string
	for _, t := range tokens {
		if len([]rune(t)) == 1 {
			initials = append(initials, t)
		} else {
			others = append(others, t)
		}
	}
	if len(initials) == 0 || len(others) == 0 {
		return ""
	}
	combined := append(append([]string{}, others...), initials...)
	return strings.Join(combined, " ")
}

// NormalizeAuthorDisplay converts a free-form author name into "Last, First"
// form: accents stripped, curly quotes normalized, underscores/hyphens
// replaced with space, all-uppercase input lowercased before title-casing.
func NormalizeAuthorDisplay(name string) string {
	if strings.TrimSpace(name) == "" {
		return "_"
	}
	stripped := StripAccents(name)
	replacer := strings.NewReplacer("’", "'", "`", "'", "´", "'", "_", " ", "-", " ")
	stripped = replacer.Replace(stripped)
	stripped = strings.Join(strings.Fields(stripped), " ")

	letters := onlyASCIILetters(stripped)
	base := stripped
	if letters != "" && isAllUpper(letters) {
		base = strings.ToLower(stripped)
	}

	var first, last string
	if idx := strings.IndexByte(base, ','); idx >= 0 {
		last = strings.TrimSpace(base[:idx])
		first = strings.TrimSpace(base[idx+1:])
	} else {
		tokens := strings.Fields(base)
		if len(tokens) >= 2 {
			last = tokens[len(tokens)-1]
			first = strings.Join(tokens[:len(tokens)-1], " ")
		} else if len(tokens) == 1 {
			first = tokens[0]
		}
	}

	firstCap := CapitalizeWords(first)
	lastCap := CapitalizeWords(last)
	if lastCap != "" {
		value := strings.TrimSpace(lastCap + ", " + firstCap)
		value = strings.Trim(value, ",")
		value = strings.TrimSpace(value)
		if value == "" {
			return lastCap
		}
		return value
	}
	return firstCap
}

func onlyASCIILetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

// CapitalizeWords upper-cases the first letter of every whitespace-separated
// token and lowercases the rest.
func CapitalizeWords(s string) string {
	tokens := strings.Fields(s)
	for i, t := range tokens {
		tokens[i] = CapitalizeFirst(strings.ToLower(t))
	}
	return strings.Join(tokens, " ")
}

// CapitalizeFirst upper-cases the first rune of s and leaves the rest as-is.
func CapitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// SanitizeComponent makes s safe as a single filesystem path component:
// leading dots/whitespace trimmed, invalid characters replaced with '_',
// "_" returned for an empty result, and reserved Windows device names
// prefixed with '_'.
func SanitizeComponent(s string) string {
	cleaned := strings.TrimLeftFunc(s, func(r rune) bool {
		return r == '.' || unicode.IsSpace(r)
	})
	if cleaned == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range cleaned {
		if isInvalidFilenameChar(r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	cleaned = strings.TrimSpace(b.String())
	if cleaned == "" {
		return "_"
	}
	lowered := strings.ToLower(strings.Trim(strings.TrimSpace(cleaned), "."))
	if windowsReserved[lowered] {
		return "_" + cleaned
	}
	return cleaned
}

func isInvalidFilenameChar(r rune) bool {
	for _, bad := range invalidFilenameChars {
		if r == bad {
			return true
		}
	}
	return false
}
