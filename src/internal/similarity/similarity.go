// Package similarity computes bounded [0,1] similarity metrics between two
// already-normalized strings, and their composite average.
package similarity

import "strings"

// Keys lists the six metric names in the order the composite CSV column
// renders them.
var Keys = [6]string{"seq", "token", "prefix", "suffix", "ngram", "lenratio"}

// Scores holds one value per metric in Keys; Avg computes their
// arithmetic-mean composite.
type Scores struct {
	Seq      float64
	Token    float64
	Prefix   float64
	Suffix   float64
	Ngram    float64
	LenRatio float64
}

// Avg returns the arithmetic mean of the six metrics.
func (s Scores) Avg() float64 {
	return (s.Seq + s.Token + s.Prefix + s.Suffix + s.Ngram + s.LenRatio) / 6
}

// Map returns the metrics as a key->value map, for CSV/JSON rendering.
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		"seq":      s.Seq,
		"token":    s.Token,
		"prefix":   s.Prefix,
		"suffix":   s.Suffix,
		"ngram":    s.Ngram,
		"lenratio": s.LenRatio,
	}
}

// Compute returns every metric between a and b, each clamped to [0,1].
func Compute(a, b string) Scores {
	return Scores{
		Seq:      clamp(Seq(a, b)),
		Token:    clamp(Token(a, b)),
		Prefix:   clamp(Prefix(a, b)),
		Suffix:   clamp(Suffix(a, b)),
		Ngram:    clamp(Ngram(a, b)),
		LenRatio: clamp(LenRatio(a, b)),
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Seq is 2*LCS(a,b)/(len(a)+len(b)) over byte arrays; both empty -> 1.0.
func Seq(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	lcs := lcsLength([]byte(a), []byte(b))
	return (2.0 * float64(lcs)) / (float64(len(a)) + float64(len(b)))
}

func lcsLength(a, b []byte) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for _, byteA := range a {
		for j, byteB := range b {
			if byteA == byteB {
				curr[j+1] = prev[j] + 1
			} else if prev[j+1] > curr[j] {
				curr[j+1] = prev[j+1]
			} else {
				curr[j+1] = curr[j]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Token is the Jaccard index over whitespace-split token sets.
func Token(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	inter := 0
	for t := range aTokens {
		if bTokens[t] {
			inter++
		}
	}
	union := len(aTokens) + len(bTokens) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// Prefix is the count of equal leading characters over max(len(a),len(b)).
func Prefix(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	count := 0
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] != rb[i] {
			break
		}
		count++
	}
	return float64(count) / float64(maxLen)
}

// Suffix is Prefix computed on the reversed strings.
func Suffix(a, b string) float64 {
	return Prefix(reverseString(a), reverseString(b))
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Ngram is the Sorensen-Dice coefficient over character bigrams; strings of
// length 1 are treated as a singleton gram set of that character.
func Ngram(a, b string) float64 {
	setA := bigrams(a)
	setB := bigrams(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for g := range setA {
		if setB[g] {
			inter++
		}
	}
	return (2.0 * float64(inter)) / (float64(len(setA)) + float64(len(setB)))
}

func bigrams(s string) map[string]bool {
	r := []rune(s)
	set := make(map[string]bool)
	if len(r) < 2 {
		for _, c := range r {
			set[string(c)] = true
		}
		return set
	}
	for i := 0; i < len(r)-1; i++ {
		set[string(r[i])+string(r[i+1])] = true
	}
	return set
}

// LenRatio is 1 - |len(a)-len(b)|/max(len(a),len(b)).
func LenRatio(a, b string) float64 {
	la, lb := len(a), len(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 0
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return 1.0 - float64(diff)/float64(maxLen)
}
