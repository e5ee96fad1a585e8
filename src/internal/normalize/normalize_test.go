package normalize

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Honoré de Balzac":  "honore de balzac",
		"J.K. Rowling":      "j k rowling",
		"  Multiple   Spaces ": "multiple spaces",
		"":                  "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeStrictDropsHyphen(t *testing.T) {
	got := NormalizeStrict("Jean-Paul Sartre")
	want := "jean paul sartre"
	if got != want {
		t.Fatalf("NormalizeStrict = %q, want %q", got, want)
	}
}

func TestCandidatesStripsEnclosuresAndDigits(t *testing.T) {
	cands := Candidates("Tolkien, J.R.R. (Author) [1892]")
	if len(cands) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if cands[0] != "Tolkien, J.R.R. (Author) [1892]" {
		t.Errorf("first candidate should be the raw input, got %q", cands[0])
	}
	found := false
	for _, c := range cands {
		if c == "Tolkien, J.R.R." {
			found = true
		}
	}
	if !found {
		t.Errorf("expected enclosure-stripped candidate, got %v", cands)
	}
}

func TestCandidatesCommaSwap(t *testing.T) {
	cands := Candidates("Verne, Jules")
	found := false
	for _, c := range cands {
		if c == "Jules Verne" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected comma-swapped candidate, got %v", cands)
	}
}

func TestNormalizeAuthorDisplay(t *testing.T) {
	cases := map[string]string{
		"jules verne":     "Verne, Jules",
		"VERNE, JULES":    "Verne, Jules",
		"Verne, Jules":    "Verne, Jules",
		"Platon":          "Platon",
		"":                "_",
	}
	for in, want := range cases {
		if got := NormalizeAuthorDisplay(in); got != want {
			t.Errorf("NormalizeAuthorDisplay(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeComponent(t *testing.T) {
	cases := map[string]string{
		"Verne, Jules":   "Verne, Jules",
		"a/b:c*d":        "a_b_c_d",
		"   ":            "_",
		"CON":            "_CON",
		"...":            "_",
	}
	for in, want := range cases {
		if got := SanitizeComponent(in); got != want {
			t.Errorf("SanitizeComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCapitalizeFirst(t *testing.T) {
	if got := CapitalizeFirst("bonjour"); got != "Bonjour" {
		t.Errorf("CapitalizeFirst = %q", got)
	}
	if got := CapitalizeFirst(""); got != "" {
		t.Errorf("CapitalizeFirst empty = %q", got)
	}
}
