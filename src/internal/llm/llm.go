// Package llm invokes a local Ollama model to guess a book's title and
// author from its noisy filename, used by the Sort Pipeline before it
// falls back to deterministic catalog lookups.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// Guess is the LLM's best-effort extraction. Any field may be nil when the
// model declined to answer.
type Guess struct {
	Title           *string `json:"title"`
	TitleNormalized *string `json:"title_normalized"`
	AuthorFirstname *string `json:"author_firstname"`
	AuthorLastname  *string `json:"author_lastname"`
}

const (
	defaultModel   = "mistral:7b"
	hintsByteLimit = 40_000
)

// Invoker abstracts the model call so the Sort Pipeline can be tested
// without a real Ollama install.
type Invoker interface {
	Guess(ctx context.Context, prompt string) (Guess, error)
}

// OllamaInvoker shells out to `<Command> run <model>`, feeding the prompt
// on stdin and parsing JSON from stdout.
type OllamaInvoker struct {
	Command string
	Model   string
}

// NewOllamaInvoker returns an OllamaInvoker for model, or defaultModel when
// model is empty, invoking the "ollama" executable by default.
func NewOllamaInvoker(model string) *OllamaInvoker {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &OllamaInvoker{Command: "ollama", Model: model}
}

// Guess runs `<Command> run <model>` with prompt on stdin and decodes the
// response as JSON, falling back to the first balanced-brace object found
// in the output when the model wraps its answer in extra prose.
func (o *OllamaInvoker) Guess(ctx context.Context, prompt string) (Guess, error) {
	command := o.Command
	if strings.TrimSpace(command) == "" {
		command = "ollama"
	}
	cmd := exec.CommandContext(ctx, command, "run", o.Model)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return Guess{}, fmt.Errorf("ollama run %s: %w", o.Model, err)
	}

	text := stdout.String()
	var g Guess
	if err := json.Unmarshal([]byte(text), &g); err == nil {
		return g, nil
	}
	obj, ok := ExtractFirstJSONObject(text)
	if !ok {
		return Guess{}, fmt.Errorf("ollama response was not valid JSON")
	}
	if err := json.Unmarshal([]byte(obj), &g); err != nil {
		return Guess{}, fmt.Errorf("parse ollama response object: %w", err)
	}
	return g, nil
}

// ExtractFirstJSONObject returns the first top-level {...} span in s using
// simple brace-depth tracking (no string/escape awareness, matching the
// model's typically unquoted-brace output).
func ExtractFirstJSONObject(s string) (string, bool) {
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start >= 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// BuildPrompt renders the fixed JSON-extraction instructions for filename,
// prefixed with a partial author roster (when non-empty) so the model can
// pick a spelling consistent with the catalog. authorHints is truncated at
// hintsByteLimit bytes to bound prompt size on large catalogs.
func BuildPrompt(filename string, authorHints []string) string {
	base := fmt.Sprintf(`Réponds UNIQUEMENT en JSON compact sans texte hors JSON.
{
  "title": string|null,
  "title_normalized": string|null,
  "author_firstname": string|null,
  "author_lastname": string|null
}
Règles:
- favoris le titre français si probable
- si incertain -> null
- n'ajoute pas d'explication
Nom de fichier: %s
`, filename)

	if len(authorHints) == 0 {
		return base
	}

	var b strings.Builder
	b.Grow(len(base) + len(authorHints)*16)
	b.WriteString("Tu dois répondre STRICTEMENT en JSON avec les clés: ")
	b.WriteString(`{"title", "title_normalized", "author_firstname", "author_lastname"}.` + "\n")
	b.WriteString("Si possible, choisis l'auteur parmi la liste partielle suivante.\n")
	b.WriteString("Auteurs connus (partiel): ")
	for i, a := range authorHints {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(a)
		if b.Len() > hintsByteLimit {
			break
		}
	}
	b.WriteString("\n\n")
	b.WriteString(base)
	return b.String()
}
