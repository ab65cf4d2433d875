// Package parser turns import sources into notes and describes snapshot contents.
package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/stickies/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body and tags from raw Markdown bytes.
func Parse(data []byte) *Result {
	fm, body := splitFrontmatter(data)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}
}

// ParseImport decodes an import file. Markdown and plain text files become a
// single note; anything else must be a JSON note array.
func ParseImport(name string, data []byte) ([]models.Note, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return []models.Note{MarkdownNote(data)}, nil
	}
	notes, err := models.DecodeNotes(data)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", name, err)
	}
	return notes, nil
}

// MarkdownNote converts a Markdown document into a note. Frontmatter keys
// "title" and "language" are honoured; the body becomes the note text.
func MarkdownNote(data []byte) models.Note {
	res := Parse(data)
	var title *string
	if res.Title != "" {
		title = models.Title(res.Title)
	}
	n := models.NewNote(res.Body, title)
	if raw, ok := res.Frontmatter["language"].(string); ok {
		if lang, ok := models.ParseLanguage(raw); ok {
			n.Language = lang
		}
	}
	return n
}

// Metadata summarises a snapshot for search indexing.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Notes       int      `json:"notes"`
}

// Describe builds search metadata from a snapshot: note titles, language
// names and inline #tags.
func Describe(name string, notes []models.Note) Metadata {
	seen := make(map[string]struct{})
	keywords := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		keywords = append(keywords, s)
	}
	for _, n := range notes {
		if n.Title != nil {
			add(*n.Title)
		}
	}
	for _, n := range notes {
		add(n.Language.Name())
	}
	for _, n := range notes {
		for _, t := range extractTags(n.Text.String(), nil) {
			add(t)
		}
	}
	return Metadata{
		Title:       filepath.Base(name),
		Description: "Exported Stickies notes",
		Keywords:    keywords,
		Notes:       len(notes),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: the whole file is body.
		return nil, string(data)
	}
	return fm, body
}

// extractTags collects #tags from body and from the frontmatter "tags" list.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string

	if raw, ok := fm["tags"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					if _, dup := seen[s]; !dup {
						seen[s] = struct{}{}
						out = append(out, s)
					}
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		t := m[1]
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
