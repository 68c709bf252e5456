package styles

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var defaultTable []byte

var whitespace = regexp.MustCompile(`\s+`)

// Source is a citation for a style description
type Source struct {
	Org   string `yaml:"org" json:"org"`
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// Meta is the display metadata for one style
type Meta struct {
	Description string   `yaml:"description" json:"description"`
	Sources     []Source `yaml:"sources" json:"sources"`
	Accessed    string   `yaml:"accessed" json:"accessed,omitempty"`
}

type table struct {
	Accessed string          `yaml:"accessed"`
	Styles   map[string]Meta `yaml:"styles"`
}

// Lookup resolves style labels case-insensitively
type Lookup struct {
	entries map[string]Meta
	labels  []string
}

// Default returns the lookup built from the embedded table
func Default() (*Lookup, error) {
	return Parse(defaultTable)
}

// Load reads a lookup table from a YAML file
func Load(path string) (*Lookup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read styles file: %w", err)
	}
	return Parse(data)
}

// Parse builds a lookup from YAML
func Parse(data []byte) (*Lookup, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse styles: %w", err)
	}

	l := &Lookup{entries: make(map[string]Meta, len(t.Styles))}
	for label, meta := range t.Styles {
		if meta.Accessed == "" {
			meta.Accessed = t.Accessed
		}
		l.entries[strings.ToLower(label)] = meta
		l.labels = append(l.labels, label)
	}
	sort.Strings(l.labels)
	return l, nil
}

// Get returns the metadata for style, ignoring case
func (l *Lookup) Get(style string) (Meta, bool) {
	if l == nil || style == "" {
		return Meta{}, false
	}
	meta, ok := l.entries[strings.ToLower(style)]
	return meta, ok
}

// Labels returns every known style label in sorted order
func (l *Lookup) Labels() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.labels...)
}

// FormatName turns a label like "Post_Impressionism" into display text
func FormatName(style string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ReplaceAll(style, "_", " "), " "))
}

// Title is the gallery heading for a predicted style
func Title(style string) string {
	formatted := FormatName(style)
	if formatted == "" {
		return "Awaiting Style"
	}
	return strings.ToUpper(formatted)
}

// Description returns the gallery blurb for a predicted style
func (l *Lookup) Description(style string) string {
	if style == "" {
		return "Submit an artwork above to reveal the style and unlock the gallery."
	}
	if meta, ok := l.Get(style); ok && meta.Description != "" {
		return meta.Description
	}
	formatted := FormatName(style)
	if formatted == "" {
		formatted = "your artwork"
	}
	return fmt.Sprintf("A curated carousel that echoes the color, rhythm, and mood of %s.", formatted)
}
