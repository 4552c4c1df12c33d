package ner

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// GazetteerConfig is the YAML form of a gazetteer model:
//
//	case_sensitive: false
//	entities:
//	  PERSON: [Jane Doe]
//	  ORG: [Acme Corp]
type GazetteerConfig struct {
	CaseSensitive bool                `yaml:"case_sensitive"`
	Entities      map[string][]string `yaml:"entities"`
}

type phrase struct {
	text  string
	label string
}

// Gazetteer is a dictionary-driven Model. At each word boundary it takes
// the longest listed phrase that matches, scanning left to right. It is
// immutable after construction.
type Gazetteer struct {
	phrases       []phrase
	caseSensitive bool
}

// NewGazetteer builds a Gazetteer from cfg. A phrase listed under more than
// one label keeps the label that sorts first.
func NewGazetteer(cfg GazetteerConfig) (*Gazetteer, error) {
	seen := make(map[string]bool)
	var phrases []phrase

	labels := make([]string, 0, len(cfg.Entities))
	for label := range cfg.Entities {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("gazetteer: empty label")
		}
		for _, p := range cfg.Entities[label] {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			key := p
			if !cfg.CaseSensitive {
				key = strings.ToLower(p)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			phrases = append(phrases, phrase{text: p, label: label})
		}
	}

	// Longest first so that "Acme Corp Ltd" wins over "Acme Corp".
	slices.SortStableFunc(phrases, func(a, b phrase) int {
		return cmp.Compare(len(b.text), len(a.text))
	})

	return &Gazetteer{phrases: phrases, caseSensitive: cfg.CaseSensitive}, nil
}

// LoadGazetteer reads a GazetteerConfig from a YAML file.
func LoadGazetteer(path string) (*Gazetteer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer: %w", err)
	}
	var cfg GazetteerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %w", path, err)
	}
	return NewGazetteer(cfg)
}

// Size returns the number of distinct phrases.
func (g *Gazetteer) Size() int { return len(g.phrases) }

// Recognize implements Model.
func (g *Gazetteer) Recognize(ctx context.Context, text string) ([]Span, error) {
	var spans []Span
	for i := 0; i < len(text); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !boundaryBefore(text, i) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		if p, ok := g.matchAt(text, i); ok {
			spans = append(spans, Span{Text: text[i : i+len(p.text)], Label: p.label, Start: i})
			i += len(p.text)
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return spans, nil
}

func (g *Gazetteer) matchAt(text string, i int) (phrase, bool) {
	for _, p := range g.phrases {
		end := i + len(p.text)
		if end > len(text) {
			continue
		}
		candidate := text[i:end]
		if g.caseSensitive {
			if candidate != p.text {
				continue
			}
		} else if !strings.EqualFold(candidate, p.text) {
			continue
		}
		if boundaryAfter(text, end) {
			return p, true
		}
	}
	return phrase{}, false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}
