// Package ontology resolves free-text terms to controlled-vocabulary
// identifiers using exact name/synonym lookup with a fuzzy fallback.
package ontology

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/sirupsen/logrus"
)

// ErrOntologyLoad marks a source that could not be fetched or parsed. It is
// fatal for the file task that needed the ontology.
var ErrOntologyLoad = errors.New("ontology source load failed")

// DefaultFuzzyThreshold matches the original pipeline's default similarity
// cutoff on the 0-100 scale.
const DefaultFuzzyThreshold = 80

// SourceConfig describes one ontology source: a local file, or a URL
// resolved through the on-disk cache.
type SourceConfig struct {
	ID     string `yaml:"id" json:"id"`
	File   string `yaml:"file" json:"file"`
	URL    string `yaml:"url" json:"url"`
	Format string `yaml:"format" json:"format"` // obo or json
}

// Options configures a Mapper.
type Options struct {
	Sources         []SourceConfig
	Defaults        []string // target ontologies when a caller passes none
	FuzzyThreshold  int
	CacheDir        string
	CacheExpiryDays int
}

// TermMapping maps ontology id to resolved code; an empty string means the
// term did not map for that ontology.
type TermMapping map[string]string

// Mapper holds loaded term tables. It is immutable after construction and
// safe for concurrent use by file workers.
type Mapper struct {
	terms     map[string]map[string]string // ontology id -> normalized name -> code
	names     map[string][]string          // sorted names per ontology, for deterministic fuzzy scans
	defaults  []string
	threshold int
}

// NewMapper loads every configured source once. Any source that fails to
// load or parse returns an error wrapping ErrOntologyLoad.
func NewMapper(ctx context.Context, opts Options, log *logrus.Entry) (*Mapper, error) {
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	cache := NewCache(opts.CacheDir, opts.CacheExpiryDays)
	m := &Mapper{
		terms:     make(map[string]map[string]string, len(opts.Sources)),
		names:     make(map[string][]string, len(opts.Sources)),
		defaults:  opts.Defaults,
		threshold: opts.FuzzyThreshold,
	}
	for _, src := range opts.Sources {
		path := src.File
		if src.URL != "" {
			p, err := cache.Fetch(ctx, src.ID, src.URL, src.Format)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrOntologyLoad, src.ID, err)
			}
			path = p
		}
		if path == "" {
			return nil, fmt.Errorf("%w: %s: neither file nor url configured", ErrOntologyLoad, src.ID)
		}
		terms, err := ParseFile(path, src.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOntologyLoad, src.ID, err)
		}
		names := make([]string, 0, len(terms))
		for n := range terms {
			names = append(names, n)
		}
		sort.Strings(names)
		m.terms[src.ID] = terms
		m.names[src.ID] = names
		if log != nil {
			log.WithFields(logrus.Fields{"ontology": src.ID, "terms": len(terms)}).Info("ontology loaded")
		}
	}
	return m, nil
}

// Supported returns the loaded ontology ids.
func (m *Mapper) Supported() []string {
	ids := make([]string, 0, len(m.terms))
	for id := range m.terms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Defaults returns the configured default target ontologies.
func (m *Mapper) Defaults() []string { return m.defaults }

// Normalize canonicalizes a raw term for lookup: trim and lowercase.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// MapTerm resolves one term against each target ontology. A custom-mapping
// hit assigns its single id to every requested target ontology, even when
// only one ontology's code was likely intended. Downstream consumers rely
// on that behavior.
func (m *Mapper) MapTerm(term string, targets []string, custom map[string]string) TermMapping {
	if targets == nil {
		targets = m.defaults
	}
	norm := Normalize(term)
	out := make(TermMapping, len(targets))

	if custom != nil {
		if id, ok := custom[norm]; ok {
			for _, ont := range targets {
				out[ont] = id
			}
			return out
		}
	}
	for _, ont := range targets {
		table := m.terms[ont]
		if id, ok := table[norm]; ok {
			out[ont] = id
			continue
		}
		if name, score := m.bestFuzzy(ont, norm); score >= m.threshold {
			out[ont] = table[name]
		} else {
			out[ont] = ""
		}
	}
	return out
}

// MapTerms resolves a batch, computing each distinct term value once.
func (m *Mapper) MapTerms(terms []string, targets []string, custom map[string]string) map[string]TermMapping {
	out := make(map[string]TermMapping, len(terms))
	for _, t := range terms {
		if _, done := out[t]; done {
			continue
		}
		out[t] = m.MapTerm(t, targets, custom)
	}
	return out
}

func (m *Mapper) bestFuzzy(ont, norm string) (string, int) {
	bestName, bestScore := "", -1
	for _, name := range m.names[ont] {
		if s := TokenSortRatio(norm, name); s > bestScore {
			bestName, bestScore = name, s
		}
	}
	return bestName, bestScore
}

// TokenSortRatio scores string similarity on a 0-100 scale, insensitive to
// token order: both sides are whitespace-tokenized, sorted, and rejoined
// before Levenshtein comparison.
func TokenSortRatio(a, b string) int {
	as, bs := tokenSort(a), tokenSort(b)
	if as == bs {
		return 100
	}
	la, lb := len([]rune(as)), len([]rune(bs))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 100
	}
	d := levenshtein.ComputeDistance(as, bs)
	return int(math.Round(100 * (1 - float64(d)/float64(max))))
}

func tokenSort(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
