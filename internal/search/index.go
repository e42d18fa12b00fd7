// Package search provides a small, deterministic, concurrency-safe in-memory
// similarity index over doubt threads. It backs the related-questions panel.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware tokenization with case folding and optional stop words
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Document is one indexed item, typically a thread's title and description.
type Document struct {
	ID   uint
	Text string
}

// Result is a ranked document id with its similarity score.
type Result struct {
	ID    uint
	Score float64
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	// TopK returns up to k documents most similar to query. Documents whose
	// id is in exclude are skipped.
	TopK(query string, k int, exclude ...uint) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minTokenRunes int
	stopwords     map[string]struct{}
	minScore      float64
}

func defaultConfig() config {
	return config{
		minTokenRunes: 2,
		stopwords:     defaultStopwords(),
		minScore:      0,
	}
}

// WithMinTokenRunes drops tokens shorter than n runes.
func WithMinTokenRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minTokenRunes = n
		}
	}
}

// WithStopwords replaces the default stop-word list. An empty list disables
// stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = fold(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			c.stopwords = nil
			return
		}
		c.stopwords = m
	}
}

// WithMinScore drops results scoring at or below s.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s < 1 {
			c.minScore = s
		}
	}
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "can", "do", "does",
		"for", "from", "how", "i", "in", "is", "it", "my", "of", "on", "or",
		"the", "this", "to", "what", "when", "why", "with",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     uint
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over docs. Documents without any usable token are
// skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		toks := tokenize(PlainText(d.Text), cfg)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{id: d.ID, tokens: toks})
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k best-matching documents by Jaccard similarity.
func (i *index) TopK(q string, k int, exclude ...uint) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(PlainText(q), i.cfg)
	if len(qTokens) == 0 {
		return nil
	}
	skip := make(map[uint]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	buf := make([]Result, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		if _, ok := skip[d.id]; ok {
			continue
		}
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		score := float64(over) / union
		if score <= i.cfg.minScore {
			continue
		}
		buf = append(buf, Result{ID: d.id, Score: score})
	}
	if len(buf) == 0 {
		return nil
	}

	// Ties prefer the older (lower id) document.
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].ID < buf[b].ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	return buf[:k]
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

var folder = cases.Fold()

func fold(s string) string { return folder.String(s) }

func tokenize(s string, cfg config) map[string]struct{} {
	words := wordRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < cfg.minTokenRunes {
			continue
		}
		if _, skip := cfg.stopwords[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
