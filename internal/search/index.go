// Package search ranks catalog products against free-text queries using a
// TF-IDF index built from the product corpus.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/cupid-chocolate/giftlab/internal/catalog"
)

// DefaultLimit is used when a query asks for zero or fewer hits.
const DefaultLimit = 8

// Hit is one search result.
type Hit struct {
	Record catalog.ProductRecord `json:"record"`
	Score  float64               `json:"score"`
}

// Index is an immutable snapshot of the product corpus. It is safe for
// concurrent reads.
type Index struct {
	records    []catalog.ProductRecord
	rows       []vector
	vectorizer *Vectorizer
	builtAt    time.Time
}

// Build fits a new index over entries. An empty corpus yields an index that
// matches nothing.
func Build(entries []catalog.CorpusEntry) *Index {
	docs := make([]string, len(entries))
	records := make([]catalog.ProductRecord, len(entries))
	for i, e := range entries {
		docs[i] = e.Text
		records[i] = e.Record
	}

	vectorizer, rows := Fit(docs)
	if len(entries) == 0 {
		rows = nil
	}

	return &Index{
		records:    records,
		rows:       rows,
		vectorizer: vectorizer,
		builtAt:    time.Now(),
	}
}

// Len returns the number of indexed products.
func (idx *Index) Len() int {
	return len(idx.records)
}

// BuiltAt returns when the snapshot was built.
func (idx *Index) BuiltAt() time.Time {
	return idx.builtAt
}

// Search returns up to limit products with a positive similarity to query,
// best first. Equal scores keep catalog order.
func (idx *Index) Search(query string, limit int) []Hit {
	if strings.TrimSpace(query) == "" {
		return []Hit{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	q := idx.vectorizer.Transform(query)
	if q.empty() {
		return []Hit{}
	}

	hits := make([]Hit, 0, len(idx.rows))
	for i, row := range idx.rows {
		hits = append(hits, Hit{Record: idx.records[i], Score: dot(q, row)})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	out := make([]Hit, 0, min(limit, len(hits)))
	for _, h := range hits {
		if h.Score <= 0 || len(out) == limit {
			break
		}
		out = append(out, h)
	}
	return out
}
