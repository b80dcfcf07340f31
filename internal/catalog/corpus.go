// Package catalog joins the product master with behavioral signals into the
// per-product text corpus used by product search.
package catalog

import (
	"fmt"
	"strings"

	"github.com/cupid-chocolate/giftlab/internal/storage"
)

// Render defaults for products without behavioral signals.
const (
	DefaultPersona  = "mixed"
	DefaultDelivery = "standard"
	noRatingsText   = "No ratings yet"
)

// ProductRecord describes one product as returned by search.
type ProductRecord struct {
	ProductID   string   `json:"productId"`
	ProductName string   `json:"productName"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Flavor      string   `json:"flavor,omitempty"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
	AvgRating   *float64 `json:"avgRating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	Persona     string   `json:"persona"`
	Delivery    string   `json:"delivery"`
	TopEvent    string   `json:"topEvent,omitempty"`
	Snippet     string   `json:"snippet"`
}

// CorpusEntry pairs a record with the text it is indexed under.
type CorpusEntry struct {
	Record ProductRecord
	Text   string
}

// behavior aggregates the signals recorded for one product name.
type behavior struct {
	category    string
	subcategory string
	brand       string
	ratingSum   float64
	ratingCount int
	persona     modeCounter
	delivery    modeCounter
	event       modeCounter
}

// BuildCorpus returns one entry per product, in product order.
func BuildCorpus(products []storage.Product, signals []storage.BehaviorSignal) []CorpusEntry {
	byName := aggregate(signals)

	entries := make([]CorpusEntry, 0, len(products))
	for _, p := range products {
		entries = append(entries, buildEntry(p, byName[p.ProductName]))
	}
	return entries
}

func aggregate(signals []storage.BehaviorSignal) map[string]*behavior {
	byName := make(map[string]*behavior)
	for _, s := range signals {
		b, ok := byName[s.ProductName]
		if !ok {
			b = &behavior{}
			byName[s.ProductName] = b
		}
		if b.category == "" {
			b.category = s.ProductCategory
		}
		if b.subcategory == "" {
			b.subcategory = s.ProductSubcategory
		}
		if b.brand == "" {
			b.brand = s.Brand
		}
		if s.Rating != nil {
			b.ratingSum += *s.Rating
			b.ratingCount++
		}
		b.persona.add(s.Persona)
		b.delivery.add(s.Delivery)
		b.event.add(s.EventType)
	}
	return byName
}

func buildEntry(p storage.Product, b *behavior) CorpusEntry {
	if b == nil {
		b = &behavior{}
	}

	rec := ProductRecord{
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		Brand:       firstNonEmpty(p.Brand, b.brand),
		Category:    firstNonEmpty(p.Category, b.category),
		Subcategory: firstNonEmpty(p.Subcategory, b.subcategory),
		Flavor:      p.Flavor,
		UnitPrice:   p.UnitPrice,
		Persona:     firstNonEmpty(b.persona.mode(), DefaultPersona),
		Delivery:    firstNonEmpty(b.delivery.mode(), DefaultDelivery),
		TopEvent:    b.event.mode(),
	}

	ratingText := noRatingsText
	if b.ratingCount > 0 {
		avg := b.ratingSum / float64(b.ratingCount)
		count := b.ratingCount
		rec.AvgRating = &avg
		rec.ReviewCount = &count
		ratingText = fmt.Sprintf("Avg rating %.1f from %d reviews", avg, count)
	}
	rec.Snippet = fmt.Sprintf("%s. Popular for %s gifts with %s delivery.", ratingText, rec.Persona, rec.Delivery)

	text := joinNonEmpty(
		rec.ProductName,
		rec.Brand,
		rec.Category,
		rec.Subcategory,
		rec.Flavor,
		b.category,
		b.subcategory,
		rec.Persona,
		rec.Delivery,
		rec.TopEvent,
		rec.Snippet,
	)
	return CorpusEntry{Record: rec, Text: text}
}

// modeCounter tracks the most frequent non-empty value; ties go to the value
// seen first.
type modeCounter struct {
	counts map[string]int
	order  []string
}

func (m *modeCounter) add(v string) {
	if v == "" {
		return
	}
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	if _, seen := m.counts[v]; !seen {
		m.order = append(m.order, v)
	}
	m.counts[v]++
}

func (m *modeCounter) mode() string {
	best, bestCount := "", 0
	for _, v := range m.order {
		if c := m.counts[v]; c > bestCount {
			best, bestCount = v, c
		}
	}
	return best
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
