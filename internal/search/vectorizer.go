package search

import (
	"math"
	"regexp"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// tokenPattern matches runs of two or more Unicode word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// vector is a sparse row with ascending vocabulary columns.
type vector struct {
	cols    []int
	weights []float64
}

func (v vector) empty() bool {
	return len(v.cols) == 0
}

// Vectorizer turns text into L2-normalised TF-IDF vectors over a vocabulary
// fixed at fit time.
type Vectorizer struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
}

// tokenize lower-cases text and returns its non stop word tokens in order.
func tokenize(text string) []string {
	// A Caser keeps state between calls and must not be shared.
	lowered := cases.Lower(language.Und).String(text)

	raw := tokenPattern.FindAllString(lowered, -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Fit builds the vocabulary and inverse document frequencies from docs and
// returns the vectorizer with the transformed rows.
func Fit(docs []string) (*Vectorizer, []vector) {
	if len(docs) == 0 {
		docs = []string{""}
	}

	docTokens := make([][]string, len(docs))
	docFreq := make(map[string]int)
	for i, doc := range docs {
		tokens := tokenize(doc)
		docTokens[i] = tokens

		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		terms:      terms,
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for col, term := range terms {
		v.vocabulary[term] = col
		v.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	rows := make([]vector, len(docTokens))
	for i, tokens := range docTokens {
		rows[i] = v.weigh(tokens)
	}
	return v, rows
}

// Transform vectorises text with the fitted vocabulary. Unknown terms are
// ignored; text with no known terms yields an empty vector.
func (v *Vectorizer) Transform(text string) vector {
	return v.weigh(tokenize(text))
}

// VocabularySize returns the number of distinct indexed terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.terms)
}

func (v *Vectorizer) weigh(tokens []string) vector {
	counts := make(map[int]float64)
	for _, tok := range tokens {
		if col, ok := v.vocabulary[tok]; ok {
			counts[col]++
		}
	}

	row := vector{cols: make([]int, 0, len(counts))}
	for col := range counts {
		row.cols = append(row.cols, col)
	}
	sort.Ints(row.cols)

	row.weights = make([]float64, len(row.cols))
	var norm float64
	for i, col := range row.cols {
		w := counts[col] * v.idf[col]
		row.weights[i] = w
		norm += w * w
	}
	if norm == 0 {
		return row
	}
	norm = math.Sqrt(norm)
	for i := range row.weights {
		row.weights[i] /= norm
	}
	return row
}

// dot returns the cosine similarity of two normalised vectors. Columns are
// summed in ascending order so equal documents always score identically.
func dot(a, b vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.cols) && j < len(b.cols) {
		switch {
		case a.cols[i] == b.cols[j]:
			sum += a.weights[i] * b.weights[j]
			i++
			j++
		case a.cols[i] < b.cols[j]:
			i++
		default:
			j++
		}
	}
	return sum
}
