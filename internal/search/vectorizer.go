package search

import (
	"math"
	"sort"
)

// Vector is a sparse term-weight vector. Indices are sorted ascending.
type Vector struct {
	Indices []int
	Values  []float64
}

// IsZero reports whether the vector has no non-zero weight.
func (v Vector) IsZero() bool {
	return len(v.Indices) == 0
}

// Norm returns the euclidean length of the vector.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v.Values {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// TFIDFVectorizer implements Term Frequency - Inverse Document Frequency.
// A fitted vectorizer is read-only and safe for concurrent Transform calls.
type TFIDFVectorizer struct {
	Vocabulary map[string]int
	IDF        []float64
	NumDocs    int
}

// FitTFIDF analyzes the corpus to build vocabulary and IDF stats.
// Columns are assigned in sorted term order.
func FitTFIDF(docs []string) *TFIDFVectorizer {
	docCounts := make(map[string]int)
	for _, doc := range docs {
		seenInDoc := make(map[string]bool)
		for _, token := range Tokenize(doc) {
			if !seenInDoc[token] {
				docCounts[token]++
				seenInDoc[token] = true
			}
		}
	}

	terms := make([]string, 0, len(docCounts))
	for term := range docCounts {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &TFIDFVectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
		NumDocs:    len(docs),
	}
	n := float64(len(docs))
	for i, term := range terms {
		v.Vocabulary[term] = i
		// smoothed: idf = ln((1 + n) / (1 + df)) + 1
		v.IDF[i] = math.Log((1+n)/(1+float64(docCounts[term]))) + 1
	}
	return v
}

// Transform converts text to an L2-normalized vector over the fitted vocabulary.
// Terms outside the vocabulary are ignored.
func (v *TFIDFVectorizer) Transform(text string) Vector {
	counts := make(map[int]float64)
	for _, token := range Tokenize(text) {
		if idx, ok := v.Vocabulary[token]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var sum float64
	for i, idx := range indices {
		w := counts[idx] * v.IDF[idx]
		values[i] = w
		sum += w * w
	}
	norm := math.Sqrt(sum)
	for i := range values {
		values[i] /= norm
	}
	return Vector{Indices: indices, Values: values}
}

// Dot returns the inner product of two sparse vectors.
func Dot(a, b Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			dot += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// It is 0 when either vector has zero magnitude.
func CosineSimilarity(a, b Vector) float64 {
	normA, normB := a.Norm(), b.Norm()
	if normA == 0 || normB == 0 {
		return 0
	}
	return Dot(a, b) / (normA * normB)
}
