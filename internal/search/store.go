package search

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"
)

// Result holds a ranked catalog item and its score
type Result struct {
	Item     Item    `json:"item"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// Index is the term-weight index over a fixed catalog.
// It is never mutated after BuildIndex returns.
type Index struct {
	items      []Item
	vectorizer *TFIDFVectorizer
	vectors    []Vector
	builtAt    time.Time
}

// BuildIndex fits the vectorizer on the catalog and vectorizes every item.
func BuildIndex(items []Item) (*Index, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	catalog := make([]Item, len(items))
	copy(catalog, items)

	texts := make([]string, len(catalog))
	for i, it := range catalog {
		texts[i] = it.Text()
	}

	vectorizer := FitTFIDF(texts)
	vectors := make([]Vector, len(texts))
	for i, text := range texts {
		vectors[i] = vectorizer.Transform(text)
	}

	return &Index{
		items:      catalog,
		vectorizer: vectorizer,
		vectors:    vectors,
		builtAt:    time.Now(),
	}, nil
}

// Len returns the number of catalog items.
func (ix *Index) Len() int { return len(ix.items) }

// VocabularySize returns the number of indexed terms.
func (ix *Index) VocabularySize() int { return len(ix.vectorizer.Vocabulary) }

// BuiltAt returns the build time.
func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

// Items returns a copy of the catalog in index order.
func (ix *Index) Items() []Item {
	out := make([]Item, len(ix.items))
	copy(out, ix.items)
	return out
}

// Similarity returns the cosine similarity between the query and the item at position i.
func (ix *Index) Similarity(query string, i int) float64 {
	if i < 0 || i >= len(ix.vectors) {
		return 0
	}
	return CosineSimilarity(ix.vectorizer.Transform(query), ix.vectors[i])
}

// Rank scores every item against the query and returns the best min(topN, Len()) results.
// Ties keep catalog order.
func (ix *Index) Rank(query string, topN int) ([]Result, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: topN must be positive, got %d", ErrInvalidArgument, topN)
	}

	q := ix.vectorizer.Transform(query)
	results := make([]Result, len(ix.items))
	for i, it := range ix.items {
		results[i] = Result{
			Item:     it,
			Score:    CosineSimilarity(q, ix.vectors[i]),
			Position: i,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// Recommend returns the catalog items most similar to the query.
func (ix *Index) Recommend(query string, topN int) ([]Item, error) {
	results, err := ix.Rank(query, topN)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(results))
	for i, r := range results {
		items[i] = r.Item
	}
	return items, nil
}

// Recommender serves queries from the current index snapshot.
// Rebuilds are copy-on-write: in-flight queries finish on the snapshot they started with.
type Recommender struct {
	current atomic.Pointer[Index]
}

func NewRecommender() *Recommender {
	return &Recommender{}
}

// Snapshot returns the current index.
func (r *Recommender) Snapshot() (*Index, error) {
	ix := r.current.Load()
	if ix == nil {
		return nil, ErrNoIndex
	}
	return ix, nil
}

// Swap installs ix and returns the previous index, if any.
func (r *Recommender) Swap(ix *Index) *Index {
	return r.current.Swap(ix)
}

// Rebuild builds a new index from items and swaps it in.
// On failure the previous index stays in place.
func (r *Recommender) Rebuild(items []Item) (*Index, error) {
	ix, err := BuildIndex(items)
	if err != nil {
		return nil, err
	}
	r.Swap(ix)
	return ix, nil
}

func (r *Recommender) Rank(query string, topN int) ([]Result, error) {
	ix, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return ix.Rank(query, topN)
}

func (r *Recommender) Recommend(query string, topN int) ([]Item, error) {
	ix, err := r.Snapshot()
	if err != nil {
		return nil, err
	}
	return ix.Recommend(query, topN)
}
