package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nidhogg/cardclusters/internal/textnorm"
)

var ErrPruneThresholds = errors.New("document frequency thresholds leave no admissible range")

// TfidfOptions configures term extraction and document-frequency pruning.
// MinDF and MaxDF are fractions of the corpus size.
type TfidfOptions struct {
	MinDF    float64 `json:"min_df"`
	MaxDF    float64 `json:"max_df"`
	NGramMin int     `json:"ngram_min"`
	NGramMax int     `json:"ngram_max"`
}

// sparseVec is an L2-normalised vector with ascending term indices.
type sparseVec struct {
	idx []int
	val []float64
}

func (a sparseVec) dot(b sparseVec) float64 {
	var s float64
	i, j := 0, 0
	for i < len(a.idx) && j < len(b.idx) {
		switch {
		case a.idx[i] == b.idx[j]:
			s += a.val[i] * b.val[j]
			i++
			j++
		case a.idx[i] < b.idx[j]:
			i++
		default:
			j++
		}
	}
	return s
}

// tfidf vectorises docs: raw term counts times smoothed idf
// ln((1+n)/(1+df))+1, then L2 normalisation. Terms outside
// [MinDF*n, MaxDF*n] documents are pruned. An empty vocabulary is not an
// error; every vector is then empty.
func tfidf(docs []string, opts TfidfOptions) ([]sparseVec, int, error) {
	n := len(docs)
	vecs := make([]sparseVec, n)
	if n == 0 {
		return vecs, 0, nil
	}

	minCount := opts.MinDF * float64(n)
	maxCount := opts.MaxDF * float64(n)
	if maxCount < minCount {
		return nil, 0, fmt.Errorf("%w: max_df %.2f, min_df %.2f", ErrPruneThresholds, opts.MaxDF, opts.MinDF)
	}

	counts := make([]map[string]int, n)
	df := make(map[string]int)
	for d, doc := range docs {
		c := make(map[string]int)
		for _, term := range textnorm.Terms(doc, opts.NGramMin, opts.NGramMax) {
			c[term]++
		}
		for term := range c {
			df[term]++
		}
		counts[d] = c
	}

	vocab := make([]string, 0, len(df))
	for term, k := range df {
		if float64(k) >= minCount && float64(k) <= maxCount {
			vocab = append(vocab, term)
		}
	}
	sort.Strings(vocab)
	col := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	for i, term := range vocab {
		col[term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	for d, c := range counts {
		var v sparseVec
		for term := range c {
			if i, ok := col[term]; ok {
				v.idx = append(v.idx, i)
			}
		}
		sort.Ints(v.idx)
		v.val = make([]float64, len(v.idx))
		var norm float64
		for k, i := range v.idx {
			w := float64(c[vocab[i]]) * idf[i]
			v.val[k] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for k := range v.val {
				v.val[k] /= norm
			}
		}
		vecs[d] = v
	}
	return vecs, len(vocab), nil
}
