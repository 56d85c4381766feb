package similarity

import (
	"context"
	"math"
	"strings"

	"github.com/nidhogg/cardclusters/internal/card"
)

// Comparator scores every pair of cards under one attribute family.
type Comparator struct {
	Name    string
	compare func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error)
}

// Compare returns the n×n matrix for cards, filled by up to workers
// goroutines (GOMAXPROCS when workers <= 0).
func (c Comparator) Compare(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
	return c.compare(ctx, cards, workers)
}

// DistanceToSimilarity maps a non-negative distance onto (0, 1]:
// 0 → 1, strictly decreasing, → 0 as d grows.
func DistanceToSimilarity(d float64) float64 {
	return 1 - d/(1+d)
}

// Text compares rules text by TF-IDF cosine similarity. Absent text is an
// empty document.
func Text(opts TfidfOptions) Comparator {
	return tfidfComparator("text", opts, func(c card.Card) *string { return c.Text })
}

// TypeLine compares type lines by TF-IDF cosine similarity.
func TypeLine(opts TfidfOptions) Comparator {
	return tfidfComparator("type", opts, func(c card.Card) *string { return c.Type })
}

func tfidfComparator(name string, opts TfidfOptions, field func(card.Card) *string) Comparator {
	return Comparator{Name: name, compare: func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
		docs := make([]string, cards.Len())
		for i := range docs {
			if s := field(cards.At(i)); s != nil {
				docs[i] = *s
			}
		}
		vecs, _, err := tfidf(docs, opts)
		if err != nil {
			return nil, err
		}
		return cosineMatrix(ctx, vecs, workers)
	}}
}

// PowerKind is 1 where two cards' power values share a kind, else 0.
func PowerKind() Comparator {
	return kindComparator("power_kind", func(c card.Card) *string { return c.Power })
}

// ToughnessKind is PowerKind for toughness.
func ToughnessKind() Comparator {
	return kindComparator("toughness_kind", func(c card.Card) *string { return c.Toughness })
}

func kindComparator(name string, field func(card.Card) *string) Comparator {
	return Comparator{Name: name, compare: func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
		vecs := make([]sparseVec, cards.Len())
		for i := range vecs {
			kind, _ := card.ParseStat(field(cards.At(i)))
			counts := make([]float64, len(card.Kinds))
			for k, known := range card.Kinds {
				if kind == known {
					counts[k] = 1
				}
			}
			vecs[i] = denseToSparse(counts)
		}
		return cosineMatrix(ctx, vecs, workers)
	}}
}

// Power compares integer power values; non-integer or absent power counts
// as 0 and must be gated by PowerKind.
func Power() Comparator {
	return numericStat("power", func(c card.Card) *string { return c.Power })
}

// Toughness is Power for toughness.
func Toughness() Comparator {
	return numericStat("toughness", func(c card.Card) *string { return c.Toughness })
}

func numericStat(name string, field func(card.Card) *string) Comparator {
	return Comparator{Name: name, compare: func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
		values := make([]float64, cards.Len())
		for i := range values {
			_, v := card.ParseStat(field(cards.At(i)))
			values[i] = float64(v)
		}
		return distanceMatrix(ctx, values, workers)
	}}
}

// CMC compares converted mana cost; absent cost counts as 0.
func CMC() Comparator {
	return Comparator{Name: "cmc", compare: func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
		values := make([]float64, cards.Len())
		for i := range values {
			if c := cards.At(i).CMC; c != nil {
				values[i] = *c
			}
		}
		return distanceMatrix(ctx, values, workers)
	}}
}

// colorVocabulary is the bag-of-letters column order; c is colorless.
var colorVocabulary = []string{"b", "u", "w", "g", "r", "c"}

// Color compares color identities as letter counts over colorVocabulary.
// An empty or absent identity is colorless.
func Color() Comparator {
	return Comparator{Name: "color", compare: func(ctx context.Context, cards *card.Set, workers int) (*Matrix, error) {
		vecs := make([]sparseVec, cards.Len())
		for i := range vecs {
			identity := cards.At(i).ColorIdentity
			if len(identity) == 0 {
				identity = []string{"c"}
			}
			counts := make([]float64, len(colorVocabulary))
			for _, code := range identity {
				code = strings.ToLower(code)
				for k, letter := range colorVocabulary {
					if code == letter {
						counts[k]++
					}
				}
			}
			vecs[i] = denseToSparse(counts)
		}
		return cosineMatrix(ctx, vecs, workers)
	}}
}

func denseToSparse(counts []float64) sparseVec {
	var v sparseVec
	var norm float64
	for i, c := range counts {
		if c != 0 {
			v.idx = append(v.idx, i)
			v.val = append(v.val, c)
			norm += c * c
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range v.val {
			v.val[k] /= norm
		}
	}
	return v
}

// cosineMatrix scores pairs of normalised vectors. A zero vector scores 0
// against every other card; the diagonal is always 1.
func cosineMatrix(ctx context.Context, vecs []sparseVec, workers int) (*Matrix, error) {
	return pairwise(ctx, len(vecs), workers, func(i, j int) float64 {
		if i == j {
			return 1
		}
		return clamp01(vecs[i].dot(vecs[j]))
	})
}

func distanceMatrix(ctx context.Context, values []float64, workers int) (*Matrix, error) {
	return pairwise(ctx, len(values), workers, func(i, j int) float64 {
		return DistanceToSimilarity(math.Abs(values[i] - values[j]))
	})
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
