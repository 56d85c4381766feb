// Package rank extracts each card's nearest neighbours from a fused
// similarity matrix.
package rank

import (
	"container/heap"
	"fmt"

	"github.com/nidhogg/cardclusters/internal/similarity"
)

// DefaultK is the neighbour list length policy.
const DefaultK = 50

// Neighbor is one entry of a card's neighbour list.
type Neighbor struct {
	ID    int     `json:"multiverse_id"`
	Score float64 `json:"score"`
}

// List is ordered best first: List[0] is the most similar card.
type List []Neighbor

// Ascending returns a copy ordered worst first, so the best neighbour is
// the last element.
func (l List) Ascending() List {
	out := make(List, len(l))
	for i, nb := range l {
		out[len(l)-1-i] = nb
	}
	return out
}

// Neighbors maps a multiverse id to its neighbour list.
type Neighbors map[int]List

// TopK returns, for every row of m, the k highest-scoring other cards.
// A card never appears in its own list, so each list holds exactly
// min(k, n-1) entries. Equal scores are ordered by ascending row.
func TopK(m *similarity.Matrix, ids []int, k int) (Neighbors, error) {
	n := m.N()
	if len(ids) != n {
		return nil, fmt.Errorf("rank: %d ids for a %d×%d matrix", len(ids), n, n)
	}
	if k < 0 {
		return nil, fmt.Errorf("rank: negative k %d", k)
	}
	out := make(Neighbors, n)
	size := min(k, n-1)
	for i := 0; i < n; i++ {
		if _, dup := out[ids[i]]; dup {
			return nil, fmt.Errorf("rank: duplicate id %d", ids[i])
		}
		out[ids[i]] = topRow(m, ids, i, size)
	}
	return out, nil
}

type entry struct {
	row   int
	score float64
}

// worse reports whether a ranks below b.
func worse(a, b entry) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.row > b.row
}

// minHeap keeps the current worst kept entry on top.
type minHeap []entry

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *minHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

func topRow(m *similarity.Matrix, ids []int, i, size int) List {
	if size <= 0 {
		return List{}
	}
	h := make(minHeap, 0, size)
	for j := 0; j < m.N(); j++ {
		if j == i {
			continue
		}
		e := entry{row: j, score: m.At(i, j)}
		if len(h) < size {
			heap.Push(&h, e)
			continue
		}
		if worse(h[0], e) {
			h[0] = e
			heap.Fix(&h, 0)
		}
	}
	list := make(List, len(h))
	for k := len(h) - 1; k >= 0; k-- {
		e := heap.Pop(&h).(entry)
		list[k] = Neighbor{ID: ids[e.row], Score: e.score}
	}
	return list
}
