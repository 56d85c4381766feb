package rank

import (
	"testing"

	"github.com/nidhogg/cardclusters/internal/similarity"
)

// matrixOf builds a symmetric matrix whose off-diagonal entries are
// f(i, j) and whose diagonal is 1.
func matrixOf(n int, f func(i, j int) float64) *similarity.Matrix {
	m := similarity.NewMatrix(n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
		for j := i + 1; j < n; j++ {
			m.Set(i, j, f(i, j))
		}
	}
	return m
}

func seqIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = 1000 + i
	}
	return ids
}

func TestTopKLengthAndSelfExclusion(t *testing.T) {
	tests := []struct {
		n, k, want int
	}{
		{0, 50, 0},
		{1, 50, 0},
		{3, 50, 2},
		{51, 50, 50},
		{52, 50, 50},
		{120, 50, 50},
		{10, 0, 0},
	}
	for _, tt := range tests {
		m := matrixOf(tt.n, func(i, j int) float64 { return 1 / float64(1+i+j) })
		ids := seqIDs(tt.n)
		got, err := TopK(m, ids, tt.k)
		if err != nil {
			t.Fatalf("n=%d: %v", tt.n, err)
		}
		if len(got) != tt.n {
			t.Fatalf("n=%d: got %d lists, want %d", tt.n, len(got), tt.n)
		}
		for _, id := range ids {
			list := got[id]
			if len(list) != tt.want {
				t.Errorf("n=%d k=%d: list of %d has %d entries, want %d", tt.n, tt.k, id, len(list), tt.want)
			}
			for _, nb := range list {
				if nb.ID == id {
					t.Errorf("n=%d: card %d lists itself", tt.n, id)
				}
			}
		}
	}
}

func TestTopKOrderedBestFirst(t *testing.T) {
	n := 80
	m := matrixOf(n, func(i, j int) float64 { return float64((i*31+j*17)%97) / 97 })
	got, err := TopK(m, seqIDs(n), DefaultK)
	if err != nil {
		t.Fatal(err)
	}
	for id, list := range got {
		row := id - 1000
		for k := 1; k < len(list); k++ {
			if list[k].Score > list[k-1].Score {
				t.Fatalf("card %d: score rises at %d (%v > %v)", id, k, list[k].Score, list[k-1].Score)
			}
		}
		// nothing left out may beat the last kept entry
		kept := make(map[int]bool, len(list))
		for _, nb := range list {
			kept[nb.ID-1000] = true
		}
		last := list[len(list)-1].Score
		for j := 0; j < n; j++ {
			if j != row && !kept[j] && m.At(row, j) > last {
				t.Fatalf("card %d: dropped row %d with %v > %v", id, j, m.At(row, j), last)
			}
		}
	}
}

func TestTopKTiesBrokenByRow(t *testing.T) {
	m := matrixOf(5, func(i, j int) float64 { return 0.5 })
	got, err := TopK(m, []int{10, 20, 30, 40, 50}, 2)
	if err != nil {
		t.Fatal(err)
	}
	list := got[30]
	if list[0].ID != 10 || list[1].ID != 20 {
		t.Errorf("got %v, want ids 10, 20", list)
	}
}

func TestAscending(t *testing.T) {
	l := List{{ID: 1, Score: 0.9}, {ID: 2, Score: 0.5}, {ID: 3, Score: 0.1}}
	asc := l.Ascending()
	if asc[0].ID != 3 || asc[2].ID != 1 {
		t.Errorf("got %v", asc)
	}
	if l[0].ID != 1 {
		t.Error("Ascending modified the receiver")
	}
}

func TestTopKRejectsBadInput(t *testing.T) {
	m := matrixOf(3, func(i, j int) float64 { return 0 })
	if _, err := TopK(m, []int{1, 2}, 5); err == nil {
		t.Error("expected error for id count mismatch")
	}
	if _, err := TopK(m, []int{1, 2, 1}, 5); err == nil {
		t.Error("expected error for duplicate ids")
	}
}
