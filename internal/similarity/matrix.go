package similarity

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Matrix is a symmetric n×n similarity matrix. Only the upper triangle,
// diagonal included, is stored, packed row by row.
type Matrix struct {
	n    int
	data []float64
}

// NewMatrix returns a zero n×n matrix. n may be 0.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, data: make([]float64, n*(n+1)/2)}
}

// N returns the matrix dimension.
func (m *Matrix) N() int { return m.n }

func (m *Matrix) offset(i, j int) int {
	if i > j {
		i, j = j, i
	}
	// rows 0..i-1 hold n, n-1, ... entries
	return i*m.n - i*(i-1)/2 + (j - i)
}

// At returns entry (i, j).
func (m *Matrix) At(i, j int) float64 { return m.data[m.offset(i, j)] }

// Set stores v at (i, j) and (j, i).
func (m *Matrix) Set(i, j int, v float64) { m.data[m.offset(i, j)] = v }

// Row returns a fresh copy of row i.
func (m *Matrix) Row(i int) []float64 {
	row := make([]float64, m.n)
	for j := range row {
		row[j] = m.At(i, j)
	}
	return row
}

// AddScaled adds w*o to m in place.
func (m *Matrix) AddScaled(w float64, o *Matrix) error {
	if o.n != m.n {
		return fmt.Errorf("add matrix: size %d, want %d", o.n, m.n)
	}
	for k, v := range o.data {
		m.data[k] += w * v
	}
	return nil
}

// MulElem multiplies m by o elementwise in place.
func (m *Matrix) MulElem(o *Matrix) error {
	if o.n != m.n {
		return fmt.Errorf("multiply matrix: size %d, want %d", o.n, m.n)
	}
	for k, v := range o.data {
		m.data[k] *= v
	}
	return nil
}

// Equal reports whether m and o hold bit-identical entries.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.n != o.n {
		return false
	}
	for k := range m.data {
		if m.data[k] != o.data[k] {
			return false
		}
	}
	return true
}

// pairwise fills the upper triangle of a new matrix with f(i, j), i <= j.
// Rows are handed out to a bounded pool of workers; every cell is written
// exactly once so the result does not depend on scheduling.
func pairwise(ctx context.Context, n, workers int, f func(i, j int) float64) (*Matrix, error) {
	m := NewMatrix(n)
	if n == 0 {
		return m, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range rows {
				for j := i; j < n; j++ {
					m.Set(i, j, f(i, j))
				}
			}
		}()
	}

	var err error
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		rows <- i
	}
	close(rows)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	return m, nil
}
