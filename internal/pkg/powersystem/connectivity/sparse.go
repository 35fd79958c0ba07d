package connectivity

import (
	"fmt"
	"sort"
)

// Number constrains the element types a Sparse matrix may hold.
type Number interface {
	~float64 | ~complex128
}

// Triplet is a (row, col, value) entry used to assemble a Sparse matrix.
type Triplet[T Number] struct {
	Row, Col int
	Value    T
}

// Sparse is an immutable matrix in CSR (compressed sparse row) format.
type Sparse[T Number] struct {
	rows, cols int
	rowPtr     []int // len rows+1
	colInd     []int
	values     []T
}

// NewSparse assembles a CSR matrix. Duplicate entries are summed and explicit
// zeros are kept, so the sparsity pattern reflects the topology.
func NewSparse[T Number](rows, cols int, entries []Triplet[T]) *Sparse[T] {
	sorted := make([]Triplet[T], len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
			panic(fmt.Sprintf("connectivity: entry (%d, %d) out of range %dx%d", e.Row, e.Col, rows, cols))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})

	m := &Sparse[T]{
		rows:   rows,
		cols:   cols,
		rowPtr: make([]int, rows+1),
	}
	for i, e := range sorted {
		last := len(m.colInd) - 1
		if i > 0 && sorted[i-1].Row == e.Row && sorted[i-1].Col == e.Col {
			m.values[last] += e.Value
			continue
		}
		m.colInd = append(m.colInd, e.Col)
		m.values = append(m.values, e.Value)
		m.rowPtr[e.Row+1]++
	}
	for i := 0; i < rows; i++ {
		m.rowPtr[i+1] += m.rowPtr[i]
	}
	return m
}

// Dims returns the matrix dimensions.
func (m *Sparse[T]) Dims() (int, int) { return m.rows, m.cols }

// NNZ returns the number of stored entries.
func (m *Sparse[T]) NNZ() int { return len(m.values) }

// At returns the element at (row, col).
func (m *Sparse[T]) At(row, col int) T {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic("connectivity: index out of range")
	}
	start, end := m.rowPtr[row], m.rowPtr[row+1]
	pos := sort.Search(end-start, func(i int) bool {
		return m.colInd[start+i] >= col
	}) + start
	if pos < end && m.colInd[pos] == col {
		return m.values[pos]
	}
	var zero T
	return zero
}

// DoRowNonZero calls fn for each stored entry of row, in ascending column order.
func (m *Sparse[T]) DoRowNonZero(row int, fn func(col int, v T)) {
	for p := m.rowPtr[row]; p < m.rowPtr[row+1]; p++ {
		fn(m.colInd[p], m.values[p])
	}
}

// RowIndices returns the column indices stored for row. The slice must not be modified.
func (m *Sparse[T]) RowIndices(row int) []int {
	return m.colInd[m.rowPtr[row]:m.rowPtr[row+1]]
}

// Transpose returns the transpose as a new CSR matrix.
func (m *Sparse[T]) Transpose() *Sparse[T] {
	entries := make([]Triplet[T], 0, len(m.values))
	for i := 0; i < m.rows; i++ {
		m.DoRowNonZero(i, func(j int, v T) {
			entries = append(entries, Triplet[T]{Row: j, Col: i, Value: v})
		})
	}
	return NewSparse(m.cols, m.rows, entries)
}

// MulVec returns m·x.
func (m *Sparse[T]) MulVec(x []T) []T {
	if len(x) != m.cols {
		panic("connectivity: vector dimension mismatch")
	}
	y := make([]T, m.rows)
	for i := 0; i < m.rows; i++ {
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			y[i] += m.values[p] * x[m.colInd[p]]
		}
	}
	return y
}
