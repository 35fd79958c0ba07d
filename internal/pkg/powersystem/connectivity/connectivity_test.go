package connectivity

import (
	"math"
	"testing"

	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"gotest.tools/v3/assert"
)

func threeBus() powersystem.Network {
	return powersystem.Network{
		Sbase: 100,
		Buses: []powersystem.Bus{
			{Name: "B0", Type: powersystem.Ref},
			{Name: "B1"},
			{Name: "B2"},
		},
		Branches: []powersystem.Branch{
			{Name: "L01", From: 0, To: 1, X: 0.1, B: 0.02, Rate: 100, Active: true},
			{Name: "L12", From: 1, To: 2, X: 0.2, Rate: 100, Active: true},
			{Name: "L02", From: 0, To: 2, X: 0.5, Rate: 100, Active: false},
		},
		Generators: []powersystem.Generator{
			{Name: "G0", Bus: 0, Pmax: 100, Active: true, Dispatchable: true},
		},
		Loads: []powersystem.Load{
			{Name: "D1", Bus: 1, P: 40, Active: true},
			{Name: "D2", Bus: 2, P: 30, Active: true},
			{Name: "D2b", Bus: 2, P: 5, Active: true},
		},
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSparseDuplicatesSummed(t *testing.T) {
	m := NewSparse(2, 3, []Triplet[float64]{
		{1, 2, 1.5},
		{0, 0, 1},
		{1, 2, 2.5},
	})
	assert.Equal(t, m.NNZ(), 2)
	assert.Equal(t, m.At(1, 2), 4.0)
	assert.Equal(t, m.At(0, 0), 1.0)
	assert.Equal(t, m.At(0, 1), 0.0)
}

func TestSparseTransposeAndMulVec(t *testing.T) {
	m := NewSparse(2, 3, []Triplet[float64]{
		{0, 0, 1},
		{0, 2, 2},
		{1, 1, 3},
	})
	mt := m.Transpose()
	r, c := mt.Dims()
	assert.Equal(t, r, 3)
	assert.Equal(t, c, 2)
	assert.Equal(t, mt.At(2, 0), 2.0)

	y := m.MulVec([]float64{1, 1, 1})
	assert.DeepEqual(t, y, []float64{3, 3})
}

func TestIncidence(t *testing.T) {
	m := New(threeBus())

	assert.DeepEqual(t, m.LoadsAt(2), []int{1, 2})
	assert.DeepEqual(t, m.GeneratorsAt(0), []int{0})
	assert.Assert(t, m.GeneratorsAt(1) == nil)
	assert.Assert(t, m.BatteriesAt(0) == nil)

	f, to := m.BranchBuses(2)
	assert.Equal(t, f, 0)
	assert.Equal(t, to, 2)
}

func TestSusceptance(t *testing.T) {
	m := New(threeBus())

	assert.Assert(t, approx(m.BBranch[0], 10))
	assert.Assert(t, approx(m.BBranch[1], 5))
	assert.Equal(t, m.BBranch[2], 0.0) // inactive

	assert.Assert(t, approx(m.B.At(0, 0), 10))
	assert.Assert(t, approx(m.B.At(1, 1), 15))
	assert.Assert(t, approx(m.B.At(0, 1), -10))
	assert.Equal(t, m.B.At(0, 2), 0.0)

	// rows of the DC susceptance matrix sum to zero
	for i := 0; i < m.NBus; i++ {
		sum := 0.0
		m.B.DoRowNonZero(i, func(_ int, v float64) { sum += v })
		assert.Assert(t, math.Abs(sum) < 1e-12)
	}
}

func TestYbusIncludesCharging(t *testing.T) {
	m := New(threeBus())

	// diagonal carries half of the line charging, the DC matrix does not
	assert.Assert(t, math.Abs(imag(m.Ybus.At(0, 0))-(-10+0.01)) < 1e-12)
	assert.Assert(t, math.Abs(-imag(m.Ybus.At(0, 1))-(-10)) < 1e-12)
}
