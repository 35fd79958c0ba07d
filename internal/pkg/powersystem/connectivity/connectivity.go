/*
connectivity.go Incidence and admittance matrices of a network snapshot. The model is
computed once and is read-only afterwards, so islands solved concurrently may share it.
*/

package connectivity

import (
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// Model caches the topological matrices of a network.
type Model struct {
	NBus    int
	NBranch int

	// device x bus incidence
	CGen    *Sparse[float64]
	CBat    *Sparse[float64]
	CLoad   *Sparse[float64]
	CStaGen *Sparse[float64]

	// branch x bus incidence of the from and to ends
	Cf *Sparse[float64]
	Ct *Sparse[float64]

	// Ybus is the complex bus admittance matrix of the active branches,
	// including line charging.
	Ybus *Sparse[complex128]

	// B is the DC susceptance matrix, -Im(Ybus) over the series elements only.
	// It has a positive diagonal so that P = B·θ.
	B *Sparse[float64]

	// BBranch is the series susceptance of every branch, zero when inactive.
	BBranch []float64

	genAtBus    [][]int
	batAtBus    [][]int
	loadAtBus   [][]int
	staGenAtBus [][]int
}

// New builds the connectivity model. The network is expected to be valid.
func New(net powersystem.Network) *Model {
	nbus, nbr := net.NBus(), net.NBranch()
	m := &Model{
		NBus:    nbus,
		NBranch: nbr,
		BBranch: make([]float64, nbr),
	}

	genBus := make([]int, len(net.Generators))
	for i, g := range net.Generators {
		genBus[i] = g.Bus
	}
	batBus := make([]int, len(net.Batteries))
	for i, g := range net.Batteries {
		batBus[i] = g.Bus
	}
	loadBus := make([]int, len(net.Loads))
	for i, l := range net.Loads {
		loadBus[i] = l.Bus
	}
	staBus := make([]int, len(net.StaticGenerators))
	for i, s := range net.StaticGenerators {
		staBus[i] = s.Bus
	}

	m.CGen = incidence(genBus, nbus)
	m.CBat = incidence(batBus, nbus)
	m.CLoad = incidence(loadBus, nbus)
	m.CStaGen = incidence(staBus, nbus)

	from := make([]int, nbr)
	to := make([]int, nbr)
	var y []Triplet[complex128]
	var b []Triplet[float64]
	for k, br := range net.Branches {
		from[k], to[k] = br.From, br.To
		if !br.Active {
			continue
		}
		ys := 1 / complex(br.R, br.X)
		yc := complex(0, br.B/2)
		f, t := br.From, br.To
		y = append(y,
			Triplet[complex128]{f, f, ys + yc},
			Triplet[complex128]{t, t, ys + yc},
			Triplet[complex128]{f, t, -ys},
			Triplet[complex128]{t, f, -ys},
		)

		bs := -imag(ys)
		m.BBranch[k] = bs
		b = append(b,
			Triplet[float64]{f, f, bs},
			Triplet[float64]{t, t, bs},
			Triplet[float64]{f, t, -bs},
			Triplet[float64]{t, f, -bs},
		)
	}
	m.Cf = incidence(from, nbus)
	m.Ct = incidence(to, nbus)
	m.Ybus = NewSparse(nbus, nbus, y)
	m.B = NewSparse(nbus, nbus, b)

	m.genAtBus = BusDevices(m.CGen)
	m.batAtBus = BusDevices(m.CBat)
	m.loadAtBus = BusDevices(m.CLoad)
	m.staGenAtBus = BusDevices(m.CStaGen)

	return m
}

// incidence returns a len(bus) x nbus 0/1 matrix with a one at (i, bus[i]).
func incidence(bus []int, nbus int) *Sparse[float64] {
	entries := make([]Triplet[float64], len(bus))
	for i, b := range bus {
		entries[i] = Triplet[float64]{Row: i, Col: b, Value: 1}
	}
	return NewSparse(len(bus), nbus, entries)
}

// BusDevices inverts a device x bus incidence matrix into the ascending device
// indices attached to each bus.
func BusDevices(c *Sparse[float64]) [][]int {
	ct := c.Transpose()
	nbus, _ := ct.Dims()
	devices := make([][]int, nbus)
	for i := 0; i < nbus; i++ {
		ct.DoRowNonZero(i, func(dev int, v float64) {
			if v != 0 {
				devices[i] = append(devices[i], dev)
			}
		})
	}
	return devices
}

// GeneratorsAt returns the generator indices attached to bus.
func (m *Model) GeneratorsAt(bus int) []int { return m.genAtBus[bus] }

// BatteriesAt returns the battery indices attached to bus.
func (m *Model) BatteriesAt(bus int) []int { return m.batAtBus[bus] }

// LoadsAt returns the load indices attached to bus.
func (m *Model) LoadsAt(bus int) []int { return m.loadAtBus[bus] }

// StaticGeneratorsAt returns the static generator indices attached to bus.
func (m *Model) StaticGeneratorsAt(bus int) []int { return m.staGenAtBus[bus] }

// BranchBuses returns the from and to bus of branch k, read from the incidence matrices.
func (m *Model) BranchBuses(k int) (int, int) {
	return m.Cf.RowIndices(k)[0], m.Ct.RowIndices(k)[0]
}
