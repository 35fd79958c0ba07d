package island

import (
	"testing"

	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem/connectivity"
	"gotest.tools/v3/assert"
)

// twoClusters has buses {0, 2, 4} and {1, 3} connected, plus an inactive
// branch between them.
func twoClusters() powersystem.Network {
	return powersystem.Network{
		Sbase: 100,
		Buses: []powersystem.Bus{
			{Name: "A0", Type: powersystem.Ref},
			{Name: "B1", Type: powersystem.PV},
			{Name: "A2"},
			{Name: "B3", Type: powersystem.Ref},
			{Name: "A4", Type: powersystem.PV},
		},
		Branches: []powersystem.Branch{
			{Name: "A0-A2", From: 0, To: 2, X: 0.1, Rate: 50, Active: true},
			{Name: "B3-B1", From: 3, To: 1, X: 0.1, Rate: 50, Active: true},
			{Name: "A4-A2", From: 4, To: 2, X: 0.1, Rate: 50, Active: true},
			{Name: "A2-B1", From: 2, To: 1, X: 0.1, Rate: 50, Active: false},
		},
	}
}

func decompose(t *testing.T, net powersystem.Network) []Island {
	islands, err := Decompose(net, connectivity.New(net))
	assert.NilError(t, err)
	return islands
}

func TestDecomposeTwoClusters(t *testing.T) {
	islands := decompose(t, twoClusters())

	assert.Equal(t, len(islands), 2)
	assert.DeepEqual(t, islands[0].Buses, []int{0, 2, 4})
	assert.DeepEqual(t, islands[1].Buses, []int{1, 3})
	assert.DeepEqual(t, islands[0].Branches, []int{0, 2})
	assert.DeepEqual(t, islands[1].Branches, []int{1})
}

func TestDecomposeIsPartition(t *testing.T) {
	net := twoClusters()
	islands := decompose(t, net)

	seen := make(map[int]int)
	for _, isl := range islands {
		for _, b := range isl.Buses {
			seen[b]++
		}
	}
	assert.Equal(t, len(seen), net.NBus())
	for b, n := range seen {
		assert.Assert(t, n == 1, "bus %d seen %d times", b, n)
	}
}

func TestDecomposeClassification(t *testing.T) {
	islands := decompose(t, twoClusters())

	a := islands[0]
	assert.DeepEqual(t, a.Ref, []int{0})
	assert.DeepEqual(t, a.PV, []int{2})
	assert.DeepEqual(t, a.PQ, []int{1})
	assert.DeepEqual(t, a.PQPV, []int{1, 2})

	local, ok := a.Local(4)
	assert.Assert(t, ok)
	assert.Equal(t, local, 2)
	assert.Equal(t, a.Global(local), 4)

	_, ok = a.Local(3)
	assert.Assert(t, !ok)
}

func TestDecomposeIsolatedBus(t *testing.T) {
	net := twoClusters()
	net.Buses = append(net.Buses, powersystem.Bus{Name: "lonely"})
	islands := decompose(t, net)

	assert.Equal(t, len(islands), 3)
	assert.DeepEqual(t, islands[2].Buses, []int{5})
	assert.Assert(t, !islands[2].HasReference())
}

func TestSingle(t *testing.T) {
	net := twoClusters()
	islands, err := Single(net, connectivity.New(net))
	assert.NilError(t, err)

	assert.Equal(t, len(islands), 1)
	assert.Equal(t, islands[0].NBus(), 5)
	assert.Equal(t, islands[0].NBranch(), 3)
	assert.DeepEqual(t, islands[0].Ref, []int{0, 3})
}

func TestValidateInterIslandBranch(t *testing.T) {
	net := twoClusters()
	net.Branches[3].Active = true
	islands := []Island{
		{Index: 0, Buses: []int{0, 2, 4}, Branches: []int{0, 2, 3}},
		{Index: 1, Buses: []int{1, 3}, Branches: []int{1}},
	}
	assert.ErrorIs(t, Validate(net, islands), ErrInterIslandBranch)
}

func TestValidateOrphanReference(t *testing.T) {
	net := twoClusters()
	islands := []Island{
		{Index: 0, Buses: []int{0, 2, 4}, Branches: []int{0, 2}},
		{Index: 1, Buses: []int{1}},
	}
	assert.ErrorIs(t, Validate(net, islands), ErrOrphanReference)
}

func TestValidateDuplicateBus(t *testing.T) {
	net := twoClusters()
	islands := []Island{
		{Index: 0, Buses: []int{0, 2, 4, 1}, Branches: []int{0, 2}},
		{Index: 1, Buses: []int{1, 3}, Branches: []int{1}},
	}
	assert.ErrorIs(t, Validate(net, islands), ErrBusPartition)
}
