/*
island.go Partition of the bus/branch graph into electrically connected islands. Each
island is solved as an independent optimization problem.
*/

package island

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem/connectivity"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var (
	ErrBusPartition      = errors.New("islands do not partition the bus set")
	ErrInterIslandBranch = errors.New("active branch connects two islands")
	ErrOrphanReference   = errors.New("reference bus is not part of any island")
)

// Island is a read-only view of a connected subnetwork. Bus sets are local
// indices into Buses, which maps local to global bus indices.
type Island struct {
	Index    int
	Buses    []int
	Branches []int
	Ref      []int
	PV       []int
	PQ       []int
	PQPV     []int

	local map[int]int
}

// Decomposer produces the islands of a network.
type Decomposer func(powersystem.Network, *connectivity.Model) ([]Island, error)

// NBus returns the number of buses in the island.
func (isl Island) NBus() int { return len(isl.Buses) }

// NBranch returns the number of branches in the island.
func (isl Island) NBranch() int { return len(isl.Branches) }

// Local maps a global bus index into the island.
func (isl Island) Local(global int) (int, bool) {
	i, ok := isl.local[global]
	return i, ok
}

// Global maps a local bus index back to the network.
func (isl Island) Global(local int) int { return isl.Buses[local] }

// HasReference reports whether the island has at least one reference bus.
func (isl Island) HasReference() bool { return len(isl.Ref) > 0 }

// Decompose returns the connected components of the bus / active branch graph.
// Islands are ordered by their lowest bus index and list their buses in
// ascending order.
func Decompose(net powersystem.Network, conn *connectivity.Model) ([]Island, error) {
	g := simple.NewUndirectedGraph()
	for i := 0; i < net.NBus(); i++ {
		g.AddNode(simple.Node(i))
	}
	for k, br := range net.Branches {
		if !br.Active {
			continue
		}
		f, t := conn.BranchBuses(k)
		g.SetEdge(g.NewEdge(simple.Node(f), simple.Node(t)))
	}

	var components [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		components = append(components, nodeIDs(cc))
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})

	islands := make([]Island, len(components))
	for i, buses := range components {
		islands[i] = newIsland(i, buses, net, conn)
	}
	return islands, Validate(net, islands)
}

// Single returns the whole network as one island, regardless of connectivity.
func Single(net powersystem.Network, conn *connectivity.Model) ([]Island, error) {
	buses := make([]int, net.NBus())
	for i := range buses {
		buses[i] = i
	}
	islands := []Island{newIsland(0, buses, net, conn)}
	return islands, Validate(net, islands)
}

func nodeIDs(nodes []graph.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = int(n.ID())
	}
	sort.Ints(ids)
	return ids
}

func newIsland(index int, buses []int, net powersystem.Network, conn *connectivity.Model) Island {
	isl := Island{
		Index: index,
		Buses: buses,
		local: make(map[int]int, len(buses)),
	}
	for i, b := range buses {
		isl.local[b] = i
		switch net.Buses[b].Type {
		case powersystem.Ref:
			isl.Ref = append(isl.Ref, i)
		case powersystem.PV:
			isl.PV = append(isl.PV, i)
			isl.PQPV = append(isl.PQPV, i)
		default:
			isl.PQ = append(isl.PQ, i)
			isl.PQPV = append(isl.PQPV, i)
		}
	}
	for k, br := range net.Branches {
		if !br.Active {
			continue
		}
		f, _ := conn.BranchBuses(k)
		if _, ok := isl.local[f]; ok {
			isl.Branches = append(isl.Branches, k)
		}
	}
	return isl
}

// Validate checks the decomposition invariants: every bus belongs to exactly
// one island, no active branch spans two islands and every reference bus is
// covered.
func Validate(net powersystem.Network, islands []Island) error {
	owner := make([]int, net.NBus())
	for i := range owner {
		owner[i] = -1
	}
	for _, isl := range islands {
		for _, b := range isl.Buses {
			if b < 0 || b >= len(owner) {
				return fmt.Errorf("%w: island %d lists unknown bus %d", ErrBusPartition, isl.Index, b)
			}
			if owner[b] != -1 {
				return fmt.Errorf("%w: bus %d in islands %d and %d", ErrBusPartition, b, owner[b], isl.Index)
			}
			owner[b] = isl.Index
		}
	}

	for b, bus := range net.Buses {
		if owner[b] != -1 {
			continue
		}
		if bus.Type == powersystem.Ref {
			return fmt.Errorf("%w: bus %d (%s)", ErrOrphanReference, b, bus.Name)
		}
		return fmt.Errorf("%w: bus %d (%s) not assigned", ErrBusPartition, b, bus.Name)
	}

	for _, isl := range islands {
		for _, k := range isl.Branches {
			br := net.Branches[k]
			if owner[br.From] != isl.Index || owner[br.To] != isl.Index {
				return fmt.Errorf("%w: branch %d (%s) between islands %d and %d",
					ErrInterIslandBranch, k, br.Name, owner[br.From], owner[br.To])
			}
		}
	}
	for k, br := range net.Branches {
		if br.Active && owner[br.From] != owner[br.To] {
			return fmt.Errorf("%w: branch %d (%s) between islands %d and %d",
				ErrInterIslandBranch, k, br.Name, owner[br.From], owner[br.To])
		}
	}
	return nil
}
