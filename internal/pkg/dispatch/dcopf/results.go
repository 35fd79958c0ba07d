package dcopf

import (
	"math"
	"math/cmplx"

	"github.com/google/uuid"
	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// Results of one solve in physical units (MW). Numeric fields are only
// meaningful when Solved is true, otherwise they are zero.
type Results struct {
	PID       uuid.UUID    `json:"PID" bson:"pid"`
	Network   string       `json:"Network" bson:"network"`
	Mode      string       `json:"Mode" bson:"mode"`
	Time      int          `json:"Time" bson:"time"`
	Solved    bool         `json:"Solved" bson:"solved"`
	Status    string       `json:"Status" bson:"status"`
	Objective float64      `json:"Objective" bson:"objective"`
	Errors    []string     `json:"Errors,omitempty" bson:"errors,omitempty"`
	Voltage   []complex128 `json:"-" bson:"-"`
	// VoltageRI is Voltage as [re, im] pairs for the encoders.
	VoltageRI [][2]float64 `json:"Voltage" bson:"voltage"`

	Angle      []float64      `json:"Angle" bson:"angle"`
	BusShed    []float64      `json:"BusShed" bson:"bus_shed"`
	LoadShed   []float64      `json:"LoadShed" bson:"load_shed"`
	Generation []float64      `json:"Generation" bson:"generation"`
	Battery    []float64      `json:"Battery" bson:"battery"`
	BranchFlow []float64      `json:"BranchFlow" bson:"branch_flow"`
	Loading    []float64      `json:"Loading" bson:"loading"`
	Overload   []float64      `json:"Overload" bson:"overload"`
	Islands    []IslandResult `json:"Islands" bson:"islands"`
}

// IslandResult is the solver outcome of one island.
type IslandResult struct {
	Index     int     `json:"Index" bson:"index"`
	Buses     []int   `json:"Buses" bson:"buses"`
	Status    string  `json:"Status" bson:"status"`
	Objective float64 `json:"Objective" bson:"objective"`
}

// Results returns a copy of the last solve results.
func (b *Builder) Results() Results {
	r := b.results
	r.Errors = append([]string(nil), r.Errors...)
	r.Voltage = append([]complex128(nil), r.Voltage...)
	r.VoltageRI = append([][2]float64(nil), r.VoltageRI...)
	r.Angle = append([]float64(nil), r.Angle...)
	r.BusShed = append([]float64(nil), r.BusShed...)
	r.LoadShed = append([]float64(nil), r.LoadShed...)
	r.Generation = append([]float64(nil), r.Generation...)
	r.Battery = append([]float64(nil), r.Battery...)
	r.BranchFlow = append([]float64(nil), r.BranchFlow...)
	r.Loading = append([]float64(nil), r.Loading...)
	r.Overload = append([]float64(nil), r.Overload...)
	r.Islands = append([]IslandResult(nil), r.Islands...)
	return r
}

// unsolved returns zeroed results carrying the status of each island.
func (b *Builder) unsolved(status opt.Status, sols []opt.Solution) Results {
	net := b.net
	r := Results{
		PID:        newRunPID(),
		Network:    net.Name,
		Mode:       b.opts.Mode.String(),
		Time:       b.t,
		Status:     status.String(),
		Errors:     b.PotentialErrors(),
		Voltage:    make([]complex128, net.NBus()),
		VoltageRI:  make([][2]float64, net.NBus()),
		Angle:      make([]float64, net.NBus()),
		BusShed:    make([]float64, net.NBus()),
		LoadShed:   make([]float64, len(net.Loads)),
		Generation: make([]float64, len(net.Generators)),
		Battery:    make([]float64, len(net.Batteries)),
		BranchFlow: make([]float64, net.NBranch()),
		Loading:    make([]float64, net.NBranch()),
		Overload:   make([]float64, net.NBranch()),
		Islands:    make([]IslandResult, len(b.islands)),
	}
	for i, isl := range b.islands {
		r.Islands[i] = IslandResult{
			Index:     isl.Index,
			Buses:     append([]int(nil), isl.Buses...),
			Status:    sols[i].Status.String(),
			Objective: sols[i].Objective,
		}
	}
	return r
}

// extract converts optimal island solutions into physical results.
func (b *Builder) extract(sols []opt.Solution) Results {
	net := b.net
	r := b.unsolved(opt.Optimal, sols)
	r.Solved = true

	for _, sol := range sols {
		r.Objective += sol.Objective
	}

	value := func(bus int, v opt.Var) float64 {
		return sols[b.islandOf[bus]].Value(v)
	}

	for i, bus := range net.Buses {
		theta := value(i, b.theta[i])
		if bus.Type == powersystem.Ref {
			// held by ct_slack_theta
			theta = 0
		}
		r.Angle[i] = theta
		r.Voltage[i] = cmplx.Exp(complex(0, theta))
		r.VoltageRI[i] = [2]float64{real(r.Voltage[i]), imag(r.Voltage[i])}
	}

	for i, g := range net.Generators {
		r.Generation[i] = b.power(g.Active, g.Dispatchable, value(g.Bus, b.genP[i]), g.Power(b.t))
	}
	for i, g := range net.Batteries {
		r.Battery[i] = b.power(g.Active, g.Dispatchable, value(g.Bus, b.batP[i]), g.Power(b.t))
	}

	if b.opts.Mode == LoadShedding {
		for i, l := range net.Loads {
			shed := value(l.Bus, b.shed[i]) * net.Sbase
			r.LoadShed[i] = shed
			r.BusShed[l.Bus] += shed
		}
	}

	for k, br := range net.Branches {
		if !br.Active {
			continue
		}
		f, t := b.conn.BranchBuses(k)
		flow := b.conn.BBranch[k] * (r.Angle[f] - r.Angle[t]) * net.Sbase
		r.BranchFlow[k] = flow
		if br.Rate > b.opts.Tolerance {
			r.Loading[k] = math.Abs(flow) / br.Rate
		}
		if b.opts.Mode == OverloadSlack {
			for _, s := range b.slack[k] {
				r.Overload[k] += value(f, s) * net.Sbase
			}
		}
	}
	return r
}

func (b *Builder) power(active, dispatchable bool, pu, fixed float64) float64 {
	switch {
	case !active:
		return 0
	case dispatchable:
		return pu * b.net.Sbase
	}
	return fixed
}
