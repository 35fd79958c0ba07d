/*
lpdispatch.go Dispatch service around the DC-OPF builder. Each request builds
and solves a network snapshot, keeps the results in a bounded history and
publishes them to subscribers (result sinks, web socket clients).
*/

package lpdispatch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/config"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// Summary describes the network behind a batch of results. It is published
// on the Config topic.
type Summary struct {
	Network  string      `json:"Network" bson:"network"`
	Mode     string      `json:"Mode" bson:"mode"`
	Buses    int         `json:"Buses" bson:"buses"`
	Branches int         `json:"Branches" bson:"branches"`
	Islands  int         `json:"Islands" bson:"islands"`
	Errors   []string    `json:"Errors,omitempty" bson:"errors,omitempty"`
	Results  []uuid.UUID `json:"Results" bson:"results"`
}

var _ dispatch.Dispatcher = (*LPDispatch)(nil)

type LPDispatch struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	publisher *msg.PubSub
	solver    opt.Solver
	config    config.Config
	results   map[uuid.UUID]dcopf.Results
	order     []uuid.UUID
}

// New returns a dispatcher configured by cfg. A nil solver selects the
// builder default.
func New(cfg config.Config, solver opt.Solver) (*LPDispatch, error) {
	if _, err := cfg.Options(); err != nil {
		return nil, err
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &LPDispatch{
		mux:       &sync.Mutex{},
		pid:       pid,
		publisher: msg.NewPublisher(pid),
		solver:    solver,
		config:    cfg,
		results:   make(map[uuid.UUID]dcopf.Results),
	}, nil
}

func (d *LPDispatch) PID() uuid.UUID {
	return d.pid
}

func (d *LPDispatch) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return d.publisher.Subscribe(pid, topic)
}

func (d *LPDispatch) Unsubscribe(pid uuid.UUID) {
	d.publisher.Unsubscribe(pid)
}

func (d *LPDispatch) Close() {
	d.publisher.Close()
}

// Options returns the configured builder options.
func (d *LPDispatch) Options() dcopf.Options {
	opts, _ := d.config.Options()
	return opts
}

// NewRequest returns a request for net using the configured options and steps.
func (d *LPDispatch) NewRequest(net powersystem.Network) dispatch.Request {
	return dispatch.Request{
		Network: net,
		Options: d.Options(),
		Steps:   d.config.Steps,
	}
}

// Dispatch builds and solves the request. Results are stored and published
// even when some of them are unsolved.
func (d *LPDispatch) Dispatch(ctx context.Context, req dispatch.Request) ([]dcopf.Results, error) {
	net := req.Network
	b, err := dcopf.New(net, d.solver, req.Options)
	if err != nil {
		return nil, err
	}
	if err := b.Build(); err != nil {
		return nil, err
	}

	if d.config.LPDir != "" {
		if _, err := b.SaveLP(filepath.Join(d.config.LPDir, dirName(net.Name))); err != nil {
			log.Printf("[LP Dispatch] unable to save LP files: %v", err)
		}
	}

	steps := req.Steps
	if len(steps) == 0 {
		steps = []int{powersystem.NoProfile}
	}
	results, err := b.Run(ctx, steps)

	summary := Summary{
		Network:  net.Name,
		Mode:     b.Mode().String(),
		Buses:    net.NBus(),
		Branches: net.NBranch(),
		Islands:  len(b.Islands()),
		Errors:   b.PotentialErrors(),
	}
	for _, r := range results {
		d.store(r)
		d.publisher.Publish(msg.Status, r)
		summary.Results = append(summary.Results, r.PID)
	}
	d.publisher.Publish(msg.Config, summary)

	if err != nil {
		return results, fmt.Errorf("dispatch %s: %w", net.Name, err)
	}
	return results, nil
}

func (d *LPDispatch) store(r dcopf.Results) {
	d.mux.Lock()
	defer d.mux.Unlock()
	d.results[r.PID] = r
	d.order = append(d.order, r.PID)
	limit := d.config.History
	if limit <= 0 {
		return
	}
	for len(d.order) > limit {
		delete(d.results, d.order[0])
		d.order = d.order[1:]
	}
}

// Result returns the stored result with the given PID.
func (d *LPDispatch) Result(pid uuid.UUID) (dcopf.Results, bool) {
	d.mux.Lock()
	defer d.mux.Unlock()
	r, ok := d.results[pid]
	return r, ok
}

// History returns the stored results, oldest first.
func (d *LPDispatch) History() []dcopf.Results {
	d.mux.Lock()
	defer d.mux.Unlock()
	out := make([]dcopf.Results, 0, len(d.order))
	for _, pid := range d.order {
		out = append(out, d.results[pid])
	}
	return out
}

func dirName(name string) string {
	if name == "" {
		return "network"
	}
	return filepath.Base(filepath.Clean(name))
}
