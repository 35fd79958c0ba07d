package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ohowland/cgc_opf/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/cgc_opf/internal/pkg/config"
	"github.com/ohowland/cgc_opf/internal/pkg/database/mongodb"
	"github.com/ohowland/cgc_opf/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/cgc_opf/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

type sink interface {
	Process()
	Done() <-chan struct{}
}

// drainTimeout bounds the wait for sinks to write the last results.
const drainTimeout = 30 * time.Second

func main() {
	networkPath := flag.String("network", "./config/network/three_bus.json", "network snapshot (JSON)")
	configPath := flag.String("config", "", "run configuration (YAML)")
	step := flag.Int("t", powersystem.NoProfile, "profile index to solve")
	series := flag.Bool("series", false, "solve every profile index")
	lpDir := flag.String("lp", "", "write the LP of every island into this directory")
	flag.Parse()

	log.Println("[Main] Starting CGC_OPF v0.1.0")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("[Main] ", err)
	}
	if *lpDir != "" {
		cfg.LPDir = *lpDir
	}

	log.Println("[Main] Reading Network")
	net, err := powersystem.ReadFile(*networkPath)
	if err != nil {
		log.Fatal("[Main] ", err)
	}

	var field *modbuscomm.Poller
	if cfg.Telemetry != "" {
		log.Println("[Main] Reading Telemetry")
		p, err := measure(cfg.Telemetry, &net)
		if err != nil {
			log.Fatal("[Main] ", err)
		}
		field = &p
	}

	log.Println("[Main] Building Dispatcher")
	d, err := lpdispatch.New(cfg, nil)
	if err != nil {
		log.Fatal("[Main] ", err)
	}

	log.Println("[Main] Connecting Sinks")
	sinks, err := linkSinks(cfg.Sinks, d)
	if err != nil {
		log.Fatal("[Main] ", err)
	}

	req := d.NewRequest(net)
	switch {
	case *series:
		req.Steps = nil
		for t := 0; t < net.Steps(); t++ {
			req.Steps = append(req.Steps, t)
		}
	case *step != powersystem.NoProfile:
		req.Steps = []int{*step}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results, err := d.Dispatch(ctx, req)
	report(os.Stdout, net, results)

	if field != nil && err == nil && len(results) > 0 {
		if werr := writeSetpoints(*field, net, results[len(results)-1]); werr != nil {
			log.Println("[Main] set points not written:", werr)
		}
	}

	d.Close()
	waitSinks(sinks, drainTimeout)

	if err != nil {
		log.Fatal("[Main] ", err)
	}
	log.Println("[Main] Done")
}

func linkSinks(cfg config.Sinks, system msg.Publisher) ([]sink, error) {
	var sinks []sink
	if cfg.Mongo != "" {
		h, err := mongodb.New(cfg.Mongo, system)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, h)
	}
	if cfg.NATS != "" {
		h, err := natshandler.New(cfg.NATS, system)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, h)
	}
	if cfg.SQL != "" {
		h, err := sqldb.New(cfg.SQL, system)
		if err != nil {
			return sinks, err
		}
		sinks = append(sinks, h)
	}
	for _, s := range sinks {
		go s.Process()
	}
	return sinks, nil
}

// waitSinks returns when every sink has processed its inbox, or after timeout.
func waitSinks(sinks []sink, timeout time.Duration) {
	deadline := time.After(timeout)
	for _, s := range sinks {
		select {
		case <-s.Done():
		case <-deadline:
			log.Println("[Main] sinks did not finish writing in", timeout)
			return
		}
	}
}

// measure overwrites the snapshot with the field measurements. An unreachable
// target leaves the snapshot as read from file.
func measure(path string, net *powersystem.Network) (modbuscomm.Poller, error) {
	p, err := modbuscomm.New(path)
	if err != nil {
		return p, err
	}
	values, err := p.Read()
	if err != nil {
		log.Println("[Main] telemetry read:", err)
	}
	return p, modbuscomm.Measure(net, p.Registers(), values)
}

func writeSetpoints(p modbuscomm.Poller, net powersystem.Network, r dcopf.Results) error {
	values, err := modbuscomm.Setpoints(net, p.Registers(), r)
	if err != nil {
		return err
	}
	return p.Write(values)
}

func report(w io.Writer, net powersystem.Network, results []dcopf.Results) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, r := range results {
		fmt.Fprintf(tw, "%s\tt=%d\t%s\t%s\tobjective %.4f\n", r.Network, r.Time, r.Mode, r.Status, r.Objective)
		for _, e := range r.Errors {
			fmt.Fprintf(tw, "  potential error:\t%s\n", e)
		}
		if !r.Solved {
			continue
		}
		fmt.Fprintln(tw, "  bus\tangle [rad]\tshed [MW]")
		for i, bus := range net.Buses {
			fmt.Fprintf(tw, "  %s\t%.5f\t%.3f\n", bus.Name, r.Angle[i], r.BusShed[i])
		}
		fmt.Fprintln(tw, "  branch\tflow [MW]\tloading\toverload [MW]")
		for k, br := range net.Branches {
			fmt.Fprintf(tw, "  %s\t%.3f\t%.3f\t%.3f\n", br.Name, r.BranchFlow[k], r.Loading[k], r.Overload[k])
		}
		fmt.Fprintln(tw, "  generator\tP [MW]")
		for i, g := range net.Generators {
			fmt.Fprintf(tw, "  %s\t%.3f\n", g.Name, r.Generation[i])
		}
		for i, g := range net.Batteries {
			fmt.Fprintf(tw, "  %s\t%.3f\n", g.Name, r.Battery[i])
		}
	}
}
