package powersystem

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/google/uuid"
)

// DefaultSbase is used when the snapshot does not declare a base power.
const DefaultSbase = 100.0

// Config is the JSON representation of a network snapshot.
type Config struct {
	Name             string                  `json:"Name"`
	Sbase            float64                 `json:"Sbase"`
	Buses            []BusConfig             `json:"Buses"`
	Branches         []BranchConfig          `json:"Branches"`
	Generators       []GeneratorConfig       `json:"Generators"`
	Batteries        []GeneratorConfig       `json:"Batteries"`
	Loads            []LoadConfig            `json:"Loads"`
	StaticGenerators []StaticGeneratorConfig `json:"StaticGenerators"`
}

// BusConfig holds the bus configuration parameters
type BusConfig struct {
	PID  string `json:"PID"`
	Name string `json:"Name"`
	Type string `json:"Type"`
}

// BranchConfig holds the branch configuration parameters
type BranchConfig struct {
	PID    string  `json:"PID"`
	Name   string  `json:"Name"`
	From   int     `json:"From"`
	To     int     `json:"To"`
	R      float64 `json:"R"`
	X      float64 `json:"X"`
	B      float64 `json:"B"`
	Rate   float64 `json:"Rate"`
	Active *bool   `json:"Active"`
}

// GeneratorConfig holds the generator and battery configuration parameters
type GeneratorConfig struct {
	PID          string    `json:"PID"`
	Name         string    `json:"Name"`
	Bus          int       `json:"Bus"`
	P            float64   `json:"P"`
	Pmin         float64   `json:"Pmin"`
	Pmax         float64   `json:"Pmax"`
	Cost         float64   `json:"Cost"`
	Active       *bool     `json:"Active"`
	Dispatchable *bool     `json:"Dispatchable"`
	Profile      []float64 `json:"Profile"`
}

// LoadConfig holds the load configuration parameters
type LoadConfig struct {
	PID     string    `json:"PID"`
	Name    string    `json:"Name"`
	Bus     int       `json:"Bus"`
	P       float64   `json:"P"`
	Active  *bool     `json:"Active"`
	Profile []float64 `json:"Profile"`
}

// StaticGeneratorConfig holds the static generator configuration parameters
type StaticGeneratorConfig struct {
	PID     string    `json:"PID"`
	Name    string    `json:"Name"`
	Bus     int       `json:"Bus"`
	P       float64   `json:"P"`
	Active  *bool     `json:"Active"`
	Profile []float64 `json:"Profile"`
}

// New returns a validated Network decoded from a JSON snapshot.
func New(jsonConfig []byte) (Network, error) {
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Network{}, err
	}
	net, err := cfg.Network()
	if err != nil {
		return Network{}, err
	}
	if err := net.Validate(); err != nil {
		return Network{}, err
	}
	return net, nil
}

// ReadFile is New on the contents of a file.
func ReadFile(path string) (Network, error) {
	jsonConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return Network{}, err
	}
	return New(jsonConfig)
}

// Network converts the configuration into a snapshot. Devices without a PID
// receive a fresh one.
func (c Config) Network() (Network, error) {
	net := Network{
		Name:  c.Name,
		Sbase: c.Sbase,
	}
	if net.Sbase == 0 {
		net.Sbase = DefaultSbase
	}

	for _, b := range c.Buses {
		pid, err := parsePID(b.PID)
		if err != nil {
			return Network{}, fmt.Errorf("bus %s: %w", b.Name, err)
		}
		t, err := ParseBusType(b.Type)
		if err != nil {
			return Network{}, fmt.Errorf("bus %s: %w", b.Name, err)
		}
		net.Buses = append(net.Buses, Bus{PID: pid, Name: b.Name, Type: t})
	}

	for _, br := range c.Branches {
		pid, err := parsePID(br.PID)
		if err != nil {
			return Network{}, fmt.Errorf("branch %s: %w", br.Name, err)
		}
		net.Branches = append(net.Branches, Branch{
			PID:    pid,
			Name:   br.Name,
			From:   br.From,
			To:     br.To,
			R:      br.R,
			X:      br.X,
			B:      br.B,
			Rate:   br.Rate,
			Active: flag(br.Active),
		})
	}

	gens, err := generators(c.Generators)
	if err != nil {
		return Network{}, err
	}
	net.Generators = gens

	bats, err := generators(c.Batteries)
	if err != nil {
		return Network{}, err
	}
	net.Batteries = bats

	for _, l := range c.Loads {
		pid, err := parsePID(l.PID)
		if err != nil {
			return Network{}, fmt.Errorf("load %s: %w", l.Name, err)
		}
		net.Loads = append(net.Loads, Load{
			PID:     pid,
			Name:    l.Name,
			Bus:     l.Bus,
			P:       l.P,
			Active:  flag(l.Active),
			Profile: l.Profile,
		})
	}

	for _, s := range c.StaticGenerators {
		pid, err := parsePID(s.PID)
		if err != nil {
			return Network{}, fmt.Errorf("static generator %s: %w", s.Name, err)
		}
		net.StaticGenerators = append(net.StaticGenerators, StaticGenerator{
			PID:     pid,
			Name:    s.Name,
			Bus:     s.Bus,
			P:       s.P,
			Active:  flag(s.Active),
			Profile: s.Profile,
		})
	}

	return net, nil
}

func generators(cfgs []GeneratorConfig) ([]Generator, error) {
	var gens []Generator
	for _, g := range cfgs {
		pid, err := parsePID(g.PID)
		if err != nil {
			return nil, fmt.Errorf("generator %s: %w", g.Name, err)
		}
		gens = append(gens, Generator{
			PID:          pid,
			Name:         g.Name,
			Bus:          g.Bus,
			P:            g.P,
			Pmin:         g.Pmin,
			Pmax:         g.Pmax,
			Cost:         g.Cost,
			Active:       flag(g.Active),
			Dispatchable: flag(g.Dispatchable),
			Profile:      g.Profile,
		})
	}
	return gens, nil
}

// flag defaults unset booleans to true.
func flag(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}

func parsePID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.NewUUID()
	}
	return uuid.Parse(s)
}
