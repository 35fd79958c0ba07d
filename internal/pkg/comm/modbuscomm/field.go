package modbuscomm

import (
	"errors"
	"fmt"

	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

var (
	ErrUnknownDevice = errors.New("register names no device in the network")
	ErrNotSolved     = errors.New("no set points from an unsolved result")
)

// Measure overwrites the scalar power of every device that has a measured
// value. Profiles are left untouched, so measurements only affect the
// scalar snapshot.
func Measure(net *powersystem.Network, registers []Register, values map[string]float64) error {
	for _, reg := range registers {
		val, ok := values[reg.Name]
		if !ok {
			continue
		}
		if !setPower(net, reg, val) {
			return fmt.Errorf("%w: %s %q", ErrUnknownDevice, reg.Kind, reg.Name)
		}
	}
	return nil
}

func setPower(net *powersystem.Network, reg Register, val float64) bool {
	switch reg.Kind {
	case LoadKind:
		for i := range net.Loads {
			if net.Loads[i].Name == reg.Name {
				net.Loads[i].P = val
				return true
			}
		}
	case StaticKind:
		for i := range net.StaticGenerators {
			if net.StaticGenerators[i].Name == reg.Name {
				net.StaticGenerators[i].P = val
				return true
			}
		}
	case GeneratorKind:
		for i := range net.Generators {
			if net.Generators[i].Name == reg.Name {
				net.Generators[i].P = val
				return true
			}
		}
	case BatteryKind:
		for i := range net.Batteries {
			if net.Batteries[i].Name == reg.Name {
				net.Batteries[i].P = val
				return true
			}
		}
	}
	return false
}

// Setpoints returns the dispatched power of the generators and batteries
// behind the writable registers.
func Setpoints(net powersystem.Network, registers []Register, r dcopf.Results) (map[string]float64, error) {
	if !r.Solved {
		return nil, ErrNotSolved
	}
	values := make(map[string]float64)
	for _, reg := range FilterRegisters(registers, wo) {
		var (
			devices []powersystem.Generator
			power   []float64
		)
		switch reg.Kind {
		case GeneratorKind:
			devices, power = net.Generators, r.Generation
		case BatteryKind:
			devices, power = net.Batteries, r.Battery
		default:
			continue
		}
		found := false
		for i, d := range devices {
			if d.Name == reg.Name && i < len(power) {
				values[reg.Name] = power[i]
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s %q", ErrUnknownDevice, reg.Kind, reg.Name)
		}
	}
	return values, nil
}
