package powersystem

import (
	"io/ioutil"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func newTestNetwork(t *testing.T) Network {
	jsonConfig, err := ioutil.ReadFile("./powersystem_test_config.json")
	if err != nil {
		t.Fatal(err)
	}
	net, err := New(jsonConfig)
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestNew(t *testing.T) {
	net := newTestNetwork(t)

	assert.Equal(t, net.Name, "TEST_Three Bus")
	assert.Equal(t, net.Sbase, 100.0)
	assert.Equal(t, net.NBus(), 3)
	assert.Equal(t, net.NBranch(), 2)
	assert.Equal(t, net.Buses[0].Type, Ref)
	assert.Equal(t, net.Buses[1].Type, PQ)
}

func TestNewDefaults(t *testing.T) {
	net := newTestNetwork(t)

	assert.Assert(t, net.Branches[0].Active)
	assert.Assert(t, net.Generators[0].Active)
	assert.Assert(t, net.Generators[0].Dispatchable)
	assert.Assert(t, !net.StaticGenerators[0].Active)
	for _, b := range net.Buses {
		assert.Assert(t, b.PID != uuid.Nil)
	}
}

func TestNewDefaultSbase(t *testing.T) {
	net, err := New([]byte(`{"Buses": [{"Name": "B0", "Type": "REF"}]}`))
	assert.NilError(t, err)
	assert.Equal(t, net.Sbase, DefaultSbase)
}

func TestNewKeepsPID(t *testing.T) {
	pid := uuid.New()
	net, err := New([]byte(`{"Buses": [{"PID": "` + pid.String() + `", "Name": "B0"}]}`))
	assert.NilError(t, err)
	assert.Equal(t, net.Buses[0].PID, pid)
}

func TestNewBadBusType(t *testing.T) {
	_, err := New([]byte(`{"Buses": [{"Name": "B0", "Type": "XX"}]}`))
	assert.ErrorIs(t, err, ErrUnknownBusType)
}

func TestProfilePower(t *testing.T) {
	net := newTestNetwork(t)

	assert.Equal(t, net.Steps(), 3)
	assert.Equal(t, net.Loads[0].Power(NoProfile), 40.0)
	assert.Equal(t, net.Loads[0].Power(1), 50.0)
	assert.Equal(t, net.Loads[1].Power(2), 20.0)
	assert.Equal(t, net.Generators[0].Power(1), 0.0)

	assert.NilError(t, net.CheckTimeIndex(NoProfile))
	assert.NilError(t, net.CheckTimeIndex(2))
	assert.ErrorIs(t, net.CheckTimeIndex(3), ErrProfileIndex)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		modify func(n *Network)
		err    error
	}{
		{"base", func(n *Network) { n.Sbase = 0 }, ErrBaseMVA},
		{"no buses", func(n *Network) { n.Buses = nil }, ErrNoBuses},
		{"branch bus", func(n *Network) { n.Branches[0].To = 7 }, ErrUnknownBus},
		{"self loop", func(n *Network) { n.Branches[0].To = 0 }, ErrSelfLoop},
		{"impedance", func(n *Network) { n.Branches[1].X = 0 }, ErrZeroImpedance},
		{"limits", func(n *Network) { n.Generators[0].Pmin = 200 }, ErrLimits},
		{"load bus", func(n *Network) { n.Loads[0].Bus = -1 }, ErrUnknownBus},
		{"profile", func(n *Network) { n.Loads[0].Profile = []float64{1} }, ErrProfileLength},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			net := newTestNetwork(t)
			c.modify(&net)
			assert.ErrorIs(t, net.Validate(), c.err)
		})
	}
}
