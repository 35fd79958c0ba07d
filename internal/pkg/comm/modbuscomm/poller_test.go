package modbuscomm

import (
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

var errNoDevice = errors.New("modbus: exception '2' (illegal data address)")

type fakeClient struct {
	holding map[uint16][]byte
	writes  map[uint16][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		holding: make(map[uint16][]byte),
		writes:  make(map[uint16][]byte),
	}
}

func (c *fakeClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	b, ok := c.holding[address]
	if !ok || len(b) != 2*int(quantity) {
		return nil, errNoDevice
	}
	return b, nil
}

func (c *fakeClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	if len(value) != 2*int(quantity) {
		return nil, errNoDevice
	}
	c.writes[address] = value
	return value[:2], nil
}

func testPoller(t *testing.T) Poller {
	p, err := New("./modbuscomm_test_config.json")
	assert.NilError(t, err)
	return p
}

func TestNew(t *testing.T) {
	p := testPoller(t)
	assert.Equal(t, len(p.Registers()), 4)
	assert.Equal(t, p.handler.Address, "127.0.0.1:502")
	assert.Equal(t, p.handler.Timeout, time.Second)
	assert.Equal(t, p.handler.SlaveId, byte(1))
}

func TestNewMissingFile(t *testing.T) {
	_, err := New("./does_not_exist.json")
	assert.Assert(t, err != nil)
}

func TestRead(t *testing.T) {
	regs := testPoller(t).Registers()
	client := newFakeClient()
	client.holding[0] = encode(45.5, regs[0])
	client.holding[2] = encode(24, regs[1])

	values, err := read(client, FilterRegisters(regs, ro))
	assert.NilError(t, err)
	assert.DeepEqual(t, values, map[string]float64{"D1": 45.5, "PV1": 12})
}

func TestReadPartialFailure(t *testing.T) {
	regs := testPoller(t).Registers()
	client := newFakeClient()
	client.holding[0] = encode(45.5, regs[0])

	values, err := read(client, FilterRegisters(regs, ro))
	assert.ErrorIs(t, err, errNoDevice)
	assert.DeepEqual(t, values, map[string]float64{"D1": 45.5})
}

func TestWrite(t *testing.T) {
	regs := FilterRegisters(testPoller(t).Registers(), wo)
	client := newFakeClient()

	err := write(client, regs, map[string]float64{"G0": 70, "ESS1": -5})
	assert.NilError(t, err)
	assert.DeepEqual(t, client.writes[100], encode(70, regs[0]))
	assert.DeepEqual(t, client.writes[102], []byte{0xCE, 0xFF, 0xFF, 0xFF})
}

func TestWriteUnknownRegister(t *testing.T) {
	regs := FilterRegisters(testPoller(t).Registers(), wo)
	client := newFakeClient()

	err := write(client, regs, map[string]float64{"G9": 70})
	assert.ErrorContains(t, err, "register name not found")
	assert.Equal(t, len(client.writes), 0)
}
