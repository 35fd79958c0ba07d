package modbuscomm

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/goburrow/modbus"
)

// Client is the part of modbus.Client the poller uses.
type Client interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Poller reads device measurements from, and writes set points to, one
// Modbus TCP target.
type Poller struct {
	handler   *modbus.TCPClientHandler
	registers []Register
}

// PollerConfig is the configuration format for ModbusPoller
type PollerConfig struct {
	IPAddr       string `json:"IPAddr"`
	Port         string `json:"Port"`
	SlaveID      byte   `json:"SlaveID"`
	Timeout      int    `json:"Timeout"`
	EnableLogger bool
}

type config struct {
	Poller    PollerConfig `json:"Poller"`
	Registers []Register   `json:"Registers"`
}

// New reads a JSON poller configuration.
func New(configPath string) (Poller, error) {
	jsonConfig, err := ioutil.ReadFile(configPath)
	if err != nil {
		return Poller{}, err
	}
	cfg := config{Poller: PollerConfig{Port: "502", Timeout: 1000}}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Poller{}, err
	}
	return NewPoller(cfg.Poller, cfg.Registers), nil
}

// NewPoller is a factory for the Poller struct
func NewPoller(cfg PollerConfig, registers []Register) Poller {
	handler := modbus.NewTCPClientHandler(cfg.IPAddr + ":" + cfg.Port)
	handler.Timeout = time.Millisecond * time.Duration(cfg.Timeout)
	handler.SlaveId = cfg.SlaveID

	if cfg.EnableLogger {
		handler.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}

	return Poller{
		handler:   handler,
		registers: registers,
	}
}

// Registers returns the configured register map.
func (p Poller) Registers() []Register {
	return p.registers
}

// Read returns the scaled value of every readable register by name.
func (p Poller) Read() (map[string]float64, error) {
	if err := p.handler.Connect(); err != nil {
		return nil, err
	}
	defer p.handler.Close()
	return read(modbus.NewClient(p.handler), FilterRegisters(p.registers, ro))
}

// Write sends the named values to the writable registers.
func (p Poller) Write(values map[string]float64) error {
	if err := p.handler.Connect(); err != nil {
		return err
	}
	defer p.handler.Close()
	return write(modbus.NewClient(p.handler), FilterRegisters(p.registers, wo), values)
}

// read skips registers that fail and returns the last error.
func read(client Client, registers []Register) (map[string]float64, error) {
	var err error
	values := make(map[string]float64)
	for _, register := range registers {
		resp, readErr := client.ReadHoldingRegisters(register.Address, sizeOf(register.DataType))
		if readErr != nil {
			log.Printf("[Modbus] read %s at %d: %v", register.Name, register.Address, readErr)
			err = readErr
			continue
		}
		values[register.Name] = decode(resp, register) * register.scale()
	}
	return values, err
}

func write(client Client, registers []Register, values map[string]float64) error {
	var err error
	for name, val := range values {
		i, findErr := findIndexByName(registers, name)
		if findErr != nil {
			err = findErr
			continue
		}
		reg := registers[i]
		_, writeErr := client.WriteMultipleRegisters(reg.Address, sizeOf(reg.DataType), encode(val/reg.scale(), reg))
		if writeErr != nil {
			log.Printf("[Modbus] write %s at %d: %v", reg.Name, reg.Address, writeErr)
			err = writeErr
		}
	}
	return err
}

// findIndexByName returns the index in the array of the register, if found. Returns -1 and error if not found.
func findIndexByName(registers []Register, name string) (int, error) {
	for index, register := range registers {
		if register.Name == name {
			return index, nil
		}
	}
	return -1, errors.New("register name not found in register array")
}
