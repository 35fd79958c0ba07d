package modbuscomm

import (
	"encoding/binary"
	"math"
)

// DataType defines the type of Modbus register for encoding/decoding
type DataType string

// Constants of DataType
const (
	u16 DataType = "u16"
	u32 DataType = "u32"
	u64 DataType = "u64"
	i16 DataType = "i16"
	i32 DataType = "i32"
	i64 DataType = "i64"
	f32 DataType = "f32"
	f64 DataType = "f64"
)

// Access devices the register read/write type
type Access string

const (
	ro Access = "read-only"
	wo Access = "write-only"
	rw Access = "read-write"
)

// Endian byte order of Modbus register for encoding/decoding
type Endian string

// Constants of Endian
const (
	littleEndian Endian = "little"
	bigEndian    Endian = "big"
)

// Kind is the class of network device a register belongs to.
type Kind string

// Constants of Kind
const (
	LoadKind      Kind = "load"
	StaticKind    Kind = "static"
	GeneratorKind Kind = "generator"
	BatteryKind   Kind = "battery"
)

// Register maps one network device quantity (MW) to a Modbus holding
// register. Name is the device name in the network snapshot. Raw register
// values are multiplied by Scale on read and divided by it on write; a zero
// Scale reads as 1.
type Register struct {
	Name       string   `json:"Name"`
	Kind       Kind     `json:"Kind"`
	Address    uint16   `json:"Address"`
	DataType   DataType `json:"DataType"`
	AccessType Access   `json:"Access"`
	Endianness Endian   `json:"Endianness"`
	Scale      float64  `json:"Scale"`
}

func (r Register) scale() float64 {
	if r.Scale == 0 {
		return 1
	}
	return r.Scale
}

// FilterRegisters returns registers from array with matching access type
func FilterRegisters(r []Register, a Access) []Register {
	filtered := make([]Register, 0)
	for _, reg := range r {
		if reg.AccessType == a || reg.AccessType == rw {
			filtered = append(filtered, reg)
		}
	}
	return filtered
}

// encode convert a float64 into a byte array
func encode(val float64, register Register) []byte {
	var bytes []byte
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16, i16:
		bytes = make([]byte, 2*sizeOf(u16))
		endian.PutUint16(bytes, uint16(int64(val)))
	case u32, i32:
		bytes = make([]byte, 2*sizeOf(u32))
		endian.PutUint32(bytes, uint32(int64(val)))
	case f32:
		bytes = make([]byte, 2*sizeOf(f32))
		endian.PutUint32(bytes, math.Float32bits(float32(val)))
	case u64, i64:
		bytes = make([]byte, 2*sizeOf(u64))
		endian.PutUint64(bytes, uint64(int64(val)))
	case f64:
		bytes = make([]byte, 2*sizeOf(f64))
		endian.PutUint64(bytes, math.Float64bits(val))
	}
	return bytes
}

// decode coverts byte arrays into float64s
func decode(bytes []byte, register Register) float64 {
	var n float64
	endian := getByteOrder(register.Endianness)
	switch register.DataType {
	case u16:
		n = float64(endian.Uint16(bytes))
	case i16:
		n = float64(int16(endian.Uint16(bytes)))
	case u32:
		n = float64(endian.Uint32(bytes))
	case i32:
		n = float64(int32(endian.Uint32(bytes)))
	case f32:
		n = float64(math.Float32frombits(endian.Uint32(bytes)))
	case u64:
		n = float64(endian.Uint64(bytes))
	case i64:
		n = float64(int64(endian.Uint64(bytes)))
	case f64:
		n = math.Float64frombits(endian.Uint64(bytes))
	}
	return n
}

// getByteOrder returns the correct binary.endian object for the register type
func getByteOrder(e Endian) binary.ByteOrder {
	if e == littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// sizeOf returns the number of u16 registers for the datatype
func sizeOf(t DataType) uint16 {
	switch t {
	case u16, i16:
		return 1
	case u32, i32, f32:
		return 2
	case u64, i64, f64:
		return 4
	}
	return 0
}
