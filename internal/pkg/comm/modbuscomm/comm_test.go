package modbuscomm

import (
	"math"
	"math/rand"
	"testing"

	"gotest.tools/v3/assert"
)

func TestEncodeU64Big(t *testing.T) {
	testReg := Register{Name: "test", DataType: u64, AccessType: ro, Endianness: bigEndian}
	bytes := encode(1234, testReg)
	assert.DeepEqual(t, bytes, []byte{0, 0, 0, 0, 0, 0, 4, 210})
}

func TestEncodeU64Little(t *testing.T) {
	testReg := Register{Name: "test", DataType: u64, AccessType: ro, Endianness: littleEndian}
	bytes := encode(1234, testReg)
	assert.DeepEqual(t, bytes, []byte{210, 4, 0, 0, 0, 0, 0, 0})
}

func TestDecodeU64(t *testing.T) {
	for _, e := range []Endian{bigEndian, littleEndian} {
		testReg := Register{Name: "test", DataType: u64, AccessType: ro, Endianness: e}
		assertVal := rand.Float64() * 1e15
		testVal := decode(encode(assertVal, testReg), testReg)
		assert.Equal(t, testVal, math.Floor(assertVal), "endian %s", e)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	for _, dt := range []DataType{i16, i32, i64} {
		testReg := Register{Name: "test", DataType: dt, Endianness: bigEndian}
		bytes := encode(-2, testReg)
		assert.Equal(t, len(bytes), int(2*sizeOf(dt)))
		assert.Equal(t, decode(bytes, testReg), -2.0, "data type %s", dt)
	}
}

func TestEncodeF32Big(t *testing.T) {
	testReg := Register{Name: "test", DataType: f32, Endianness: bigEndian}
	assert.DeepEqual(t, encode(1.5, testReg), []byte{0x3F, 0xC0, 0, 0})
}

func TestFloatRoundTrip(t *testing.T) {
	for _, dt := range []DataType{f32, f64} {
		for _, e := range []Endian{bigEndian, littleEndian} {
			testReg := Register{Name: "test", DataType: dt, Endianness: e}
			assert.Equal(t, decode(encode(-42.25, testReg), testReg), -42.25)
		}
	}
}

func TestFilterRegisters(t *testing.T) {
	regs := []Register{
		{Name: "a", AccessType: ro},
		{Name: "b", AccessType: wo},
		{Name: "c", AccessType: rw},
	}
	readable := FilterRegisters(regs, ro)
	assert.Equal(t, len(readable), 2)
	assert.Equal(t, readable[0].Name, "a")
	assert.Equal(t, readable[1].Name, "c")

	writable := FilterRegisters(regs, wo)
	assert.Equal(t, len(writable), 2)
	assert.Equal(t, writable[0].Name, "b")
}
