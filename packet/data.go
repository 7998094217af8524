package packet

import (
	"encoding/binary"
	"errors"
)

// DataType tells how the raw payload bytes of a Data record are to be decoded
type DataType uint8

const (
	// Bit payloads pack one coil or discrete input per bit, LSB first within each byte
	Bit = DataType(iota)
	// Byte payloads carry single byte values such as the exception status register
	Byte
	// Word payloads carry big-endian 16 bit registers, two bytes per register
	Word
	// Long payloads carry big-endian 32 bit quantities assembled from register pairs
	Long
)

// MaxDataBytes is the payload capacity of a Data record: 250 bytes covers both
// the 2000 coil (250 byte) and the 125 register (250 byte) response maximums
const MaxDataBytes = 250

// Data is the typed payload extracted from a client response frame. Values
// holds raw payload bytes; Length counts logical items, not bytes.
//
// NB: the meaning of Length follows the function code of the parsed response.
// Read Coils / Read Discrete Inputs set it to the payload *byte count* while
// the register reads set it to the *register count*. This asymmetry is kept
// for compatibility with existing integrations, use the Bit and Word helpers
// to stay clear of it.
type Data struct {
	Type   DataType
	Length int
	Values [MaxDataBytes]byte
}

// ErrDataOutOfRange is error returned when a decode helper is asked for an item past the payload end
var ErrDataOutOfRange = errors.New("requested item is out of data payload range")

// Reset empties the payload record
func (d *Data) Reset() {
	d.Type = Bit
	d.Length = 0
}

// Bit returns the n-th bit of a Bit typed payload. Bits are packed LSB first:
// bit n lives in byte n/8 at position n%8.
func (d *Data) Bit(n int) (bool, error) {
	if d.Type != Bit || n < 0 || n/8 >= d.Length {
		return false, ErrDataOutOfRange
	}
	return d.Values[n/8]&(1<<(n%8)) != 0, nil
}

// Word returns the n-th big-endian register of a Word typed payload
func (d *Data) Word(n int) (uint16, error) {
	if d.Type != Word || n < 0 || n >= d.Length {
		return 0, ErrDataOutOfRange
	}
	return binary.BigEndian.Uint16(d.Values[2*n : 2*n+2]), nil
}

// Long returns the n-th big-endian 32 bit quantity of a Word or Long typed
// payload, assembled from two consecutive registers
func (d *Data) Long(n int) (uint32, error) {
	if (d.Type != Word && d.Type != Long) || n < 0 || 4*n+4 > 2*d.Length {
		return 0, ErrDataOutOfRange
	}
	return binary.BigEndian.Uint32(d.Values[4*n : 4*n+4]), nil
}
