package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MinFrameLength is the smallest legal frame: address + function code + CRC16
	MinFrameLength = 4
	// MaxFrameLength is the RS485 ADU limit: 1 address + 253 PDU + 2 CRC
	MaxFrameLength = 256
)

var (
	// ErrInvalidCRC is error returned when frame bytes do not match the CRC carried in its last two bytes
	ErrInvalidCRC = errors.New("frame cyclic redundancy check does not match frame bytes")
	// ErrFrameTooShort is error returned when frame is below the 4 byte minimum
	ErrFrameTooShort = errors.New("frame is too short to be a Modbus RTU frame")
	// ErrFrameTooLong is error returned when an operation would grow the frame past 256 bytes
	ErrFrameTooLong = errors.New("frame would exceed maximum Modbus RTU frame length")
)

// Frame is a fixed capacity Modbus RTU frame buffer. Length is the count of
// valid bytes in Data. The zero value is an empty frame ready for use.
//
// The server dispatcher rewrites a received request into its response in this
// same buffer, so a single Frame per serial line is enough for a responder.
type Frame struct {
	Length int
	Data   [MaxFrameLength]byte
}

// Bytes returns the valid portion of the frame buffer
func (f *Frame) Bytes() []byte {
	return f.Data[:f.Length]
}

// SetBytes copies given bytes into the frame buffer
func (f *Frame) SetBytes(data []byte) error {
	if len(data) > MaxFrameLength {
		return ErrFrameTooLong
	}
	f.Length = copy(f.Data[:], data)
	return nil
}

// Address returns the server address byte of the frame
func (f *Frame) Address() uint8 {
	return f.Data[0]
}

// FunctionCode returns the function code byte of the frame, with a possible
// exception bit still set
func (f *Frame) FunctionCode() uint8 {
	return f.Data[1]
}

// IsException reports whether the frame is an exception response
func (f *Frame) IsException() bool {
	return f.Data[1]&functionCodeErrorBitmask != 0
}

// ExceptionCode returns the exception code carried by an exception response
// frame. Only meaningful when IsException reports true.
func (f *Frame) ExceptionCode() ExceptionCode {
	return ExceptionCode(f.Data[2])
}

// Word reads the big-endian 16 bit quantity at given offset
func (f *Frame) Word(offset int) uint16 {
	return binary.BigEndian.Uint16(f.Data[offset : offset+2])
}

// PutWord writes value as big-endian 16 bit quantity at given offset
func (f *Frame) PutWord(offset int, value uint16) {
	binary.BigEndian.PutUint16(f.Data[offset:offset+2], value)
}

// CRC16 computes the checksum over the frame contents excluding its trailing
// CRC field, i.e. over Data[0:Length-2]
func (f *Frame) CRC16() (uint16, error) {
	if f.Length < 2 {
		return 0, ErrFrameTooShort
	}
	return CRC16(f.Data[:f.Length-2]), nil
}

// AppendCRC computes the checksum over the current frame contents and appends
// it, growing the frame by two bytes
func (f *Frame) AppendCRC() error {
	if f.Length < 2 {
		return ErrFrameTooShort
	}
	if f.Length+2 > MaxFrameLength {
		return ErrFrameTooLong
	}
	binary.BigEndian.PutUint16(f.Data[f.Length:f.Length+2], CRC16(f.Data[:f.Length]))
	f.Length += 2
	return nil
}

// VerifyCRC recomputes the checksum over the frame contents and compares it
// against the CRC carried in the last two bytes
func (f *Frame) VerifyCRC() error {
	if f.Length < MinFrameLength {
		return ErrFrameTooShort
	}
	if binary.BigEndian.Uint16(f.Data[f.Length-2:f.Length]) != CRC16(f.Data[:f.Length-2]) {
		return ErrInvalidCRC
	}
	return nil
}

// String formats the frame for diagnostics output
func (f *Frame) String() string {
	return fmt.Sprintf("% X", f.Data[:f.Length])
}
