package modbusrtu

import (
	"github.com/serialbus/modbus-rtu/packet"
)

// readBits serves Read Coils (FC01) and Read Discrete Inputs (FC02), which
// differ only in the accessor they walk.
//
// Example request: 0x11 0x01 0x00 0x13 0x00 0x25 0x0E 0x84
//
//	0x11 - server address (0)
//	0x01 - function code (1)
//	0x00 0x13 - start address (2,3)
//	0x00 0x25 - quantity of bits to read (4,5)
//	0x0E 0x84 - CRC16 (6,7)
//
// The response packs the bits LSB first: bit k of the result occupies byte
// k/8 of the payload at position k%8.
func (d *Device) readBits(f *packet.Frame, get func(address uint16) (bool, bool)) packet.ExceptionCode {
	if f.Length != 8 {
		return packet.ExceptionIllegalDataValue
	}
	start := f.Word(2)
	quantity := f.Word(4)
	if quantity == 0 || quantity > packet.MaxCoilsInReadResponse || rangeWraps(start, quantity) {
		return packet.ExceptionIllegalDataValue
	}

	byteCount := (int(quantity) + 7) / 8
	for i := 0; i < byteCount; i++ {
		f.Data[3+i] = 0
	}
	for k := 0; k < int(quantity); k++ {
		value, ok := get(start + uint16(k))
		if !ok {
			return packet.ExceptionIllegalDataAddress
		}
		if value {
			f.Data[3+k/8] |= 1 << (k % 8)
		}
	}
	f.Data[2] = uint8(byteCount)
	f.Length = 3 + byteCount
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}

// readRegisters serves Read Holding Registers (FC03) and Read Input
// Registers (FC04).
//
// Example request: 0x11 0x03 0x00 0x6B 0x00 0x03 0x76 0x87
//
//	0x11 - server address (0)
//	0x03 - function code (1)
//	0x00 0x6B - start address (2,3)
//	0x00 0x03 - quantity of registers to read (4,5)
//	0x76 0x87 - CRC16 (6,7)
//
// The response carries the registers as big-endian words after a one byte
// payload byte count.
func (d *Device) readRegisters(f *packet.Frame, get func(address uint16) (uint16, bool)) packet.ExceptionCode {
	if f.Length != 8 {
		return packet.ExceptionIllegalDataValue
	}
	start := f.Word(2)
	quantity := f.Word(4)
	if quantity == 0 || quantity > packet.MaxRegistersInReadResponse || rangeWraps(start, quantity) {
		return packet.ExceptionIllegalDataValue
	}

	for i := 0; i < int(quantity); i++ {
		value, ok := get(start + uint16(i))
		if !ok {
			return packet.ExceptionIllegalDataAddress
		}
		f.PutWord(3+2*i, value)
	}
	f.Data[2] = uint8(2 * quantity)
	f.Length = 3 + 2*int(quantity)
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}

// readExceptionStatus serves Read Exception Status (FC07). The request has
// no payload; the response carries the 8 bit exception status register.
func (d *Device) readExceptionStatus(f *packet.Frame) packet.ExceptionCode {
	if f.Length != 4 {
		return packet.ExceptionIllegalDataValue
	}
	status, ok := d.model.getExceptionStatus()
	if !ok {
		return packet.ExceptionIllegalDataAddress
	}
	f.Data[2] = status
	f.Length = 3
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}
