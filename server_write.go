package modbusrtu

import (
	"github.com/serialbus/modbus-rtu/packet"
)

const (
	coilOff = uint16(0x0000)
	coilOn  = uint16(0xFF00)
)

// writeSingleCoil serves Write Single Coil (FC05).
//
// Example request: 0x11 0x05 0x00 0xAC 0xFF 0x00 0x4E 0x8B
//
//	0x11 - server address (0)
//	0x05 - function code (1)
//	0x00 0xAC - coil address (2,3)
//	0xFF 0x00 - coil value, 0xFF00 is on and 0x0000 is off (4,5)
//	0x4E 0x8B - CRC16 (6,7)
//
// The success response echoes the request unchanged.
func (d *Device) writeSingleCoil(f *packet.Frame) packet.ExceptionCode {
	if f.Length != 8 {
		return packet.ExceptionIllegalDataValue
	}
	address := f.Word(2)
	value := f.Word(4)
	if value != coilOff && value != coilOn {
		return packet.ExceptionIllegalDataValue
	}
	if !d.model.setCoil(address, value == coilOn) {
		return packet.ExceptionIllegalDataAddress
	}
	// echo of the request with a fresh CRC
	f.Length = 6
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}

// presetSingleRegister serves Preset Single Register (FC06). Any 16 bit value
// is acceptable; the success response echoes the request unchanged.
func (d *Device) presetSingleRegister(f *packet.Frame) packet.ExceptionCode {
	if f.Length != 8 {
		return packet.ExceptionIllegalDataValue
	}
	address := f.Word(2)
	value := f.Word(4)
	if !d.model.setHoldingRegister(address, value) {
		return packet.ExceptionIllegalDataAddress
	}
	f.Length = 6
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}

// presetMultipleRegisters serves Preset Multiple Registers (FC16).
//
// Request layout:
//
//	0x11 - server address (0)
//	0x10 - function code (1)
//	0x00 0x01 - start address (2,3)
//	0x00 0x02 - quantity of registers to write (4,5)
//	0x04 - byte count, 2 per register (6)
//	0x00 0x0A 0x01 0x02 - register values (7..10)
//	.... - CRC16 (11,12)
//
// The success response is the first six request bytes (address, function
// code, start address, quantity) with a fresh CRC.
func (d *Device) presetMultipleRegisters(f *packet.Frame) packet.ExceptionCode {
	if f.Length < 11 { // at least one register: 7 header + 2 payload + 2 CRC
		return packet.ExceptionIllegalDataValue
	}
	start := f.Word(2)
	quantity := f.Word(4)
	byteCount := int(f.Data[6])
	if quantity == 0 || quantity > packet.MaxRegistersInWriteRequest || rangeWraps(start, quantity) {
		return packet.ExceptionIllegalDataValue
	}
	if byteCount != 2*int(quantity) || f.Length != 9+byteCount {
		return packet.ExceptionIllegalDataValue
	}

	for i := 0; i < int(quantity); i++ {
		if !d.model.setHoldingRegister(start+uint16(i), f.Word(7+2*i)) {
			return packet.ExceptionIllegalDataAddress
		}
	}
	// response keeps bytes 0..5 of the request: address, fc, start, quantity
	f.Length = 6
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}

// readWriteMultipleRegisters serves Read/Write Multiple Registers (FC23).
// The write is performed before the read so a client can atomically modify
// and observe; the response is shaped like a Read Holding Registers response
// carrying the registers read after the write.
//
// Request layout:
//
//	0x11 - server address (0)
//	0x17 - function code (1)
//	.... - read start address (2,3)
//	.... - quantity of registers to read (4,5)
//	.... - write start address (6,7)
//	.... - quantity of registers to write (8,9)
//	.... - write byte count, 2 per register (10)
//	.... - write register values (11..)
//	.... - CRC16 (n-2,n-1)
func (d *Device) readWriteMultipleRegisters(f *packet.Frame) packet.ExceptionCode {
	if f.Length < 15 { // at least one written register: 11 header + 2 payload + 2 CRC
		return packet.ExceptionIllegalDataValue
	}
	readStart := f.Word(2)
	readQuantity := f.Word(4)
	writeStart := f.Word(6)
	writeQuantity := f.Word(8)
	byteCount := int(f.Data[10])
	if readQuantity == 0 || readQuantity > packet.MaxRegistersInReadResponse || rangeWraps(readStart, readQuantity) {
		return packet.ExceptionIllegalDataValue
	}
	if writeQuantity == 0 || writeQuantity > packet.MaxRegistersInReadWriteWrite || rangeWraps(writeStart, writeQuantity) {
		return packet.ExceptionIllegalDataValue
	}
	if byteCount != 2*int(writeQuantity) || f.Length != 13+byteCount {
		return packet.ExceptionIllegalDataValue
	}

	// writes first, then reads
	for i := 0; i < int(writeQuantity); i++ {
		if !d.model.setHoldingRegister(writeStart+uint16(i), f.Word(11+2*i)) {
			return packet.ExceptionIllegalDataAddress
		}
	}
	for i := 0; i < int(readQuantity); i++ {
		value, ok := d.model.getHoldingRegister(readStart + uint16(i))
		if !ok {
			return packet.ExceptionIllegalDataAddress
		}
		f.PutWord(3+2*i, value)
	}
	f.Data[2] = uint8(2 * readQuantity)
	f.Length = 3 + 2*int(readQuantity)
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}
