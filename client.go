package modbusrtu

import (
	"fmt"

	"github.com/serialbus/modbus-rtu/packet"
)

// Request builders. Every builder fills the supplied frame with a complete
// request (address, function code, payload, CRC) for one supported function
// code. Builders are only available in the client role; a server device must
// not originate requests.

func (d *Device) buildHeader(f *packet.Frame, server uint8, functionCode uint8) error {
	if d.role != RoleClient {
		return ErrWrongRole
	}
	if server > packet.AddressMonoDrop {
		return fmt.Errorf("target server address is out of range (0-248): %v", server)
	}
	f.Data[0] = server
	f.Data[1] = functionCode
	f.Length = 2
	return nil
}

func (d *Device) buildReadRequest(f *packet.Frame, server uint8, functionCode uint8, start uint16, quantity uint16) error {
	if err := d.buildHeader(f, server, functionCode); err != nil {
		return err
	}
	f.PutWord(2, start)
	f.PutWord(4, quantity)
	f.Length = 6
	return f.AppendCRC()
}

// ReadCoils builds a Read Coils (FC01) request for quantity coils starting
// at given address
func (d *Device) ReadCoils(server uint8, start uint16, quantity uint16, f *packet.Frame) error {
	if quantity == 0 || quantity > packet.MaxCoilsInReadResponse {
		return fmt.Errorf("quantity is out of range (1-2000): %v", quantity)
	}
	return d.buildReadRequest(f, server, packet.FunctionReadCoils, start, quantity)
}

// ReadDiscreteInputs builds a Read Discrete Inputs (FC02) request
func (d *Device) ReadDiscreteInputs(server uint8, start uint16, quantity uint16, f *packet.Frame) error {
	if quantity == 0 || quantity > packet.MaxCoilsInReadResponse {
		return fmt.Errorf("quantity is out of range (1-2000): %v", quantity)
	}
	return d.buildReadRequest(f, server, packet.FunctionReadDiscreteInputs, start, quantity)
}

// ReadHoldingRegisters builds a Read Holding Registers (FC03) request
func (d *Device) ReadHoldingRegisters(server uint8, start uint16, quantity uint16, f *packet.Frame) error {
	if quantity == 0 || quantity > packet.MaxRegistersInReadResponse {
		return fmt.Errorf("quantity is out of range (1-125): %v", quantity)
	}
	return d.buildReadRequest(f, server, packet.FunctionReadHoldingRegisters, start, quantity)
}

// ReadInputRegisters builds a Read Input Registers (FC04) request
func (d *Device) ReadInputRegisters(server uint8, start uint16, quantity uint16, f *packet.Frame) error {
	if quantity == 0 || quantity > packet.MaxRegistersInReadResponse {
		return fmt.Errorf("quantity is out of range (1-125): %v", quantity)
	}
	return d.buildReadRequest(f, server, packet.FunctionReadInputRegisters, start, quantity)
}

// WriteSingleCoil builds a Write Single Coil (FC05) request. The on value is
// put on the wire as 0xFF00 and off as 0x0000.
func (d *Device) WriteSingleCoil(server uint8, address uint16, value bool, f *packet.Frame) error {
	if err := d.buildHeader(f, server, packet.FunctionWriteSingleCoil); err != nil {
		return err
	}
	f.PutWord(2, address)
	wireValue := coilOff
	if value {
		wireValue = coilOn
	}
	f.PutWord(4, wireValue)
	f.Length = 6
	return f.AppendCRC()
}

// PresetSingleRegister builds a Preset Single Register (FC06) request
func (d *Device) PresetSingleRegister(server uint8, address uint16, value uint16, f *packet.Frame) error {
	if err := d.buildHeader(f, server, packet.FunctionWriteSingleRegister); err != nil {
		return err
	}
	f.PutWord(2, address)
	f.PutWord(4, value)
	f.Length = 6
	return f.AppendCRC()
}

// ReadExceptionStatus builds a Read Exception Status (FC07) request. The
// request carries no payload.
func (d *Device) ReadExceptionStatus(server uint8, f *packet.Frame) error {
	if err := d.buildHeader(f, server, packet.FunctionReadExceptionStatus); err != nil {
		return err
	}
	return f.AppendCRC()
}

// Diagnostic builds a Diagnostics (FC08) request for given subfunction
func (d *Device) Diagnostic(server uint8, sub packet.DiagnosticSub, data uint16, f *packet.Frame) error {
	if !packet.IsSupportedDiagnosticSub(sub) {
		return fmt.Errorf("unsupported diagnostic subfunction: %v", uint16(sub))
	}
	if err := d.buildHeader(f, server, packet.FunctionDiagnostic); err != nil {
		return err
	}
	f.PutWord(2, uint16(sub))
	f.PutWord(4, data)
	f.Length = 6
	return f.AppendCRC()
}

// PresetMultipleRegisters builds a Preset Multiple Registers (FC16) request
// writing given values to consecutive registers from start upward
func (d *Device) PresetMultipleRegisters(server uint8, start uint16, values []uint16, f *packet.Frame) error {
	quantity := len(values)
	if quantity == 0 || quantity > int(packet.MaxRegistersInWriteRequest) {
		return fmt.Errorf("register count is out of range (1-123): %v", quantity)
	}
	if err := d.buildHeader(f, server, packet.FunctionWriteMultipleRegisters); err != nil {
		return err
	}
	f.PutWord(2, start)
	f.PutWord(4, uint16(quantity))
	f.Data[6] = uint8(2 * quantity)
	for i, value := range values {
		f.PutWord(7+2*i, value)
	}
	f.Length = 7 + 2*quantity
	return f.AppendCRC()
}

// ReadWriteMultipleRegisters builds a Read/Write Multiple Registers (FC23)
// request: values are written to consecutive registers from writeStart, then
// readQuantity registers from readStart are returned, in that order on the
// server
func (d *Device) ReadWriteMultipleRegisters(server uint8, readStart uint16, readQuantity uint16, writeStart uint16, values []uint16, f *packet.Frame) error {
	if readQuantity == 0 || readQuantity > packet.MaxRegistersInReadResponse {
		return fmt.Errorf("read register count is out of range (1-125): %v", readQuantity)
	}
	writeQuantity := len(values)
	if writeQuantity == 0 || writeQuantity > int(packet.MaxRegistersInReadWriteWrite) {
		return fmt.Errorf("write register count is out of range (1-121): %v", writeQuantity)
	}
	if err := d.buildHeader(f, server, packet.FunctionReadWriteMultipleRegisters); err != nil {
		return err
	}
	f.PutWord(2, readStart)
	f.PutWord(4, readQuantity)
	f.PutWord(6, writeStart)
	f.PutWord(8, uint16(writeQuantity))
	f.Data[10] = uint8(2 * writeQuantity)
	for i, value := range values {
		f.PutWord(11+2*i, value)
	}
	f.Length = 11 + 2*writeQuantity
	return f.AppendCRC()
}

// ParseResponse extracts the typed payload out of a received response frame.
// The CRC is verified first; on mismatch the frame is dropped with
// packet.ErrInvalidCRC and out is left empty.
//
// An exception response parses successfully with an empty payload: inspect
// the frame with packet.AsExceptionError (or Frame.IsException) to tell a
// write acknowledgement from an exception.
//
// NB: for bit reads (FC01/FC02) out.Length is the payload byte count, for
// register reads (FC03/FC04/FC23) it is the register count. See packet.Data.
func (d *Device) ParseResponse(f *packet.Frame, out *packet.Data) error {
	if d.role != RoleClient {
		return ErrWrongRole
	}
	out.Reset()
	if err := f.VerifyCRC(); err != nil {
		return err
	}
	if f.IsException() {
		return nil
	}

	switch f.FunctionCode() {
	case packet.FunctionReadCoils, packet.FunctionReadDiscreteInputs:
		byteCount := int(f.Data[2])
		if f.Length != 5+byteCount {
			return fmt.Errorf("response length does not match byte count in frame: %v", byteCount)
		}
		out.Type = packet.Bit
		out.Length = byteCount
		copy(out.Values[:byteCount], f.Data[3:3+byteCount])
	case packet.FunctionReadHoldingRegisters, packet.FunctionReadInputRegisters, packet.FunctionReadWriteMultipleRegisters:
		byteCount := int(f.Data[2])
		if byteCount%2 != 0 || f.Length != 5+byteCount {
			return fmt.Errorf("response length does not match byte count in frame: %v", byteCount)
		}
		out.Type = packet.Word
		out.Length = byteCount / 2
		copy(out.Values[:byteCount], f.Data[3:3+byteCount])
	case packet.FunctionWriteSingleCoil, packet.FunctionWriteSingleRegister, packet.FunctionWriteMultipleRegisters:
		// write acknowledgement, no payload to extract
	case packet.FunctionReadExceptionStatus:
		if f.Length != 5 {
			return fmt.Errorf("response length is not valid for exception status: %v", f.Length)
		}
		out.Type = packet.Byte
		out.Length = 1
		out.Values[0] = f.Data[2]
	case packet.FunctionDiagnostic:
		// subfunction specific, the caller inspects the frame directly
	default:
		return fmt.Errorf("unsupported function code in response: %v", f.FunctionCode())
	}
	return nil
}
