package modbusrtu

import (
	"github.com/serialbus/modbus-rtu/packet"
)

// ServeRequest processes one received request frame. On a nil return the
// frame has been rewritten in place into the response (possibly an exception
// response) and is ready to transmit. On ErrNoResponse the frame was
// consumed but nothing must be transmitted: it was addressed elsewhere or the
// server is in listen-only mode. A CRC mismatch is reported as
// packet.ErrInvalidCRC. Any other error taints the buffer and the transport
// must not transmit it either.
//
// Broadcast (address 0) requests are processed and reported as ready; the
// transport is expected to suppress transmission for them, see Serve.
func (d *Device) ServeRequest(f *packet.Frame) error {
	if d.role != RoleServer {
		return ErrWrongRole
	}
	d.counters.FramesReceived++

	if f.Length < packet.MinFrameLength {
		return packet.ErrFrameTooShort
	}
	addr := f.Address()
	if addr != d.address && addr != packet.AddressBroadcast && addr != packet.AddressMonoDrop {
		d.counters.FramesNotResponded++
		return ErrNoResponse
	}
	// a CRC mismatch is dropped silently, the client times out and retries
	if err := f.VerifyCRC(); err != nil {
		return err
	}
	d.counters.FramesAddressed++

	var exc packet.ExceptionCode
	switch f.FunctionCode() {
	case packet.FunctionReadCoils:
		exc = d.readBits(f, d.model.getCoil)
	case packet.FunctionReadDiscreteInputs:
		exc = d.readBits(f, d.model.getDiscreteInput)
	case packet.FunctionReadHoldingRegisters:
		exc = d.readRegisters(f, d.model.getHoldingRegister)
	case packet.FunctionReadInputRegisters:
		exc = d.readRegisters(f, d.model.getInputRegister)
	case packet.FunctionWriteSingleCoil:
		exc = d.writeSingleCoil(f)
	case packet.FunctionWriteSingleRegister:
		exc = d.presetSingleRegister(f)
	case packet.FunctionReadExceptionStatus:
		exc = d.readExceptionStatus(f)
	case packet.FunctionDiagnostic:
		exc = d.diagnostic(f)
	case packet.FunctionWriteMultipleRegisters:
		exc = d.presetMultipleRegisters(f)
	case packet.FunctionReadWriteMultipleRegisters:
		exc = d.readWriteMultipleRegisters(f)
	default:
		exc = packet.ExceptionIllegalFunction
	}
	if exc != 0 {
		d.exception(f, exc)
	}
	if d.listenOnly {
		d.counters.FramesNotResponded++
		return ErrNoResponse
	}
	if exc != 0 {
		d.counters.ExceptionsSent++
	} else {
		d.counters.ResponsesSent++
	}
	return nil
}

// exception rewrites the frame in place into an exception response: the
// exception bit is set on the function code and the single exception code
// byte follows. The dispatcher calls this at most once per request.
func (d *Device) exception(f *packet.Frame, code packet.ExceptionCode) {
	f.Data[1] |= 0x80
	f.Data[2] = uint8(code)
	f.Length = 3
	_ = f.AppendCRC() // length is fixed at 5, can not overflow
}

// rangeWraps reports whether reading count objects upward from start would
// wrap past the 16 bit object address space
func rangeWraps(start uint16, count uint16) bool {
	return uint32(start)+uint32(count) > 0x10000
}

func clampCount(v uint64) uint16 {
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
