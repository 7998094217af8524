// Package packet implements the Modbus RTU application data unit: the frame
// buffer, the CRC-16 checksum, exception codes and the typed data payload
// that client responses are parsed into.
//
// A Modbus RTU frame (ADU) is laid out as:
//
//	0x11 - server address (0)
//	0x03 - function code (1)
//	.... - function specific payload (2..n-3)
//	0x76 0x87 - CRC16 (n-2,n-1)
//
// All multi-byte payload fields are big-endian. The CRC is appended as the
// final two bytes of every frame.
package packet

const (
	functionCodeErrorBitmask = uint8(128)

	// MaxRegistersInReadResponse is maximum quantity of registers that can be returned by read request (fc03/fc04)
	MaxRegistersInReadResponse = uint16(125)
	// MaxCoilsInReadResponse is maximum quantity of discretes/coils that can be returned by read request (fc01/fc02)
	MaxCoilsInReadResponse = uint16(2000) // 2000/8=250 bytes
	// MaxRegistersInWriteRequest is maximum quantity of registers that can be written by a single request (fc16)
	MaxRegistersInWriteRequest = uint16(123)
	// MaxRegistersInReadWriteWrite is maximum quantity of registers that the write part of fc23 can carry
	MaxRegistersInReadWriteWrite = uint16(121)
)

const (
	// FunctionReadCoils is function code for Read Coils (FC01)
	FunctionReadCoils = uint8(1) // 0x01
	// FunctionReadDiscreteInputs is function code for Read Discrete Inputs (FC02)
	FunctionReadDiscreteInputs = uint8(2) // 0x02
	// FunctionReadHoldingRegisters is function code for Read Holding Registers (FC03)
	FunctionReadHoldingRegisters = uint8(3) // 0x03
	// FunctionReadInputRegisters is function code for Read Input Registers (FC04)
	FunctionReadInputRegisters = uint8(4) // 0x04
	// FunctionWriteSingleCoil is function code for Write Single Coil (FC05)
	FunctionWriteSingleCoil = uint8(5) // 0x05
	// FunctionWriteSingleRegister is function code for Preset Single Register (FC06)
	FunctionWriteSingleRegister = uint8(6) // 0x06
	// FunctionReadExceptionStatus is function code for Read Exception Status (FC07)
	FunctionReadExceptionStatus = uint8(7) // 0x07
	// FunctionDiagnostic is function code for serial line Diagnostics (FC08)
	FunctionDiagnostic = uint8(8) // 0x08
	// FunctionWriteMultipleRegisters is function code for Preset Multiple Registers (FC16)
	FunctionWriteMultipleRegisters = uint8(16) // 0x10
	// FunctionReadWriteMultipleRegisters is function code for Read / Write Multiple Registers (FC23)
	FunctionReadWriteMultipleRegisters = uint8(23) // 0x17
)

var supportedFunctionCodes = [10]byte{
	FunctionReadCoils,
	FunctionReadDiscreteInputs,
	FunctionReadHoldingRegisters,
	FunctionReadInputRegisters,
	FunctionWriteSingleCoil,
	FunctionWriteSingleRegister,
	FunctionReadExceptionStatus,
	FunctionDiagnostic,
	FunctionWriteMultipleRegisters,
	FunctionReadWriteMultipleRegisters,
}

// IsSupportedFunction checks if given function code is one the codec can serve
func IsSupportedFunction(functionCode uint8) bool {
	for _, fc := range supportedFunctionCodes {
		if fc == functionCode {
			return true
		}
	}
	return false
}

const (
	// AddressBroadcast is accepted by every server but must never be responded to
	AddressBroadcast = uint8(0)
	// AddressMin is lower bound of the assignable server address range
	AddressMin = uint8(1)
	// AddressMax is upper bound of the assignable server address range
	AddressMax = uint8(247)
	// AddressMonoDrop is the point-to-point server address (Schneider Electric convention)
	AddressMonoDrop = uint8(248)
	// AddressInvalid marks a server that has not been assigned an address yet
	AddressInvalid = uint8(255)
)

// DiagnosticSub is subfunction code of the Diagnostics (FC08) request
type DiagnosticSub uint16

const (
	// DiagReturnQueryData echoes the request data back to the client
	DiagReturnQueryData = DiagnosticSub(0)
	// DiagRestartCommunications re-initializes the serial line: counters are cleared and listen-only mode is left
	DiagRestartCommunications = DiagnosticSub(1)
	// DiagReturnDiagnosticRegister returns the contents of the diagnostic register
	DiagReturnDiagnosticRegister = DiagnosticSub(2)
	// DiagChangeASCIIDelimiter changes the ASCII mode delimiter character
	DiagChangeASCIIDelimiter = DiagnosticSub(3)
	// DiagForceListenOnly puts the server into listen-only mode, no response is returned
	DiagForceListenOnly = DiagnosticSub(4)
	// DiagClearCounters clears all diagnostic counters and the diagnostic register
	DiagClearCounters = DiagnosticSub(10)
	// DiagReturnBusMessageCount returns quantity of messages the server has detected on the bus
	DiagReturnBusMessageCount = DiagnosticSub(11)
	// DiagReturnBusCommErrorCount returns quantity of CRC errors the server has encountered
	DiagReturnBusCommErrorCount = DiagnosticSub(12)
	// DiagReturnBusExceptionCount returns quantity of exception responses the server has sent
	DiagReturnBusExceptionCount = DiagnosticSub(13)
	// DiagReturnServerMessageCount returns quantity of messages addressed to the server
	DiagReturnServerMessageCount = DiagnosticSub(14)
	// DiagReturnServerNoResponseCount returns quantity of messages the server has not responded to
	DiagReturnServerNoResponseCount = DiagnosticSub(15)
	// DiagReturnServerNAKCount returns quantity of negative acknowledge responses
	DiagReturnServerNAKCount = DiagnosticSub(16)
	// DiagReturnServerBusyCount returns quantity of server busy responses
	DiagReturnServerBusyCount = DiagnosticSub(17)
	// DiagReturnBusOverrunCount returns quantity of character overruns
	DiagReturnBusOverrunCount = DiagnosticSub(18)
	// DiagClearOverrunCounter clears the character overrun counter and flag
	DiagClearOverrunCounter = DiagnosticSub(20)
)

var supportedDiagnosticSubs = [15]DiagnosticSub{
	DiagReturnQueryData,
	DiagRestartCommunications,
	DiagReturnDiagnosticRegister,
	DiagChangeASCIIDelimiter,
	DiagForceListenOnly,
	DiagClearCounters,
	DiagReturnBusMessageCount,
	DiagReturnBusCommErrorCount,
	DiagReturnBusExceptionCount,
	DiagReturnServerMessageCount,
	DiagReturnServerNoResponseCount,
	DiagReturnServerNAKCount,
	DiagReturnServerBusyCount,
	DiagReturnBusOverrunCount,
	DiagClearOverrunCounter,
}

// IsSupportedDiagnosticSub checks if given diagnostic subfunction is one the codec recognizes
func IsSupportedDiagnosticSub(sub DiagnosticSub) bool {
	for _, s := range supportedDiagnosticSubs {
		if s == sub {
			return true
		}
	}
	return false
}
