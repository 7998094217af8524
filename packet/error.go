package packet

import (
	"fmt"
)

// ExceptionCode is enumeration for Modbus exception response codes
type ExceptionCode uint8

const (
	// ExceptionIllegalFunction is The function code received in the query is not an allowable action for the server.
	// Quote from: `MODBUS Application Protocol Specification V1.1b3`, page 48
	ExceptionIllegalFunction = ExceptionCode(1)
	// ExceptionIllegalDataAddress is The data address received in the query is not an allowable address for the
	// server. More specifically, the combination of reference number and transfer length is invalid.
	// Quote from: `MODBUS Application Protocol Specification V1.1b3`, page 48
	ExceptionIllegalDataAddress = ExceptionCode(2)
	// ExceptionIllegalDataValue is A value contained in the query data field is not an allowable value for server.
	// This indicates a fault in the structure of the remainder of a complex request, such as that the implied
	// length is incorrect.
	// Quote from: `MODBUS Application Protocol Specification V1.1b3`, page 48
	ExceptionIllegalDataValue = ExceptionCode(3)
	// ExceptionServerDeviceFailure is An unrecoverable error occurred while the server was attempting to perform
	// the requested action.
	// Quote from: `MODBUS Application Protocol Specification V1.1b3`, page 48
	ExceptionServerDeviceFailure = ExceptionCode(4)
)

// String returns the exception name as printed in the Modbus specification
func (c ExceptionCode) String() string {
	switch c {
	case ExceptionIllegalFunction:
		return "Illegal function"
	case ExceptionIllegalDataAddress:
		return "Illegal data address"
	case ExceptionIllegalDataValue:
		return "Illegal data value"
	case ExceptionServerDeviceFailure:
		return "Server device failure"
	default:
		return fmt.Sprintf("Unknown exception code: %v", uint8(c))
	}
}

// ExceptionError is an exception response received from a Modbus server,
// surfaced as a Go error
type ExceptionError struct {
	Function uint8
	Code     ExceptionCode
}

// Error translates exception code to error message
func (e *ExceptionError) Error() string {
	return e.Code.String()
}

// AsExceptionError converts frame to an ExceptionError when it carries an
// exception response and returns nil otherwise.
//
// Frame layout:
//
//	0x11 - server address (0)
//	0x85 - function code 0x05 + exception bitmask 0x80 (1)
//	0x03 - exception code (2)
//	.... - CRC16 (3,4)
func AsExceptionError(f *Frame) error {
	if f.Length != 5 || !f.IsException() {
		return nil
	}
	return &ExceptionError{
		Function: f.Data[1] &^ functionCodeErrorBitmask,
		Code:     ExceptionCode(f.Data[2]),
	}
}
