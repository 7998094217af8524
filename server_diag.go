package modbusrtu

import (
	"github.com/serialbus/modbus-rtu/packet"
)

// diagnostic serves serial line Diagnostics (FC08).
//
// Request layout:
//
//	0x11 - server address (0)
//	0x08 - function code (1)
//	0x00 0x00 - subfunction (2,3)
//	0xA5 0x37 - subfunction data (4,5)
//	.... - CRC16 (6,7)
//
// Subfunction 0 echoes the request, subfunction 1 restarts communications
// (counters cleared, listen-only left), subfunction 4 forces listen-only
// mode in which the server stops responding until restarted. The count
// subfunctions replace the data field with the matching diagnostic counter;
// counts the device does not track read as zero. Unknown subfunctions are
// rejected as an illegal function.
func (d *Device) diagnostic(f *packet.Frame) packet.ExceptionCode {
	if f.Length != 8 {
		return packet.ExceptionIllegalDataValue
	}
	sub := packet.DiagnosticSub(f.Word(2))

	switch sub {
	case packet.DiagReturnQueryData:
		// echo, data field stays as received
	case packet.DiagRestartCommunications:
		d.resetCounters()
		d.listenOnly = false
	case packet.DiagReturnDiagnosticRegister:
		// the device keeps no diagnostic register, it reads as zero
		f.PutWord(4, 0)
	case packet.DiagChangeASCIIDelimiter:
		// ASCII mode is not implemented, the delimiter is accepted and ignored
	case packet.DiagForceListenOnly:
		d.listenOnly = true
	case packet.DiagClearCounters:
		d.resetCounters()
	case packet.DiagReturnBusMessageCount:
		f.PutWord(4, clampCount(d.counters.FramesReceived))
	case packet.DiagReturnBusExceptionCount:
		f.PutWord(4, clampCount(d.counters.ExceptionsSent))
	case packet.DiagReturnServerMessageCount:
		f.PutWord(4, clampCount(d.counters.FramesAddressed))
	case packet.DiagReturnServerNoResponseCount:
		f.PutWord(4, clampCount(d.counters.FramesNotResponded))
	case packet.DiagReturnBusCommErrorCount,
		packet.DiagReturnServerNAKCount,
		packet.DiagReturnServerBusyCount,
		packet.DiagReturnBusOverrunCount:
		// counts the device does not track
		f.PutWord(4, 0)
	case packet.DiagClearOverrunCounter:
		// nothing to clear, acknowledged by echo
	default:
		return packet.ExceptionIllegalFunction
	}

	f.Length = 6
	if err := f.AppendCRC(); err != nil {
		return packet.ExceptionServerDeviceFailure
	}
	return 0
}
