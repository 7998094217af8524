// Package modbusrtu implements the Modbus RTU application layer for both the
// server (responder) and client (requester) role. The package is a pure
// codec: it builds and parses frames and dispatches requests to application
// supplied data object accessors, but never touches the serial line itself.
// Framing over a physical link is left to a transport collaborator that
// hands over complete frames, see SerialConn for one such collaborator.
package modbusrtu

import (
	"errors"
	"fmt"
	"time"

	"github.com/serialbus/modbus-rtu/packet"
)

var (
	// ErrWrongRole is returned when a client side call is made on a server device or vice versa
	ErrWrongRole = errors.New("operation is not allowed for the configured device role")
	// ErrNoResponse is returned by the server dispatcher when the frame was consumed
	// but nothing must be transmitted (wrong address, listen-only mode)
	ErrNoResponse = errors.New("frame requires no response")
)

// Role tells whether the device responds to requests or originates them
type Role uint8

const (
	// RoleServer is a responder device (often wrongly named slave)
	RoleServer = Role(iota)
	// RoleClient is a requester device (often wrongly named master)
	RoleClient
)

// Baud is the serial line speed in bits per second
type Baud int

// Supported communication baudrates
const (
	Baud1200  = Baud(1200)
	Baud2400  = Baud(2400)
	Baud4800  = Baud(4800)
	Baud9600  = Baud(9600)
	Baud19200 = Baud(19200)
	Baud38400 = Baud(38400)
)

func (b Baud) valid() bool {
	switch b {
	case Baud1200, Baud2400, Baud4800, Baud9600, Baud19200, Baud38400:
		return true
	}
	return false
}

// Parity is the serial line character parity setting
type Parity uint8

const (
	// ParityEven is the Modbus default parity
	ParityEven = Parity(iota)
	// ParityOdd parity
	ParityOdd
	// ParityNone disables the parity bit, the line adds a second stop bit instead
	ParityNone
)

func (p Parity) valid() bool {
	switch p {
	case ParityEven, ParityOdd, ParityNone:
		return true
	}
	return false
}

// Counters are the serial line diagnostic counters a server accumulates.
// They back the Diagnostics (FC08) count subfunctions and are readable by the
// embedding application through Device.Counters.
type Counters struct {
	// FramesReceived counts every frame the dispatcher was handed, addressed to this server or not
	FramesReceived uint64
	// FramesAddressed counts CRC-valid frames addressed to this server (including broadcast)
	FramesAddressed uint64
	// FramesNotResponded counts frames addressed to another server and frames consumed in listen-only mode
	FramesNotResponded uint64
	// ExceptionsSent counts exception responses produced
	ExceptionsSent uint64
	// ResponsesSent counts normal responses produced
	ResponsesSent uint64
}

// Device is a single Modbus RTU node: its role, serial line configuration,
// server address, diagnostic counters and data model. A Device carries no
// I/O; all calls are synchronous and operate on caller owned frame buffers.
//
// A Device is not safe for concurrent use. Run it from the I/O goroutine and
// snapshot Counters from there, or add locking around it.
type Device struct {
	role       Role
	address    uint8
	baud       Baud
	parity     Parity
	listenOnly bool
	counters   Counters
	model      DataModel
}

// NewDevice creates a device with the conservative defaults: server role so a
// node can not transmit before it is configured, unassigned address, 19200
// baud and even parity (the Modbus serial line defaults).
func NewDevice() *Device {
	return &Device{
		role:    RoleServer,
		address: packet.AddressInvalid,
		baud:    Baud19200,
		parity:  ParityEven,
	}
}

// NewServer creates a server role device with given address and data model
func NewServer(address uint8, model DataModel) (*Device, error) {
	d := NewDevice()
	if err := d.SetServerAddress(address); err != nil {
		return nil, err
	}
	d.model = model
	return d, nil
}

// NewClient creates a client role device
func NewClient() *Device {
	d := NewDevice()
	d.role = RoleClient
	return d
}

// SetRole switches the device between server and client role
func (d *Device) SetRole(role Role) error {
	if role != RoleServer && role != RoleClient {
		return fmt.Errorf("unknown device role: %v", role)
	}
	d.role = role
	return nil
}

// Role returns the configured device role
func (d *Device) Role() Role {
	return d.role
}

// SetBaudrate configures the serial line speed. Only the enumerated Modbus
// baudrates are accepted.
func (d *Device) SetBaudrate(baud Baud) error {
	if !baud.valid() {
		return fmt.Errorf("unsupported baudrate: %v", int(baud))
	}
	d.baud = baud
	return nil
}

// Baudrate returns the configured serial line speed
func (d *Device) Baudrate() Baud {
	return d.baud
}

// SetParity configures the serial line parity
func (d *Device) SetParity(parity Parity) error {
	if !parity.valid() {
		return fmt.Errorf("unsupported parity: %v", parity)
	}
	d.parity = parity
	return nil
}

// Parity returns the configured serial line parity
func (d *Device) Parity() Parity {
	return d.parity
}

// SetServerAddress assigns the server node address. Assignable addresses are
// 1 to 247; broadcast (0), mono-drop (248) and the unassigned sentinel (255)
// are recognized on receive but can not be assigned.
func (d *Device) SetServerAddress(address uint8) error {
	if address < packet.AddressMin || address > packet.AddressMax {
		return fmt.Errorf("server address is out of range (1-247): %v", address)
	}
	d.address = address
	return nil
}

// ServerAddress returns the assigned server node address
func (d *Device) ServerAddress() uint8 {
	return d.address
}

// SetDataModel attaches the application data object accessors to the device
func (d *Device) SetDataModel(model DataModel) {
	d.model = model
}

// Counters returns a snapshot of the diagnostic counters
func (d *Device) Counters() Counters {
	return d.counters
}

// ListenOnly reports whether the server is in listen-only mode (entered and
// left through Diagnostics subfunctions 4 and 1)
func (d *Device) ListenOnly() bool {
	return d.listenOnly
}

func (d *Device) resetCounters() {
	d.counters = Counters{}
}

// rtuCharBits is the length of one RTU character on the wire: 1 start bit,
// 8 data bits, parity or an extra stop bit, 1 stop bit. 11 bits regardless
// of the parity setting.
const rtuCharBits = 11

// FrameTimeout returns the minimum inter-frame gap for the configured
// baudrate: 3.5 character times, truncated to whole microseconds. The
// transport collaborator uses this to delimit frames on the line.
func (d *Device) FrameTimeout() (time.Duration, error) {
	if !d.baud.valid() {
		return 0, fmt.Errorf("unsupported baudrate: %v", int(d.baud))
	}
	us := int64(3_500_000) * rtuCharBits / int64(d.baud)
	return time.Duration(us) * time.Microsecond, nil
}
