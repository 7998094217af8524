package modbusrtu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/serialbus/modbus-rtu/packet"
	"github.com/tarm/serial"
)

const (
	defaultReadTimeout = 2 * time.Second
	// pollInterval paces the read loop while waiting for the first byte of a frame
	pollInterval = 1 * time.Millisecond
)

// ErrReadTimeout is returned when no complete frame arrived within the read timeout
var ErrReadTimeout = errors.New("timeout while waiting for frame")

// SerialConn delimits Modbus RTU frames on a serial line and hands them over
// as complete buffers. It is the transport collaborator the codec expects:
// the codec itself never reads or writes the line.
//
// Frame boundaries are detected by silence: once bytes have started arriving,
// a port read that returns nothing within the inter-frame gap ends the frame.
// The underlying port must be configured with a read timeout of roughly the
// device frame timeout for this to hold, OpenSerial does that.
type SerialConn struct {
	mu   sync.Mutex
	port io.ReadWriteCloser

	readTimeout time.Duration
}

// SerialOption is options type for NewSerialConn and OpenSerial
type SerialOption func(c *SerialConn)

// WithReadTimeout is option for setting the total timeout for receiving one whole frame
func WithReadTimeout(timeout time.Duration) SerialOption {
	return func(c *SerialConn) {
		c.readTimeout = timeout
	}
}

// NewSerialConn wraps an already opened port. The port read timeout should
// approximate the inter-frame gap of the line speed in use.
func NewSerialConn(port io.ReadWriteCloser, opts ...SerialOption) *SerialConn {
	c := &SerialConn{
		port:        port,
		readTimeout: defaultReadTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OpenSerial opens the named serial port with the line parameters of given
// device: its baudrate, its parity, 8 data bits and the stop bit count
// Modbus mandates for the parity mode (two stop bits when parity is none).
func OpenSerial(name string, d *Device, opts ...SerialOption) (*SerialConn, error) {
	gap, err := d.FrameTimeout()
	if err != nil {
		return nil, err
	}
	cfg := &serial.Config{
		Name:        name,
		Baud:        int(d.Baudrate()),
		Size:        8,
		ReadTimeout: gap,
	}
	switch d.Parity() {
	case ParityEven:
		cfg.Parity = serial.ParityEven
		cfg.StopBits = serial.Stop1
	case ParityOdd:
		cfg.Parity = serial.ParityOdd
		cfg.StopBits = serial.Stop1
	case ParityNone:
		cfg.Parity = serial.ParityNone
		cfg.StopBits = serial.Stop2
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("serial port open error: %w", err)
	}
	return NewSerialConn(port, opts...), nil
}

// Send transmits the frame bytes
func (c *SerialConn) Send(f *packet.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(f)
}

func (c *SerialConn) send(f *packet.Frame) error {
	if f.Length < packet.MinFrameLength {
		return packet.ErrFrameTooShort
	}
	if _, err := c.port.Write(f.Bytes()); err != nil {
		return fmt.Errorf("serial write error: %w", err)
	}
	return nil
}

// Receive blocks until one complete frame has arrived and stores it in f.
// Returns ErrReadTimeout when the line stays silent for the whole read
// timeout.
func (c *SerialConn) Receive(ctx context.Context, f *packet.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receive(ctx, f)
}

func (c *SerialConn) receive(ctx context.Context, f *packet.Frame) error {
	var buf [packet.MaxFrameLength]byte
	total := 0
	timeout := time.After(c.readTimeout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrReadTimeout
		default:
		}

		n, err := c.port.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) && total > 0 {
				break
			}
			return fmt.Errorf("serial read error: %w", err)
		}
		if n == 0 {
			if total > 0 {
				break // inter-frame gap elapsed, frame is complete
			}
			time.Sleep(pollInterval)
			continue
		}
		if total == len(buf) {
			break
		}
	}
	return f.SetBytes(buf[:total])
}

// Do performs one client exchange: the request frame is transmitted and the
// next frame on the line is stored into resp. The same frame may be passed
// as both request and response.
func (c *SerialConn) Do(ctx context.Context, req *packet.Frame, resp *packet.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(req); err != nil {
		return err
	}
	return c.receive(ctx, resp)
}

// Close closes the underlying port
func (c *SerialConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port.Close()
}

// Serve runs a server device on the connection until the context ends: every
// received frame is dispatched and the produced response transmitted, except
// for broadcast requests and frames the dispatcher drops. Read timeouts keep
// the loop turning on a silent line, any other transport error ends it.
func Serve(ctx context.Context, conn *SerialConn, d *Device) error {
	var frame packet.Frame
	for {
		err := conn.Receive(ctx, &frame)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, ErrReadTimeout):
			continue
		case err != nil:
			return err
		}

		isBroadcast := frame.Length > 0 && frame.Address() == packet.AddressBroadcast
		if err := d.ServeRequest(&frame); err != nil {
			continue // nothing to transmit
		}
		if isBroadcast {
			continue // processed, but broadcast is never answered
		}
		if err := conn.Send(&frame); err != nil {
			return err
		}
	}
}
