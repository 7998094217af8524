package modbusrtu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serialbus/modbus-rtu/packet"
	"github.com/stretchr/testify/assert"
)

// fakePort scripts reads the way a serial port with a read timeout behaves:
// each Read hands out the next chunk, an empty chunk models the inter-frame
// gap (a read that returned nothing). Writes are collected.
type fakePort struct {
	reads   [][]byte
	written [][]byte
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, nil // silent line
	}
	chunk := p.reads[0]
	p.reads = p.reads[1:]
	return copy(b, chunk), nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, append([]byte{}, b...))
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialConnReceiveAssemblesFragmentedFrame(t *testing.T) {
	request := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87}
	port := &fakePort{reads: [][]byte{
		request[:3],
		request[3:6],
		request[6:],
		{}, // gap ends the frame
	}}
	conn := NewSerialConn(port)

	var frame packet.Frame
	assert.NoError(t, conn.Receive(context.Background(), &frame))

	assert.Equal(t, request, frame.Bytes())
	assert.NoError(t, frame.VerifyCRC())
}

func TestSerialConnReceiveTimesOutOnSilentLine(t *testing.T) {
	port := &fakePort{}
	conn := NewSerialConn(port, WithReadTimeout(20*time.Millisecond))

	var frame packet.Frame
	err := conn.Receive(context.Background(), &frame)

	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestSerialConnReceiveHonorsContext(t *testing.T) {
	port := &fakePort{}
	conn := NewSerialConn(port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var frame packet.Frame
	err := conn.Receive(ctx, &frame)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSerialConnSend(t *testing.T) {
	port := &fakePort{}
	conn := NewSerialConn(port)

	frame := packet.Frame{}
	assert.NoError(t, frame.SetBytes([]byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00, 0x4E, 0x8B}))

	assert.NoError(t, conn.Send(&frame))

	assert.Equal(t, [][]byte{{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00, 0x4E, 0x8B}}, port.written)
}

func TestSerialConnSendRejectsShortFrame(t *testing.T) {
	port := &fakePort{}
	conn := NewSerialConn(port)

	frame := packet.Frame{Length: 2}

	assert.ErrorIs(t, conn.Send(&frame), packet.ErrFrameTooShort)
	assert.Empty(t, port.written)
}

func TestSerialConnDoExchangesFrames(t *testing.T) {
	response := []byte{0x11, 0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}
	crc := packet.CRC16(response)
	response = append(response, uint8(crc>>8), uint8(crc))

	port := &fakePort{reads: [][]byte{response, {}}}
	conn := NewSerialConn(port)

	var frame packet.Frame
	assert.NoError(t, frame.SetBytes([]byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87}))

	assert.NoError(t, conn.Do(context.Background(), &frame, &frame))

	assert.Len(t, port.written, 1)
	assert.Equal(t, response, frame.Bytes())
}

func TestSerialConnClose(t *testing.T) {
	port := &fakePort{}
	conn := NewSerialConn(port)

	assert.NoError(t, conn.Close())
	assert.True(t, port.closed)
}

func TestServeAnswersRequestsUntilContextEnds(t *testing.T) {
	model := newTestModel()
	model.holdingRegs[0x6B] = 0x022B
	model.holdingRegs[0x6C] = 0x0000
	model.holdingRegs[0x6D] = 0x0064
	device, err := NewServer(0x11, model.dataModel())
	assert.NoError(t, err)

	port := &fakePort{reads: [][]byte{
		{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87},
		{}, // frame boundary
		{0x12, 0x03, 0x00, 0x6B, 0x00, 0x03}, // some other server, dropped
		{},
	}}
	conn := NewSerialConn(port, WithReadTimeout(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = Serve(ctx, conn, device)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrReadTimeout))

	assert.Len(t, port.written, 1)
	expected := responseBytes([]byte{0x11, 0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64})
	assert.Equal(t, expected, port.written[0])
}
