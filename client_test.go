package modbusrtu

import (
	"testing"

	"github.com/serialbus/modbus-rtu/packet"
	"github.com/stretchr/testify/assert"
)

func TestClientBuildersProduceExactFrames(t *testing.T) {
	d := NewClient()

	var testCases = []struct {
		name   string
		build  func(f *packet.Frame) error
		expect []byte
	}{
		{
			name: "read coils",
			build: func(f *packet.Frame) error {
				return d.ReadCoils(0x11, 0x0013, 0x0025, f)
			},
			expect: []byte{0x11, 0x01, 0x00, 0x13, 0x00, 0x25, 0x0E, 0x84},
		},
		{
			name: "read discrete inputs",
			build: func(f *packet.Frame) error {
				return d.ReadDiscreteInputs(0x11, 0x00C4, 0x0016, f)
			},
			expect: responseBytes([]byte{0x11, 0x02, 0x00, 0xC4, 0x00, 0x16}),
		},
		{
			name: "read holding registers",
			build: func(f *packet.Frame) error {
				return d.ReadHoldingRegisters(0x11, 0x006B, 0x0003, f)
			},
			expect: []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03, 0x76, 0x87},
		},
		{
			name: "read input registers",
			build: func(f *packet.Frame) error {
				return d.ReadInputRegisters(0x11, 0x0008, 0x0001, f)
			},
			expect: responseBytes([]byte{0x11, 0x04, 0x00, 0x08, 0x00, 0x01}),
		},
		{
			name: "write single coil on",
			build: func(f *packet.Frame) error {
				return d.WriteSingleCoil(0x11, 0x00AC, true, f)
			},
			expect: []byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00, 0x4E, 0x8B},
		},
		{
			name: "write single coil off",
			build: func(f *packet.Frame) error {
				return d.WriteSingleCoil(0x11, 0x00AC, false, f)
			},
			expect: responseBytes([]byte{0x11, 0x05, 0x00, 0xAC, 0x00, 0x00}),
		},
		{
			name: "preset single register",
			build: func(f *packet.Frame) error {
				return d.PresetSingleRegister(0x11, 0x0001, 0x0003, f)
			},
			expect: responseBytes([]byte{0x11, 0x06, 0x00, 0x01, 0x00, 0x03}),
		},
		{
			name: "read exception status",
			build: func(f *packet.Frame) error {
				return d.ReadExceptionStatus(0x11, f)
			},
			expect: responseBytes([]byte{0x11, 0x07}),
		},
		{
			name: "diagnostic return query data",
			build: func(f *packet.Frame) error {
				return d.Diagnostic(0x11, packet.DiagReturnQueryData, 0xA537, f)
			},
			expect: responseBytes([]byte{0x11, 0x08, 0x00, 0x00, 0xA5, 0x37}),
		},
		{
			name: "preset multiple registers",
			build: func(f *packet.Frame) error {
				return d.PresetMultipleRegisters(0x11, 0x0001, []uint16{0x000A, 0x0102}, f)
			},
			expect: responseBytes([]byte{0x11, 0x10, 0x00, 0x01, 0x00, 0x02, 0x04, 0x00, 0x0A, 0x01, 0x02}),
		},
		{
			name: "read write multiple registers",
			build: func(f *packet.Frame) error {
				return d.ReadWriteMultipleRegisters(0x11, 0x0001, 2, 0x0010, []uint16{0x1234}, f)
			},
			expect: responseBytes([]byte{
				0x11, 0x17, 0x00, 0x01, 0x00, 0x02, 0x00, 0x10, 0x00, 0x01, 0x02, 0x12, 0x34,
			}),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &packet.Frame{}

			assert.NoError(t, tc.build(f))

			assert.Equal(t, tc.expect, f.Bytes())
			assert.NoError(t, f.VerifyCRC())
		})
	}
}

func TestClientBuildersRequireClientRole(t *testing.T) {
	d, err := NewServer(0x11, DataModel{})
	assert.NoError(t, err)

	f := &packet.Frame{}
	assert.ErrorIs(t, d.ReadCoils(0x11, 0, 1, f), ErrWrongRole)
	assert.ErrorIs(t, d.ReadHoldingRegisters(0x11, 0, 1, f), ErrWrongRole)
	assert.ErrorIs(t, d.WriteSingleCoil(0x11, 0, true, f), ErrWrongRole)
	assert.ErrorIs(t, d.ReadExceptionStatus(0x11, f), ErrWrongRole)
	assert.ErrorIs(t, d.PresetMultipleRegisters(0x11, 0, []uint16{1}, f), ErrWrongRole)
}

func TestClientBuilderValidation(t *testing.T) {
	d := NewClient()
	f := &packet.Frame{}

	var testCases = []struct {
		name        string
		build       func() error
		expectError string
	}{
		{
			name:        "read coils zero quantity",
			build:       func() error { return d.ReadCoils(0x11, 0, 0, f) },
			expectError: "quantity is out of range (1-2000): 0",
		},
		{
			name:        "read coils quantity over 2000",
			build:       func() error { return d.ReadCoils(0x11, 0, 2001, f) },
			expectError: "quantity is out of range (1-2000): 2001",
		},
		{
			name:        "read holding registers quantity over 125",
			build:       func() error { return d.ReadHoldingRegisters(0x11, 0, 126, f) },
			expectError: "quantity is out of range (1-125): 126",
		},
		{
			name:        "target address out of range",
			build:       func() error { return d.ReadHoldingRegisters(0xFA, 0, 1, f) },
			expectError: "target server address is out of range (0-248): 250",
		},
		{
			name:        "diagnostic unknown subfunction",
			build:       func() error { return d.Diagnostic(0x11, packet.DiagnosticSub(5), 0, f) },
			expectError: "unsupported diagnostic subfunction: 5",
		},
		{
			name:        "preset multiple registers empty",
			build:       func() error { return d.PresetMultipleRegisters(0x11, 0, nil, f) },
			expectError: "register count is out of range (1-123): 0",
		},
		{
			name:        "preset multiple registers over 123",
			build:       func() error { return d.PresetMultipleRegisters(0x11, 0, make([]uint16, 124), f) },
			expectError: "register count is out of range (1-123): 124",
		},
		{
			name:        "read write multiple registers read quantity over 125",
			build:       func() error { return d.ReadWriteMultipleRegisters(0x11, 0, 126, 0, []uint16{1}, f) },
			expectError: "read register count is out of range (1-125): 126",
		},
		{
			name:        "read write multiple registers write over 121",
			build:       func() error { return d.ReadWriteMultipleRegisters(0x11, 0, 1, 0, make([]uint16, 122), f) },
			expectError: "write register count is out of range (1-121): 122",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualError(t, tc.build(), tc.expectError)
		})
	}
}

func TestParseResponseBits(t *testing.T) {
	d := NewClient()

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x01, 0x02, 0xCD, 0x01})))

	var data packet.Data
	assert.NoError(t, d.ParseResponse(f, &data))

	// NB: for bit reads Length is the payload byte count
	assert.Equal(t, packet.Bit, data.Type)
	assert.Equal(t, 2, data.Length)
	assert.Equal(t, []byte{0xCD, 0x01}, data.Values[:2])

	bit, err := data.Bit(0)
	assert.NoError(t, err)
	assert.True(t, bit)
	bit, err = data.Bit(9)
	assert.NoError(t, err)
	assert.False(t, bit)
}

func TestParseResponseWords(t *testing.T) {
	d := NewClient()

	var testCases = []struct {
		name string
		when []byte
	}{
		{name: "read holding registers", when: []byte{0x11, 0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}},
		{name: "read input registers", when: []byte{0x11, 0x04, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}},
		{name: "read write multiple registers", when: []byte{0x11, 0x17, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &packet.Frame{}
			assert.NoError(t, f.SetBytes(responseBytes(tc.when)))

			var data packet.Data
			assert.NoError(t, d.ParseResponse(f, &data))

			// NB: for register reads Length is the register count
			assert.Equal(t, packet.Word, data.Type)
			assert.Equal(t, 3, data.Length)

			word, err := data.Word(0)
			assert.NoError(t, err)
			assert.Equal(t, uint16(0x022B), word)
			word, err = data.Word(2)
			assert.NoError(t, err)
			assert.Equal(t, uint16(0x0064), word)
		})
	}
}

func TestParseResponseWriteAcknowledgements(t *testing.T) {
	d := NewClient()

	var testCases = []struct {
		name string
		when []byte
	}{
		{name: "write single coil", when: []byte{0x11, 0x05, 0x00, 0xAC, 0xFF, 0x00}},
		{name: "preset single register", when: []byte{0x11, 0x06, 0x00, 0x01, 0x00, 0x03}},
		{name: "preset multiple registers", when: []byte{0x11, 0x10, 0x00, 0x01, 0x00, 0x02}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := &packet.Frame{}
			assert.NoError(t, f.SetBytes(responseBytes(tc.when)))

			data := packet.Data{Type: packet.Word, Length: 7}
			assert.NoError(t, d.ParseResponse(f, &data))

			assert.Equal(t, 0, data.Length)
		})
	}
}

func TestParseResponseExceptionStatus(t *testing.T) {
	d := NewClient()

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x07, 0x6D})))

	var data packet.Data
	assert.NoError(t, d.ParseResponse(f, &data))

	assert.Equal(t, packet.Byte, data.Type)
	assert.Equal(t, 1, data.Length)
	assert.Equal(t, uint8(0x6D), data.Values[0])
}

func TestParseResponseException(t *testing.T) {
	d := NewClient()

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x85, 0x03})))

	data := packet.Data{Type: packet.Word, Length: 7}
	err := d.ParseResponse(f, &data)

	// an exception parses successfully with an empty payload
	assert.NoError(t, err)
	assert.Equal(t, 0, data.Length)

	excErr := packet.AsExceptionError(f)
	assert.Error(t, excErr)
	var exception *packet.ExceptionError
	assert.ErrorAs(t, excErr, &exception)
	assert.Equal(t, uint8(0x05), exception.Function)
	assert.Equal(t, packet.ExceptionIllegalDataValue, exception.Code)
}

func TestParseResponseCRCMismatch(t *testing.T) {
	d := NewClient()

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes([]byte{0x11, 0x03, 0x06, 0x02, 0x2B, 0x00, 0x00, 0x00, 0x64, 0xFF, 0xFF}))

	data := packet.Data{Type: packet.Word, Length: 7}
	assert.ErrorIs(t, d.ParseResponse(f, &data), packet.ErrInvalidCRC)
	assert.Equal(t, 0, data.Length)
}

func TestParseResponseLengthMismatch(t *testing.T) {
	d := NewClient()

	// byte count byte claims 6 bytes but payload carries 4
	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x03, 0x06, 0x02, 0x2B, 0x00, 0x00})))

	var data packet.Data
	assert.EqualError(t, d.ParseResponse(f, &data), "response length does not match byte count in frame: 6")
}

func TestParseResponseUnsupportedFunction(t *testing.T) {
	d := NewClient()

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x2B, 0x0E})))

	var data packet.Data
	assert.EqualError(t, d.ParseResponse(f, &data), "unsupported function code in response: 43")
}

func TestParseResponseRequiresClientRole(t *testing.T) {
	d, err := NewServer(0x11, DataModel{})
	assert.NoError(t, err)

	f := &packet.Frame{}
	assert.NoError(t, f.SetBytes(responseBytes([]byte{0x11, 0x03, 0x02, 0x00, 0x01})))

	var data packet.Data
	assert.ErrorIs(t, d.ParseResponse(f, &data), ErrWrongRole)
}

func TestClientServerRoundTrip(t *testing.T) {
	model := newTestModel()
	model.holdingRegs[0x6B] = 0x022B
	model.holdingRegs[0x6C] = 0x0000
	model.holdingRegs[0x6D] = 0x0064
	server := newTestServer(t, model)
	client := NewClient()

	var frame packet.Frame
	assert.NoError(t, client.ReadHoldingRegisters(0x11, 0x006B, 3, &frame))
	assert.NoError(t, server.ServeRequest(&frame))

	var data packet.Data
	assert.NoError(t, client.ParseResponse(&frame, &data))

	assert.Equal(t, 3, data.Length)
	word, err := data.Word(0)
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x022B), word)
}
