package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataBit(t *testing.T) {
	data := Data{Type: Bit, Length: 2}
	data.Values[0] = 0xCD // 0b11001101
	data.Values[1] = 0x01

	var testCases = []struct {
		name        string
		whenBit     int
		expect      bool
		expectError error
	}{
		{name: "ok, bit 0", whenBit: 0, expect: true},
		{name: "ok, bit 1", whenBit: 1, expect: false},
		{name: "ok, bit 2", whenBit: 2, expect: true},
		{name: "ok, bit 7", whenBit: 7, expect: true},
		{name: "ok, bit 8 in second byte", whenBit: 8, expect: true},
		{name: "ok, bit 9 in second byte", whenBit: 9, expect: false},
		{name: "nok, negative", whenBit: -1, expectError: ErrDataOutOfRange},
		{name: "nok, past payload", whenBit: 16, expectError: ErrDataOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := data.Bit(tc.whenBit)

			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expect, value)
			}
		})
	}
}

func TestDataBitWrongType(t *testing.T) {
	data := Data{Type: Word, Length: 2}

	_, err := data.Bit(0)

	assert.ErrorIs(t, err, ErrDataOutOfRange)
}

func TestDataWord(t *testing.T) {
	data := Data{Type: Word, Length: 3}
	copy(data.Values[:], []byte{0x02, 0x2B, 0x00, 0x00, 0x00, 0x64})

	var testCases = []struct {
		name        string
		whenWord    int
		expect      uint16
		expectError error
	}{
		{name: "ok, word 0", whenWord: 0, expect: 0x022B},
		{name: "ok, word 1", whenWord: 1, expect: 0x0000},
		{name: "ok, word 2", whenWord: 2, expect: 0x0064},
		{name: "nok, negative", whenWord: -1, expectError: ErrDataOutOfRange},
		{name: "nok, past payload", whenWord: 3, expectError: ErrDataOutOfRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := data.Word(tc.whenWord)

			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expect, value)
			}
		})
	}
}

func TestDataLong(t *testing.T) {
	data := Data{Type: Word, Length: 2}
	copy(data.Values[:], []byte{0x00, 0x01, 0x86, 0xA0}) // 100000

	value, err := data.Long(0)

	assert.NoError(t, err)
	assert.Equal(t, uint32(100_000), value)

	_, err = data.Long(1)
	assert.ErrorIs(t, err, ErrDataOutOfRange)
}

func TestDataReset(t *testing.T) {
	data := Data{Type: Word, Length: 3}

	data.Reset()

	assert.Equal(t, Bit, data.Type)
	assert.Equal(t, 0, data.Length)
}
