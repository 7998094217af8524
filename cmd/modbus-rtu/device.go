package main

import (
	"fmt"

	modbusrtu "github.com/serialbus/modbus-rtu"
)

func parseParity(s string) (modbusrtu.Parity, error) {
	switch s {
	case "even":
		return modbusrtu.ParityEven, nil
	case "odd":
		return modbusrtu.ParityOdd, nil
	case "none":
		return modbusrtu.ParityNone, nil
	}
	return 0, fmt.Errorf("unknown parity: %v", s)
}

// clientFromFlags builds a client role device with the serial line parameters
// given on the command line
func clientFromFlags() (*modbusrtu.Device, error) {
	d := modbusrtu.NewClient()
	if err := d.SetBaudrate(modbusrtu.Baud(flagBaud)); err != nil {
		return nil, err
	}
	parity, err := parseParity(flagParity)
	if err != nil {
		return nil, err
	}
	if err := d.SetParity(parity); err != nil {
		return nil, err
	}
	return d, nil
}
