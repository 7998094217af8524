package main

import (
	"context"
	"fmt"
	"time"

	modbusrtu "github.com/serialbus/modbus-rtu"
	"github.com/serialbus/modbus-rtu/packet"
	"github.com/spf13/cobra"
)

func newReadCmd() *cobra.Command {
	var server uint8
	var functionCode uint8
	var start uint16
	var quantity uint16
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read coils, discrete inputs or registers from a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			device, err := clientFromFlags()
			if err != nil {
				return err
			}
			conn, err := modbusrtu.OpenSerial(flagPort, device, modbusrtu.WithReadTimeout(timeout))
			if err != nil {
				return err
			}
			defer conn.Close()

			var frame packet.Frame
			switch functionCode {
			case packet.FunctionReadCoils:
				err = device.ReadCoils(server, start, quantity, &frame)
			case packet.FunctionReadDiscreteInputs:
				err = device.ReadDiscreteInputs(server, start, quantity, &frame)
			case packet.FunctionReadHoldingRegisters:
				err = device.ReadHoldingRegisters(server, start, quantity, &frame)
			case packet.FunctionReadInputRegisters:
				err = device.ReadInputRegisters(server, start, quantity, &frame)
			case packet.FunctionReadExceptionStatus:
				err = device.ReadExceptionStatus(server, &frame)
			default:
				return fmt.Errorf("function code is not a read: %v", functionCode)
			}
			if err != nil {
				return err
			}
			logger.Debug("request built", "frame", frame.String())

			if err := conn.Do(context.Background(), &frame, &frame); err != nil {
				return err
			}
			logger.Debug("response received", "frame", frame.String())

			var data packet.Data
			if err := device.ParseResponse(&frame, &data); err != nil {
				return err
			}
			if err := packet.AsExceptionError(&frame); err != nil {
				return err
			}
			printData(&data, start, quantity)
			return nil
		},
	}

	cmd.Flags().Uint8VarP(&server, "server", "s", 1, "server address (1-247)")
	cmd.Flags().Uint8VarP(&functionCode, "fc", "f", 3, "function code (1, 2, 3, 4 or 7)")
	cmd.Flags().Uint16VarP(&start, "address", "a", 0, "start address")
	cmd.Flags().Uint16VarP(&quantity, "quantity", "n", 1, "quantity of objects to read")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "response read timeout")
	return cmd
}

func printData(data *packet.Data, start uint16, quantity uint16) {
	switch data.Type {
	case packet.Bit:
		for k := 0; k < int(quantity); k++ {
			v, err := data.Bit(k)
			if err != nil {
				return
			}
			fmt.Printf("%d: %t\n", start+uint16(k), v)
		}
	case packet.Word:
		for i := 0; i < data.Length; i++ {
			v, err := data.Word(i)
			if err != nil {
				return
			}
			fmt.Printf("%d: %d (0x%04X)\n", start+uint16(i), v, v)
		}
	case packet.Byte:
		if data.Length > 0 {
			fmt.Printf("exception status: 0x%02X\n", data.Values[0])
		}
	}
}
