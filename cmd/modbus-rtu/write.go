package main

import (
	"context"
	"fmt"
	"time"

	modbusrtu "github.com/serialbus/modbus-rtu"
	"github.com/serialbus/modbus-rtu/packet"
	"github.com/spf13/cobra"
)

func newWriteCmd() *cobra.Command {
	var server uint8
	var coil bool
	var address uint16
	var rawValues []uint
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a coil or one or more holding registers on a server",
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

			if len(rawValues) == 0 {
				return fmt.Errorf("at least one value is required")
			}
			values := make([]uint16, 0, len(rawValues))
			for _, v := range rawValues {
				if v > 0xFFFF {
					return fmt.Errorf("value does not fit a 16 bit register: %v", v)
				}
				values = append(values, uint16(v))
			}

			var frame packet.Frame
			switch {
			case coil:
				err = device.WriteSingleCoil(server, address, values[0] != 0, &frame)
			case len(values) == 1:
				err = device.PresetSingleRegister(server, address, values[0], &frame)
			default:
				err = device.PresetMultipleRegisters(server, address, values, &frame)
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
			fmt.Println("ok")
			return nil
		},
	}

	cmd.Flags().Uint8VarP(&server, "server", "s", 1, "server address (1-247)")
	cmd.Flags().BoolVar(&coil, "coil", false, "write a coil instead of holding registers")
	cmd.Flags().Uint16VarP(&address, "address", "a", 0, "object address")
	cmd.Flags().UintSliceVar(&rawValues, "value", nil, "value(s) to write, repeatable")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "response read timeout")
	return cmd
}
