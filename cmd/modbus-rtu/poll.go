package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	modbusrtu "github.com/serialbus/modbus-rtu"
	"github.com/serialbus/modbus-rtu/packet"
	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	var server uint8
	var start uint16
	var quantity uint16
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Periodically read holding registers and log the values",
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

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			var frame packet.Frame
			var data packet.Data
			for {
				if err := device.ReadHoldingRegisters(server, start, quantity, &frame); err != nil {
					return err
				}
				err := conn.Do(ctx, &frame, &frame)
				switch {
				case ctx.Err() != nil:
					return nil
				case err != nil:
					logger.Warn("poll exchange failed", "err", err)
				default:
					if err := device.ParseResponse(&frame, &data); err != nil {
						logger.Warn("response parse failed", "err", err)
					} else if err := packet.AsExceptionError(&frame); err != nil {
						logger.Warn("server returned exception", "err", err)
					} else {
						values := make([]uint16, 0, data.Length)
						for i := 0; i < data.Length; i++ {
							v, err := data.Word(i)
							if err != nil {
								break
							}
							values = append(values, v)
						}
						logger.Info("polled", "start", start, "values", values)
					}
				}

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().Uint8VarP(&server, "server", "s", 1, "server address (1-247)")
	cmd.Flags().Uint16VarP(&start, "address", "a", 0, "start address")
	cmd.Flags().Uint16VarP(&quantity, "quantity", "n", 1, "quantity of registers to read")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "response read timeout")
	return cmd
}
