// modbus-rtu is a command line companion for the modbusrtu library: it can
// run an RTU server with a YAML defined register map on a serial port, or
// act as a client issuing single reads, writes and periodic polls.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPort    string
	flagBaud    int
	flagParity  string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "modbus-rtu",
		Short:         "Modbus RTU server and client over a serial line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "/dev/ttyUSB0", "serial port device")
	rootCmd.PersistentFlags().IntVarP(&flagBaud, "baud", "b", 19200, "baudrate (1200, 2400, 4800, 9600, 19200, 38400)")
	rootCmd.PersistentFlags().StringVar(&flagParity, "parity", "even", "parity (even, odd, none)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug output")

	rootCmd.AddCommand(
		newServeCmd(),
		newReadCmd(),
		newWriteCmd(),
		newPollCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
