package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	modbusrtu "github.com/serialbus/modbus-rtu"
	"github.com/serialbus/modbus-rtu/packet"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// serverConfig is the YAML description of a served device: its address, the
// serial line parameters and the initial register map.
//
// Example config:
//
//	address: 17
//	baud: 19200
//	parity: even
//	coils:
//	  172: true
//	discrete_inputs:
//	  10: true
//	holding_registers:
//	  107: 555
//	input_registers:
//	  30: 1024
//	exception_status: 0
type serverConfig struct {
	Address         uint8             `yaml:"address"`
	Baud            int               `yaml:"baud"`
	Parity          string            `yaml:"parity"`
	Coils           map[uint16]bool   `yaml:"coils"`
	DiscreteInputs  map[uint16]bool   `yaml:"discrete_inputs"`
	HoldingRegs     map[uint16]uint16 `yaml:"holding_registers"`
	InputRegs       map[uint16]uint16 `yaml:"input_registers"`
	ExceptionStatus uint8             `yaml:"exception_status"`
}

func loadServerConfig(path string) (*serverConfig, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	cfg := &serverConfig{
		Baud:   19200,
		Parity: "even",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config unmarshalling failed: %w", err)
	}
	return cfg, nil
}

// registerStore is the in-memory data model behind the served device. Every
// accessor holds the mutex while it touches the register maps.
type registerStore struct {
	mu  sync.Mutex
	cfg *serverConfig
}

func (s *registerStore) dataModel() modbusrtu.DataModel {
	return modbusrtu.DataModel{
		GetCoil: func(address uint16) (bool, bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			v, ok := s.cfg.Coils[address]
			return v, ok
		},
		SetCoil: func(address uint16, value bool) bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.cfg.Coils[address]; !ok {
				return false
			}
			s.cfg.Coils[address] = value
			return true
		},
		GetDiscreteInput: func(address uint16) (bool, bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			v, ok := s.cfg.DiscreteInputs[address]
			return v, ok
		},
		GetHoldingRegister: func(address uint16) (uint16, bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			v, ok := s.cfg.HoldingRegs[address]
			return v, ok
		},
		SetHoldingRegister: func(address uint16, value uint16) bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.cfg.HoldingRegs[address]; !ok {
				return false
			}
			s.cfg.HoldingRegs[address] = value
			return true
		},
		GetInputRegister: func(address uint16) (uint16, bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			v, ok := s.cfg.InputRegs[address]
			return v, ok
		},
		GetExceptionStatus: func() (uint8, bool) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.cfg.ExceptionStatus, true
		},
	}
}

// counterCollector exports the device diagnostic counters as Prometheus
// counters. The device itself is not goroutine safe, so the snapshot is
// taken under the same mutex the serve loop holds while dispatching.
type counterCollector struct {
	mu     *sync.Mutex
	device *modbusrtu.Device

	framesReceived     *prometheus.Desc
	framesAddressed    *prometheus.Desc
	framesNotResponded *prometheus.Desc
	exceptionsSent     *prometheus.Desc
	responsesSent      *prometheus.Desc
}

func newCounterCollector(mu *sync.Mutex, device *modbusrtu.Device) *counterCollector {
	return &counterCollector{
		mu:                 mu,
		device:             device,
		framesReceived:     prometheus.NewDesc("modbus_frames_received_total", "Frames handed to the dispatcher", nil, nil),
		framesAddressed:    prometheus.NewDesc("modbus_frames_addressed_total", "CRC-valid frames addressed to this server", nil, nil),
		framesNotResponded: prometheus.NewDesc("modbus_frames_not_responded_total", "Frames addressed elsewhere or consumed in listen-only mode", nil, nil),
		exceptionsSent:     prometheus.NewDesc("modbus_exceptions_sent_total", "Exception responses produced", nil, nil),
		responsesSent:      prometheus.NewDesc("modbus_responses_sent_total", "Normal responses produced", nil, nil),
	}
}

func (c *counterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.framesReceived
	ch <- c.framesAddressed
	ch <- c.framesNotResponded
	ch <- c.exceptionsSent
	ch <- c.responsesSent
}

func (c *counterCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	counters := c.device.Counters()
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.framesReceived, prometheus.CounterValue, float64(counters.FramesReceived))
	ch <- prometheus.MustNewConstMetric(c.framesAddressed, prometheus.CounterValue, float64(counters.FramesAddressed))
	ch <- prometheus.MustNewConstMetric(c.framesNotResponded, prometheus.CounterValue, float64(counters.FramesNotResponded))
	ch <- prometheus.MustNewConstMetric(c.exceptionsSent, prometheus.CounterValue, float64(counters.ExceptionsSent))
	ch <- prometheus.MustNewConstMetric(c.responsesSent, prometheus.CounterValue, float64(counters.ResponsesSent))
}

func newServeCmd() *cobra.Command {
	var configPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a Modbus RTU server with a YAML defined register map",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			store := &registerStore{cfg: cfg}

			device, err := modbusrtu.NewServer(cfg.Address, store.dataModel())
			if err != nil {
				return err
			}
			if err := device.SetBaudrate(modbusrtu.Baud(cfg.Baud)); err != nil {
				return err
			}
			parity, err := parseParity(cfg.Parity)
			if err != nil {
				return err
			}
			if err := device.SetParity(parity); err != nil {
				return err
			}

			conn, err := modbusrtu.OpenSerial(flagPort, device)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var deviceMu sync.Mutex
			if metricsAddr != "" {
				registry := prometheus.NewRegistry()
				registry.MustRegister(newCounterCollector(&deviceMu, device))
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
				metricsServer := &http.Server{
					Addr:              metricsAddr,
					Handler:           mux,
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server failed", "err", err)
					}
				}()
				defer metricsServer.Close()
			}

			logger.Info("serving", "port", flagPort, "address", cfg.Address, "baud", cfg.Baud, "parity", cfg.Parity)
			err = serveLocked(ctx, conn, device, &deviceMu)
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "server.yaml", "path to YAML register map")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

// serveLocked mirrors modbusrtu.Serve but holds mu while the device
// dispatches so the metrics collector can read counters between frames
func serveLocked(ctx context.Context, conn *modbusrtu.SerialConn, d *modbusrtu.Device, mu *sync.Mutex) error {
	var frame packet.Frame
	for {
		err := conn.Receive(ctx, &frame)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, modbusrtu.ErrReadTimeout) {
			continue
		}
		if err != nil {
			return err
		}

		isBroadcast := frame.Length > 0 && frame.Address() == packet.AddressBroadcast
		mu.Lock()
		err = d.ServeRequest(&frame)
		mu.Unlock()
		if err != nil || isBroadcast {
			continue
		}
		if err := conn.Send(&frame); err != nil {
			return err
		}
	}
}
