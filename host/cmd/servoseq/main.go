// Command servoseq runs the servo sequencer on a Linux board: commands arrive
// on a serial port, servos are driven through PCA9685 chips on the I2C bus.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servoseq/core"
	"servoseq/firmware"
	"servoseq/host/api"
	"servoseq/host/i2c"
	"servoseq/host/serial"
	"servoseq/sequencer/config"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/edaniels/golog"
)

const version = "0.3.0"

var (
	configPath = flag.String("config", "", "YAML configuration file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config, ignored for USB CDC)")
	httpAddr   = flag.String("http", "", "HTTP API listen address, e.g. :8080 (overrides config)")
	listPorts  = flag.Bool("list-ports", false, "List serial ports and exit")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logger := golog.NewLogger("servoseq")
	if *verbose {
		logger = golog.NewDevelopmentLogger("servoseq")
	}
	defer logger.Sync()

	if *listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			logger.Fatalw("cannot list ports", "error", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if err := run(logger); err != nil {
		logger.Fatalw("servoseq stopped", "error", err)
	}
}

// run brings up the hardware and drives the control loop until a signal
// arrives. Every exit path releases the PWM outputs and the buses.
func run(logger golog.Logger) error {
	cfg, err := loadConfig()
	if err != nil {
		return fault.Wrap(err, fmsg.With("bad configuration"))
	}

	if *verbose || cfg.Debug {
		core.SetDebugWriter(func(msg string) { logger.Debug(msg) })
		core.SetDebugEnabled(true)
	}

	// Hardware first: an unreachable chip is fatal
	bus, err := i2c.Open(cfg.I2CBus)
	if err != nil {
		return fault.Wrap(err, fmsg.With("i2c bus "+cfg.I2CBus+" unavailable"))
	}
	defer bus.Close()

	chain, err := core.NewPCA9685Chain(bus, cfg.Addresses(), cfg.PWMFrequencyHz)
	if err != nil {
		return fault.Wrap(err, fmsg.With("pwm driver init failed"))
	}
	defer chain.Release()
	core.SetPWMDriver(chain)
	logger.Infow("pwm drivers ready", "chips", len(cfg.Drivers), "channels", chain.Channels(), "hz", cfg.PWMFrequencyHz)

	mgr, err := firmware.NewManager(cfg)
	if err != nil {
		return err
	}
	if err := mgr.Initialize(core.MustPWM()); err != nil {
		return err
	}

	port, err := serial.Open(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: 50,
	})
	if err != nil {
		return err
	}
	defer port.Close()
	port.Flush()
	logger.Infow("listening", "device", cfg.Serial.Device, "baud", cfg.Serial.Baud)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bridge *api.Bridge
	if cfg.HTTP.Listen != "" {
		bridge = api.NewBridge(32)
		srv := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: api.NewEngine(api.NewServer(bridge, version)),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("http server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Infow("http api enabled", "listen", cfg.HTTP.Listen)
	}

	input := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		readErr <- serial.ReadLoop(ctx, port, input)
	}()

	d := newDaemon(mgr, port, bridge, logger)
	if err := d.run(ctx, input, readErr); err != nil {
		mgr.EmergencyStop()
		core.DumpTimingRing()
		return fault.Wrap(err, fmsg.With("control loop stopped"))
	}
	mgr.Stop()
	logger.Infow("shutting down")
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	} else if *configPath == "" {
		if found := serial.FindPort(); found != "" {
			cfg.Serial.Device = found
		}
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *httpAddr != "" {
		cfg.HTTP.Listen = *httpAddr
	}
	return cfg, cfg.Validate()
}
