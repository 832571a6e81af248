//go:build rp2040

// Firmware for an RP2040 board driving servos through PCA9685 chips on I2C0.
// Commands arrive over USB CDC.
package main

import (
	"machine"
	"time"

	"servoseq/core"
	"servoseq/firmware"
	"servoseq/sequencer/config"
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	initUSB()
	UpdateSystemTime()

	cfg := config.Default()

	bus, err := initI2C()
	if err != nil {
		halt(err)
	}

	// An unreachable chip is fatal: never run with unverified outputs
	chain, err := core.NewPCA9685Chain(bus, cfg.Addresses(), cfg.PWMFrequencyHz)
	if err != nil {
		halt(err)
	}
	core.SetPWMDriver(chain)

	manager, err := firmware.NewManager(cfg)
	if err != nil {
		halt(err)
	}
	if err := manager.Initialize(core.MustPWM()); err != nil {
		halt(err)
	}
	if err := manager.Start(); err != nil {
		halt(err)
	}

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					chain.Release()
					manager.SendResponse("ERR internal error\n")
				}
			}()

			drainUSB(manager)
			UpdateSystemTime()
			manager.Step(core.GetTime())
			writeUSB(manager.GetOutput())
		}()

		// Yield to other goroutines
		time.Sleep(100 * time.Microsecond)
	}
}

// halt reports a fatal error on the USB console and blinks the LED forever
func halt(err error) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for i := 0; ; i++ {
		if i%10 == 0 {
			writeUSB([]byte("ERR fatal: " + err.Error() + "\n"))
		}
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
