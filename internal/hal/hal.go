// Package hal opens the single output pin the robot drives.
//
// Two drivers exist. "periph" talks to real hardware through periph.io and is
// what runs on the Raspberry Pi. "sim" returns an in-memory pin from
// periph's gpiotest package so the daemon can run on a desktop machine.
package hal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"robot_control/internal/config"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/host/v3"
)

var ErrPinNotFound = errors.New("gpio pin not found")

// hostInit is swapped in tests.
var hostInit = func() error {
	_, err := host.Init()
	return err
}

// OpenPin returns the configured output pin driven LOW.
func OpenPin(cfg config.GPIOConfig) (gpio.PinIO, error) {
	var (
		p   gpio.PinIO
		err error
	)
	switch cfg.Driver {
	case config.DriverPeriph:
		p, err = openPeriph(cfg.Pin)
	case config.DriverSim:
		p = NewSimPin(cfg.Pin)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configure %s as output: %w", p, err)
	}
	return p, nil
}

// openPeriph initialises periph host drivers and looks the pin up by name.
// host.Init can safely be called multiple times.
func openPeriph(name string) (gpio.PinIO, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return p, nil
}

// NewSimPin returns an in-memory pin starting LOW.
func NewSimPin(name string) *gpiotest.Pin {
	return &gpiotest.Pin{N: name, Num: pinNumber(name), L: gpio.Low}
}

// pinNumber extracts the BCM number from names such as "GPIO23"; -1 otherwise.
func pinNumber(name string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(name), "GPIO"))
	if err != nil {
		return -1
	}
	return n
}
