package device

import (
	"fmt"
	"sync"
	"time"

	"robot_control/internal/logger"
	"robot_control/internal/models"

	"periph.io/x/conn/v3/gpio"
)

// Device owns the output pin that stands in for the motors. Actuation methods
// are only called from the dispatcher; Snapshot may be called from anywhere.
type Device struct {
	pin gpio.PinIO
	log *logger.Logger

	mu         sync.RWMutex
	level      gpio.Level
	lastAction string
	updatedAt  time.Time
}

// Snapshot is the cached view of the device, read without touching the pin.
type Snapshot struct {
	Pin        string
	Level      gpio.Level
	LastAction string
	UpdatedAt  time.Time
}

// New wraps pin. log may be nil.
func New(pin gpio.PinIO, log *logger.Logger) *Device {
	return &Device{pin: pin, log: log, level: pin.Read()}
}

// Init drives the pin LOW and then parks, matching the power-on sequence.
// A freshly initialised device therefore rests HIGH.
func (d *Device) Init() error {
	if err := d.write(gpio.Low, "init"); err != nil {
		return err
	}
	return d.Park()
}

// MoveForward drives the pin HIGH.
func (d *Device) MoveForward(velocity int) error {
	return d.actuate(models.TokenMoveForward, velocity, gpio.High)
}

// MoveBackward drives the pin LOW.
func (d *Device) MoveBackward(velocity int) error {
	return d.actuate(models.TokenMoveBackward, velocity, gpio.Low)
}

// TurnRight drives the pin HIGH.
func (d *Device) TurnRight(velocity int) error {
	return d.actuate(models.TokenTurnRight, velocity, gpio.High)
}

// TurnLeft drives the pin LOW.
func (d *Device) TurnLeft(velocity int) error {
	return d.actuate(models.TokenTurnLeft, velocity, gpio.Low)
}

// Park reads the pin and toggles it: LOW becomes HIGH, anything else becomes LOW.
// The result depends on the level left by the previous action.
func (d *Device) Park() error {
	if d.pin.Read() == gpio.Low {
		return d.write(gpio.High, models.TokenPark)
	}
	return d.write(gpio.Low, models.TokenPark)
}

// Level returns the last level written.
func (d *Device) Level() gpio.Level {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.level
}

func (d *Device) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Snapshot{
		Pin:        d.pin.Name(),
		Level:      d.level,
		LastAction: d.lastAction,
		UpdatedAt:  d.updatedAt,
	}
}

// actuate is shared by the four movement stubs. velocity is accepted for
// future PWM control and only logged for now.
func (d *Device) actuate(action string, velocity int, l gpio.Level) error {
	if d.log != nil {
		d.log.Debugw("actuate", "action", action, "velocity", velocity, "level", LevelString(l))
	}
	return d.write(l, action)
}

func (d *Device) write(l gpio.Level, action string) error {
	if err := d.pin.Out(l); err != nil {
		if d.log != nil {
			d.log.Errorw("gpio_write_failed", "err", err, "pin", d.pin.Name(), "action", action)
		}
		return fmt.Errorf("%s: drive %s %s: %w", action, d.pin.Name(), LevelString(l), err)
	}
	d.mu.Lock()
	d.level = l
	d.lastAction = action
	d.updatedAt = time.Now().UTC()
	d.mu.Unlock()
	return nil
}

// LevelString renders l as HIGH or LOW.
func LevelString(l gpio.Level) string {
	if l == gpio.High {
		return models.LevelHigh
	}
	return models.LevelLow
}
