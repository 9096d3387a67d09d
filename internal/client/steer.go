package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"robot_control/internal/models"
)

// DefaultSteerWindow is the minimum spacing between steered commands and the
// duration each one runs for.
const DefaultSteerWindow = 250 * time.Millisecond

// Direction is where an operator (or a tracker feeding robotctl) is pointing.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionUp
	DirectionDown
	DirectionLeft
	DirectionRight
	DirectionCenter
	// DirectionNoFace means the tracker lost the operator.
	DirectionNoFace
)

var directionNames = map[Direction]string{
	DirectionUnknown: "UNKNOWN",
	DirectionUp:      "UP",
	DirectionDown:    "DOWN",
	DirectionLeft:    "LEFT",
	DirectionRight:   "RIGHT",
	DirectionCenter:  "CENTER",
	DirectionNoFace:  "NO_FACE",
}

var directionCommands = map[Direction]string{
	DirectionUp:     models.TokenMoveForward,
	DirectionDown:   models.TokenMoveBackward,
	DirectionRight:  models.TokenTurnRight,
	DirectionLeft:   models.TokenTurnLeft,
	DirectionCenter: models.TokenPark,
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}
	return directionNames[DirectionUnknown]
}

// Command returns the token d steers with. NoFace and Unknown steer nothing.
func (d Direction) Command() (string, bool) {
	tok, ok := directionCommands[d]
	return tok, ok
}

// ParseDirection accepts the names above in any case, with "-" or " " in
// place of "_". Anything else is DirectionUnknown.
func ParseDirection(s string) Direction {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	for d, name := range directionNames {
		if n == name {
			return d
		}
	}
	return DirectionUnknown
}

// Sender is the part of RobotClient the Controller needs.
type Sender interface {
	SendCommand(ctx context.Context, cmd string, durationMs, velocity int) (string, error)
}

// SteerResult reports what one Steer call did.
type SteerResult struct {
	Direction Direction
	Command   string // empty when nothing maps to the direction
	Sent      bool
	Body      string
}

// Controller turns a stream of directions into robot commands, sending at
// most one per window. Each command runs for the window, so a steady
// direction keeps the robot moving without gaps.
type Controller struct {
	sender   Sender
	window   time.Duration
	velocity int
	now      func() time.Time

	mu      sync.Mutex
	enabled bool
	last    time.Time
}

// NewController steers through s. A non-positive window uses
// DefaultSteerWindow.
func NewController(s Sender, window time.Duration) *Controller {
	if window <= 0 {
		window = DefaultSteerWindow
	}
	return &Controller{
		sender:   s,
		window:   window,
		velocity: DefaultVelocity,
		now:      time.Now,
		enabled:  true,
	}
}

// WithClock replaces time.Now.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Window returns the throttle window, which is also the command duration.
func (c *Controller) Window() time.Duration { return c.window }

// Toggle flips whether directions are forwarded and returns the new state.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = !c.enabled
	return c.enabled
}

// Steer sends the command for dir when control is enabled, dir maps to a
// command and strictly more than the window has passed since the last sent
// command. A failed send does not reset the window.
func (c *Controller) Steer(ctx context.Context, dir Direction) (SteerResult, error) {
	res := SteerResult{Direction: dir}
	tok, ok := dir.Command()
	if !ok {
		return res, nil
	}
	res.Command = tok

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return res, nil
	}
	now := c.now()
	if !c.last.IsZero() && now.Sub(c.last) <= c.window {
		return res, nil
	}
	body, err := c.sender.SendCommand(ctx, tok, int(c.window/time.Millisecond), c.velocity)
	if err != nil {
		return res, err
	}
	c.last = now
	res.Sent = true
	res.Body = body
	return res, nil
}
