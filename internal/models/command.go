package models

// Command is the closed set of movement commands the robot understands.
type Command int

const (
	CommandNop Command = iota
	CommandMoveForward
	CommandMoveBackward
	CommandTurnRight
	CommandTurnLeft
	CommandPark
)

// Wire tokens accepted in the "cmd" query parameter.
const (
	TokenMoveForward  = "MF"
	TokenMoveBackward = "MB"
	TokenTurnRight    = "TR"
	TokenTurnLeft     = "TL"
	TokenPark         = "P"
	TokenNop          = "NOP"
)

// Values applied when "dur" or "vel" is absent. They are part of the wire
// contract and published on the help page, so they are not configurable.
const (
	DefaultDurationMs = 1000
	DefaultVelocity   = 150
)

var commandTokens = map[string]Command{
	TokenMoveForward:  CommandMoveForward,
	TokenMoveBackward: CommandMoveBackward,
	TokenTurnRight:    CommandTurnRight,
	TokenTurnLeft:     CommandTurnLeft,
	TokenPark:         CommandPark,
}

// ParseCommand maps a wire token to a Command. Matching is exact and
// case-sensitive; anything else, including "NOP", is reported as unrecognized.
func ParseCommand(token string) (Command, bool) {
	cmd, ok := commandTokens[token]
	if !ok {
		return CommandNop, false
	}
	return cmd, true
}

// String returns the wire token of c.
func (c Command) String() string {
	switch c {
	case CommandMoveForward:
		return TokenMoveForward
	case CommandMoveBackward:
		return TokenMoveBackward
	case CommandTurnRight:
		return TokenTurnRight
	case CommandTurnLeft:
		return TokenTurnLeft
	case CommandPark:
		return TokenPark
	default:
		return TokenNop
	}
}

// CommandRequest is built once per inbound call.
type CommandRequest struct {
	Raw        string  // token as received, echoed back to the caller
	Command    Command // CommandNop when Raw is not recognized
	DurationMs int
	Velocity   int // accepted and reported, not used by the actuators
}

// Recognized reports whether the request carries one of the five known tokens.
func (r CommandRequest) Recognized() bool {
	_, ok := ParseCommand(r.Raw)
	return ok
}

// CommandResult is what the dispatcher reports back for a request.
type CommandResult struct {
	Request  CommandRequest
	Accepted bool
	Level    string // pin level right after the action, before the post-delay
}
