package service

import (
	"strconv"
	"time"
)

// CommandParams carries the raw query arguments. A nil field means the
// argument was absent; a present but empty argument is a non-nil "".
type CommandParams struct {
	Command  *string
	Duration *string
	Velocity *string
}

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "STARTUP", "EXECUTE", "REJECT", "PARK"
}

// ParseIntArg converts a query value leniently: skip leading whitespace,
// accept an optional sign and as many digits as follow. Anything unparsable,
// including overflow, yields 0.
func ParseIntArg(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[start:i], 10, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
