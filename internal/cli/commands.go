package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"robot_control/internal/models"

	"github.com/spf13/cobra"
)

type movement struct {
	use   string
	token string
	short string
}

var movements = []movement{
	{"forward", models.TokenMoveForward, "Move forward"},
	{"backward", models.TokenMoveBackward, "Move backward"},
	{"right", models.TokenTurnRight, "Turn right"},
	{"left", models.TokenTurnLeft, "Turn left"},
	{"park", models.TokenPark, "Park the robot"},
}

// commandResult is the --json shape for command acknowledgments.
type commandResult struct {
	Command    string `json:"command"`
	DurationMs int    `json:"duration_ms"`
	Velocity   int    `json:"velocity"`
	Accepted   bool   `json:"accepted"`
	DryRun     bool   `json:"dry_run,omitempty"`
	Response   string `json:"response"`
}

func (a *app) addMotionFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&a.durationMs, "dur", 100, "duration in milliseconds")
	cmd.Flags().IntVar(&a.velocity, "vel", 150, "velocity")
}

func (a *app) sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <cmd>",
		Short: "Send a raw command token (MF, MB, TR, TL, P)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd, args[0])
		},
	}
	a.addMotionFlags(cmd)
	return cmd
}

func (a *app) movementCmd(m movement) *cobra.Command {
	cmd := &cobra.Command{
		Use:   m.use,
		Short: m.short + " (" + m.token + ")",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send(cmd, m.token)
		},
	}
	a.addMotionFlags(cmd)
	return cmd
}

func (a *app) send(cmd *cobra.Command, token string) error {
	body, err := a.client().SendCommand(cmd.Context(), token, a.durationMs, a.velocity)
	if err != nil {
		return fmt.Errorf("send %s: %w", token, err)
	}
	res := commandResult{
		Command:    token,
		DurationMs: a.durationMs,
		Velocity:   a.velocity,
		Accepted:   strings.Contains(body, "Executing command..."),
		DryRun:     a.v.GetBool("dry_run"),
		Response:   body,
	}
	if a.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	printAck(cmd.OutOrStdout(), res)
	return nil
}

func (a *app) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the robot state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client().State(cmd.Context())
			if err != nil {
				return fmt.Errorf("state: %w", err)
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			printState(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func (a *app) eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evs, err := a.client().Events(cmd.Context(), a.eventType)
			if err != nil {
				return fmt.Errorf("events: %w", err)
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), evs)
			}
			printEvents(cmd.OutOrStdout(), evs)
			return nil
		},
	}
	cmd.Flags().StringVar(&a.eventType, "type", "", "filter by type (STARTUP, EXECUTE, REJECT, PARK)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
