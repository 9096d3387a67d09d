package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"robot_control/internal/client"

	"github.com/spf13/cobra"
)

// steerLine is the --json shape for one steered direction.
type steerLine struct {
	Direction string `json:"direction"`
	Command   string `json:"command,omitempty"`
	Sent      bool   `json:"sent"`
	Response  string `json:"response,omitempty"`
}

func (a *app) steerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steer [direction...]",
		Short: "Steer with directions (UP, DOWN, LEFT, RIGHT, CENTER)",
		Long: `Maps directions to commands: UP=MF, DOWN=MB, RIGHT=TR, LEFT=TL,
CENTER=P. NO_FACE and UNKNOWN send nothing. At most one command is sent
per --cmd-dur window and each runs for that long.

Directions come from the arguments, or one per line on stdin when there
are none, so a tracker can pipe into robotctl steer. "toggle" on stdin
pauses or resumes sending.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			window := time.Duration(a.cmdDur) * time.Millisecond
			ctl := client.NewController(a.client(), window)
			if len(args) > 0 {
				return a.steerAll(cmd, ctl, strings.NewReader(strings.Join(args, "\n")))
			}
			return a.steerAll(cmd, ctl, cmd.InOrStdin())
		},
	}
	cmd.Flags().IntVar(&a.cmdDur, "cmd-dur", int(client.DefaultSteerWindow/time.Millisecond),
		"duration of each command and minimum spacing between them (ms)")
	return cmd
}

func (a *app) steerAll(cmd *cobra.Command, ctl *client.Controller, in io.Reader) error {
	out := cmd.OutOrStdout()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "toggle") {
			printToggle(out, ctl.Toggle())
			continue
		}
		res, err := ctl.Steer(cmd.Context(), client.ParseDirection(line))
		if err != nil {
			return fmt.Errorf("steer %s: %w", line, err)
		}
		if a.jsonOutput {
			if err := writeJSON(out, steerLine{
				Direction: res.Direction.String(),
				Command:   res.Command,
				Sent:      res.Sent,
				Response:  res.Body,
			}); err != nil {
				return err
			}
			continue
		}
		printSteer(out, res)
	}
	return sc.Err()
}
