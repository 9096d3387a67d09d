package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"robot_control/internal/client"
	"robot_control/internal/models"

	"github.com/charmbracelet/lipgloss"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Width(14)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// htmlLines splits the robot's <br>-separated acknowledgment into lines.
func htmlLines(body string) []string {
	var out []string
	for _, l := range strings.Split(body, "<br>") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func printAck(w io.Writer, res commandResult) {
	lines := htmlLines(res.Response)
	if len(lines) == 0 {
		return
	}
	status := lines[len(lines)-1]
	for _, l := range lines[:len(lines)-1] {
		fmt.Fprintln(w, l)
	}
	if res.Accepted {
		fmt.Fprintln(w, successStyle.Render(status))
	} else {
		fmt.Fprintln(w, warnStyle.Render(status))
	}
}

func printState(w io.Writer, st models.RobotState) {
	fmt.Fprintln(w, titleStyle.Render("Robot "+st.Pin))
	row := func(k, v string) { fmt.Fprintln(w, labelStyle.Render(k)+v) }
	level := st.Level
	if st.Moving {
		level = successStyle.Render(level)
	}
	row("Level", level)
	row("Busy", fmt.Sprint(st.Busy))
	if st.LastCommand != "" {
		row("Last command", st.LastCommand)
		row("Duration", fmt.Sprintf("%d ms", st.LastDurationMs))
		row("Velocity", fmt.Sprint(st.LastVelocity))
	}
	if !st.UpdatedAt.IsZero() {
		row("Updated", st.UpdatedAt.Local().Format(time.DateTime))
	}
}

func printEvents(w io.Writer, evs []models.RobotEvent) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tDESCRIPTION")
	for _, e := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.OccurredAt.Local().Format(time.DateTime), e.Type, e.Description)
	}
	_ = tw.Flush()
}

func printSteer(w io.Writer, res client.SteerResult) {
	dir := labelStyle.Render(res.Direction.String())
	switch {
	case res.Command == "":
		fmt.Fprintln(w, dir+"no command")
	case !res.Sent:
		fmt.Fprintln(w, dir+warnStyle.Render(res.Command+" held"))
	default:
		fmt.Fprintln(w, dir+successStyle.Render(res.Command+" sent"))
		for _, l := range htmlLines(res.Body) {
			fmt.Fprintln(w, "  "+l)
		}
	}
}

func printToggle(w io.Writer, enabled bool) {
	if enabled {
		fmt.Fprintln(w, successStyle.Render("[Enabled]"))
		return
	}
	fmt.Fprintln(w, warnStyle.Render("[Disabled]"))
}
