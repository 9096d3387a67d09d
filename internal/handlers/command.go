package handlers

import (
	"html"
	"net/http"
	"strconv"
	"strings"

	"robot_control/internal/models"
	"robot_control/internal/service"

	"github.com/gin-gonic/gin"
)

// Query argument names on the robot API.
const (
	argCommand  = "cmd"
	argDuration = "dur"
	argVelocity = "vel"
)

const (
	contentTypeHTML = "text/html"

	msgExecuting = "Executing command..."
	msgRejected  = "No valid command was received. The robot will not move."
	msgDispatch  = "<html><body>Failed to drive the robot.</body></html>"
)

var helpPage = "<html>" +
	"<head>" +
	"<title>ERROR 404</title>" +
	"</head>" +
	"<body>" +
	"<h1>Welcome to the robot API!</h1>" +
	"<p>To send a command to the robot, make a GET request to the server with the following arguments:</p>" +
	"<ul>" +
	"<li>cmd: The command to send to the robot. Must be one of the following:</li>" +
	"<ul>" +
	"<li>MF (move forward)</li>" +
	"<li>MB (move backward)</li>" +
	"<li>TL (turn left)</li>" +
	"<li>TR (turn right)</li>" +
	"<li>P (park)</li>" +
	"</ul>" +
	"<li>dur (optional): The duration in milliseconds to execute the command. Defaults to " + strconv.Itoa(models.DefaultDurationMs) + ".</li>" +
	"<li>vel (optional): The velocity at which to execute the command. Defaults to " + strconv.Itoa(models.DefaultVelocity) + ".</li>" +
	"</ul>" +
	"<p>To send a request, use the following route:</p>" +
	"<code>http://[server-ip]?cmd=[command]&dur=[duration]&vel=[velocity]</code>" +
	"</body>" +
	"</html>"

// commandParams reads the optional query arguments, keeping absent apart from empty.
func commandParams(c *gin.Context) service.CommandParams {
	var p service.CommandParams
	if v, ok := c.GetQuery(argCommand); ok {
		p.Command = &v
	}
	if v, ok := c.GetQuery(argDuration); ok {
		p.Duration = &v
	}
	if v, ok := c.GetQuery(argVelocity); ok {
		p.Velocity = &v
	}
	return p
}

// renderResult builds the acknowledgment body.
func renderResult(res models.CommandResult) string {
	var b strings.Builder
	b.WriteString("Received command: " + html.EscapeString(res.Request.Raw) + "<br>")
	b.WriteString("Duration: " + strconv.Itoa(res.Request.DurationMs) + "<br>")
	b.WriteString("Velocity: " + strconv.Itoa(res.Request.Velocity) + "<br>")
	if res.Accepted {
		b.WriteString(msgExecuting)
	} else {
		b.WriteString(msgRejected)
	}
	return b.String()
}

// dispatch runs one command cycle. The acknowledgment is written and flushed
// from inside the cycle, so the client sees it before the post-delay ends.
func (h *Handler) dispatch(c *gin.Context) {
	acked := false
	ack := func(res models.CommandResult) error {
		body := renderResult(res)
		c.Header("Content-Type", contentTypeHTML)
		c.Header("Content-Length", strconv.Itoa(len(body)))
		c.Status(http.StatusOK)
		acked = true
		if _, err := c.Writer.WriteString(body); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	_, err := h.services.Dispatcher.Dispatch(c.Request.Context(), commandParams(c), ack)
	if err == nil {
		return
	}
	if h.log != nil {
		h.log.Errorw("dispatch_failed", "err", err, "acked", acked)
	}
	if !acked {
		c.Data(http.StatusInternalServerError, contentTypeHTML, []byte(msgDispatch))
	}
}

// notFound serves the usage page for every route other than "/".
func (h *Handler) notFound(c *gin.Context) {
	c.Data(http.StatusNotFound, contentTypeHTML, []byte(helpPage))
}
