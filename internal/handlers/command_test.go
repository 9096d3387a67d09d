package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"robot_control/internal/device"
	"robot_control/internal/models"
	"robot_control/internal/service"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func acceptedMF() models.CommandResult {
	return models.CommandResult{
		Request:  models.CommandRequest{Raw: "MF", Command: models.CommandMoveForward, DurationMs: 500, Velocity: 150},
		Accepted: true,
		Level:    models.LevelHigh,
	}
}

func TestDispatchHandler_AcceptedBodyAndParams(t *testing.T) {
	d := &mockDispatcher{result: acceptedMF()}
	r := newTestRouter(&service.Service{Dispatcher: d})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?cmd=MF&dur=500", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeHTML {
		t.Fatalf("content-type=%q", ct)
	}
	want := "Received command: MF<br>Duration: 500<br>Velocity: 150<br>Executing command..."
	if w.Body.String() != want {
		t.Fatalf("body=%q want %q", w.Body.String(), want)
	}
	if d.last.Command == nil || *d.last.Command != "MF" {
		t.Fatalf("cmd not forwarded: %+v", d.last)
	}
	if d.last.Duration == nil || *d.last.Duration != "500" {
		t.Fatalf("dur not forwarded: %+v", d.last)
	}
	if d.last.Velocity != nil {
		t.Fatalf("absent vel must stay nil, got %q", *d.last.Velocity)
	}
}

func TestDispatchHandler_EmptyArgIsPresent(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRouter(&service.Service{Dispatcher: d})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=&vel=", nil))

	if d.last.Command == nil || *d.last.Command != "" {
		t.Fatalf("empty cmd should be forwarded as present: %+v", d.last)
	}
	if d.last.Velocity == nil || *d.last.Velocity != "" {
		t.Fatalf("empty vel should be forwarded as present: %+v", d.last)
	}
}

func TestDispatchHandler_RejectedBodyEscapesCommand(t *testing.T) {
	d := &mockDispatcher{result: models.CommandResult{
		Request: models.CommandRequest{Raw: "<b>x</b>", DurationMs: 1000, Velocity: 150},
	}}
	r := newTestRouter(&service.Service{Dispatcher: d})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=%3Cb%3Ex%3C/b%3E", nil))

	body := w.Body.String()
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if strings.Contains(body, "<b>") || !strings.Contains(body, "&lt;b&gt;x&lt;/b&gt;") {
		t.Fatalf("command not escaped: %q", body)
	}
	if !strings.HasSuffix(body, msgRejected) {
		t.Fatalf("missing rejection message: %q", body)
	}
}

func TestDispatchHandler_ErrorBeforeAckIs500(t *testing.T) {
	d := &mockDispatcher{ackSkip: true, err: errors.New("gpio bus error")}
	r := newTestRouter(&service.Service{Dispatcher: d})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=MF", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != contentTypeHTML {
		t.Fatalf("content-type=%q", w.Header().Get("Content-Type"))
	}
}

func TestDispatchHandler_ErrorAfterAckKeepsResponse(t *testing.T) {
	d := &mockDispatcher{result: acceptedMF(), err: errors.New("park failed")}
	r := newTestRouter(&service.Service{Dispatcher: d})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=MF", nil))

	if w.Code != http.StatusOK || !strings.HasSuffix(w.Body.String(), msgExecuting) {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestDispatchHandler_AnyMethodOnRootIsDispatched(t *testing.T) {
	methods := []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	for _, m := range methods {
		t.Run(m, func(t *testing.T) {
			d := &mockDispatcher{result: acceptedMF()}
			r := newTestRouter(&service.Service{Dispatcher: d})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(m, "/?cmd=MF&dur=500", nil))

			if w.Code != http.StatusOK || d.calls != 1 {
				t.Fatalf("status=%d calls=%d", w.Code, d.calls)
			}
			if d.last.Command == nil || *d.last.Command != "MF" {
				t.Fatalf("cmd not forwarded: %+v", d.last)
			}
		})
	}
}

func TestNotFound_HelpPage(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRouter(&service.Service{Dispatcher: d})

	cases := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/move?cmd=MF"},
		{http.MethodGet, "/index.html"},
		{http.MethodGet, "/api/v1/state"},
		{http.MethodGet, "/health"},
		{http.MethodGet, "/cmd/"},
		{http.MethodPost, "/move?cmd=MF"},
		{http.MethodDelete, "/index.html"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.target, nil))
			if w.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", w.Code)
			}
			if w.Body.String() != helpPage {
				t.Fatalf("expected help page, got %q", w.Body.String())
			}
			if w.Header().Get("Content-Type") != contentTypeHTML {
				t.Fatalf("content-type=%q", w.Header().Get("Content-Type"))
			}
		})
	}
	if d.calls != 0 {
		t.Fatalf("dispatcher must not run for unknown routes, calls=%d", d.calls)
	}
}

func TestHelpPage_ListsCommandsAndDefaults(t *testing.T) {
	for _, s := range []string{"MF (move forward)", "MB (move backward)", "TL (turn left)", "TR (turn right)", "P (park)",
		"Defaults to " + strconv.Itoa(models.DefaultDurationMs), "Defaults to " + strconv.Itoa(models.DefaultVelocity), "http://[server-ip]?cmd=[command]&dur=[duration]&vel=[velocity]"} {
		if !strings.Contains(helpPage, s) {
			t.Fatalf("help page missing %q", s)
		}
	}
}

// The acknowledgment must reach the client while the cycle is still holding.
func TestDispatchHandler_ResponseArrivesBeforeDelayEnds(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	d := &mockDispatcher{
		result: acceptedMF(),
		afterAck: func() {
			<-release
			close(finished)
		},
	}
	srv := httptest.NewServer(newTestRouter(&service.Service{Dispatcher: d}))
	defer srv.Close()
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(srv.URL + "/?cmd=MF&dur=500")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	select {
	case <-finished:
		t.Fatalf("cycle finished before the response was read")
	default:
	}
	if !strings.HasSuffix(string(body), msgExecuting) {
		t.Fatalf("body=%q", body)
	}
	close(release)
	<-finished
}

func TestDispatchHandler_WithRealDispatcher(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO23", L: gpio.Low}
	var levelAtDelay gpio.Level
	var delays []time.Duration
	disp := service.NewDispatcherService(device.New(pin, nil), nil, nil, nil).
		WithSleeper(func(d time.Duration) {
			delays = append(delays, d)
			levelAtDelay = pin.Read()
		})
	r := newTestRouter(&service.Service{Dispatcher: disp})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=MF", nil).WithContext(context.Background()))

	want := "Received command: MF<br>Duration: 1000<br>Velocity: 150<br>Executing command..."
	if w.Body.String() != want {
		t.Fatalf("body=%q", w.Body.String())
	}
	if len(delays) != 1 || delays[0] != time.Second || levelAtDelay != gpio.High {
		t.Fatalf("delays=%v level=%v", delays, levelAtDelay)
	}
	if pin.Read() != gpio.Low {
		t.Fatalf("expected parked LOW, got %v", pin.Read())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?cmd=NOP&dur=5000", nil))
	if !strings.HasSuffix(w.Body.String(), msgRejected) || len(delays) != 1 {
		t.Fatalf("rejected command should not delay: body=%q delays=%v", w.Body.String(), delays)
	}
	if !strings.Contains(w.Body.String(), "Duration: 5000<br>") {
		t.Fatalf("duration should be echoed: %q", w.Body.String())
	}
}
