package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"robot_control/internal/device"
	"robot_control/internal/metrics"
	"robot_control/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// sleepRecorder captures requested delays and the pin level at the moment
// the delay starts.
type sleepRecorder struct {
	pin    *gpiotest.Pin
	delays []time.Duration
	levels []gpio.Level
}

func (r *sleepRecorder) sleep(d time.Duration) {
	r.delays = append(r.delays, d)
	r.levels = append(r.levels, r.pin.Read())
}

type dispatchFixture struct {
	pin    *gpiotest.Pin
	dev    *device.Device
	events *fakeEventRepo
	sleeps *sleepRecorder
	svc    *DispatcherService
}

func newDispatchFixture(start gpio.Level) *dispatchFixture {
	pin := &gpiotest.Pin{N: "GPIO23", Num: 23, L: start}
	dev := device.New(pin, nil)
	events := &fakeEventRepo{}
	rec := &sleepRecorder{pin: pin}
	svc := NewDispatcherService(dev, events, nil, nil).WithSleeper(rec.sleep)
	return &dispatchFixture{pin: pin, dev: dev, events: events, sleeps: rec, svc: svc}
}

func strp(s string) *string { return &s }

// ackRecorder captures the acknowledged result plus the pin level and
// delay count observed at ack time.
type ackRecorder struct {
	f          *dispatchFixture
	calls      int
	res        models.CommandResult
	level      gpio.Level
	sleepsSeen int
}

func (a *ackRecorder) ack(res models.CommandResult) error {
	a.calls++
	a.res = res
	a.level = a.f.pin.Read()
	a.sleepsSeen = len(a.f.sleeps.delays)
	return nil
}

func TestDispatch_RejectsUnknownCommandsWithoutDelay(t *testing.T) {
	for _, raw := range []*string{nil, strp(""), strp("NOP"), strp("mf"), strp("FWD"), strp("P ")} {
		for _, start := range []gpio.Level{gpio.Low, gpio.High} {
			f := newDispatchFixture(start)
			a := &ackRecorder{f: f}
			res, err := f.svc.Dispatch(context.Background(), CommandParams{Command: raw}, a.ack)
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if res.Accepted || a.calls != 1 {
				t.Fatalf("raw=%v: accepted=%v acks=%d", raw, res.Accepted, a.calls)
			}
			if len(f.sleeps.delays) != 0 {
				t.Fatalf("rejected command must not delay, got %v", f.sleeps.delays)
			}
			// park toggles exactly once
			if f.pin.Read() == start {
				t.Fatalf("raw=%v from %v: pin left unchanged", raw, start)
			}
			if len(f.events.appended) != 1 || f.events.appended[0].Type != models.EventReject {
				t.Fatalf("expected one REJECT event, got %+v", f.events.appended)
			}
		}
	}
}

func TestDispatch_MissingCommandEchoesNOP(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	a := &ackRecorder{f: f}
	_, _ = f.svc.Dispatch(context.Background(), CommandParams{}, a.ack)
	if a.res.Request.Raw != models.TokenNop {
		t.Fatalf("raw = %q, want NOP", a.res.Request.Raw)
	}
}

func TestDispatch_MoveForwardSetsHighBeforeDelay(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	a := &ackRecorder{f: f}

	res, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("MF"), Duration: strp("300")}, a.ack)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.Accepted || res.Level != models.LevelHigh {
		t.Fatalf("unexpected result: %+v", res)
	}
	if a.level != gpio.High || a.sleepsSeen != 0 {
		t.Fatalf("ack should see HIGH before any delay: level=%v sleeps=%d", a.level, a.sleepsSeen)
	}
	if len(f.sleeps.delays) != 1 || f.sleeps.delays[0] != 300*time.Millisecond {
		t.Fatalf("delays = %v", f.sleeps.delays)
	}
	if f.sleeps.levels[0] != gpio.High {
		t.Fatalf("pin should be HIGH during delay")
	}
	// park after HIGH -> LOW
	if f.pin.Read() != gpio.Low {
		t.Fatalf("expected park to leave LOW, got %v", f.pin.Read())
	}
}

func TestDispatch_ActionLevels(t *testing.T) {
	cases := []struct {
		cmd       string
		action    gpio.Level
		afterPark gpio.Level
	}{
		{"MF", gpio.High, gpio.Low},
		{"TR", gpio.High, gpio.Low},
		{"MB", gpio.Low, gpio.High},
		{"TL", gpio.Low, gpio.High},
	}
	for _, tc := range cases {
		f := newDispatchFixture(gpio.High)
		a := &ackRecorder{f: f}
		if _, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp(tc.cmd), Duration: strp("0")}, a.ack); err != nil {
			t.Fatalf("%s: %v", tc.cmd, err)
		}
		if a.level != tc.action {
			t.Fatalf("%s: level at ack = %v, want %v", tc.cmd, a.level, tc.action)
		}
		if f.pin.Read() != tc.afterPark {
			t.Fatalf("%s: level after park = %v, want %v", tc.cmd, f.pin.Read(), tc.afterPark)
		}
		if len(f.events.appended) != 1 || f.events.appended[0].Type != models.EventExecute {
			t.Fatalf("%s: expected EXECUTE event, got %+v", tc.cmd, f.events.appended)
		}
	}
}

func TestDispatch_ParkCommandTogglesTwice(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	a := &ackRecorder{f: f}
	if _, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("P"), Duration: strp("0")}, a.ack); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// P parks (LOW -> HIGH), then the cycle parks again (HIGH -> LOW).
	if a.level != gpio.High || f.pin.Read() != gpio.Low {
		t.Fatalf("ack level=%v final=%v", a.level, f.pin.Read())
	}
	if f.events.appended[0].Type != models.EventPark {
		t.Fatalf("expected PARK event, got %s", f.events.appended[0].Type)
	}
}

func TestDispatch_DurationDefaultsAndSkips(t *testing.T) {
	cases := []struct {
		name  string
		dur   *string
		delay []time.Duration
	}{
		{"absent defaults to 1000ms", nil, []time.Duration{time.Second}},
		{"zero skips", strp("0"), nil},
		{"negative skips", strp("-20"), nil},
		{"garbage parses to zero", strp("soon"), nil},
		{"empty parses to zero", strp(""), nil},
		{"leading digits", strp("25ms"), []time.Duration{25 * time.Millisecond}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newDispatchFixture(gpio.Low)
			a := &ackRecorder{f: f}
			if _, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("MB"), Duration: tc.dur}, a.ack); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if len(f.sleeps.delays) != len(tc.delay) {
				t.Fatalf("delays = %v, want %v", f.sleeps.delays, tc.delay)
			}
			for i := range tc.delay {
				if f.sleeps.delays[i] != tc.delay[i] {
					t.Fatalf("delays = %v, want %v", f.sleeps.delays, tc.delay)
				}
			}
		})
	}
}

func TestDispatch_VelocityDefaultsAndIsInert(t *testing.T) {
	levels := map[string]gpio.Level{}
	for _, vel := range []*string{nil, strp("0"), strp("255")} {
		f := newDispatchFixture(gpio.Low)
		a := &ackRecorder{f: f}
		res, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("TR"), Duration: strp("0"), Velocity: vel}, a.ack)
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if vel == nil && res.Request.Velocity != 150 {
			t.Fatalf("default velocity = %d, want 150", res.Request.Velocity)
		}
		levels[res.Level] = a.level
	}
	if len(levels) != 1 {
		t.Fatalf("velocity changed pin level: %v", levels)
	}
}

func TestDispatch_AckErrorDoesNotAbortCycle(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	_, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("MF"), Duration: strp("10")},
		func(models.CommandResult) error { return errors.New("broken pipe") })
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.sleeps.delays) != 1 || f.pin.Read() != gpio.Low {
		t.Fatalf("cycle did not complete: delays=%v level=%v", f.sleeps.delays, f.pin.Read())
	}
}

func TestDispatch_NilAck(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	if _, err := f.svc.Dispatch(context.Background(), CommandParams{}, nil); err == nil {
		t.Fatalf("expected error for nil ack")
	}
}

func TestDispatch_EventAppendFailureIsSwallowed(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	f.events.appendErr = errors.New("disk full")
	a := &ackRecorder{f: f}
	if _, err := f.svc.Dispatch(context.Background(), CommandParams{Command: strp("TL"), Duration: strp("0")}, a.ack); err != nil {
		t.Fatalf("journal failure leaked into Dispatch: %v", err)
	}
}

func TestDispatch_JournalsAfterRequestContextCancelled(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	ctx, cancel := context.WithCancel(context.Background())
	svc := f.svc.WithSleeper(func(time.Duration) { cancel() })
	a := &ackRecorder{f: f}
	if _, err := svc.Dispatch(ctx, CommandParams{Command: strp("MF")}, a.ack); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(f.events.appended) != 1 {
		t.Fatalf("expected journal entry despite cancelled context")
	}
	meta := f.events.appended[0].Metadata.(map[string]any)
	if meta["cmd"] != "MF" || meta["duration_ms"] != 1000 || meta["velocity"] != 150 || meta["level_action"] != models.LevelHigh || meta["level_parked"] != models.LevelLow {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestDispatch_SerializesCycles(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO23", L: gpio.Low}
	dev := device.New(pin, nil)

	var (
		mu      sync.Mutex
		active  int
		overlap bool
	)
	svc := NewDispatcherService(dev, nil, nil, nil).WithSleeper(func(time.Duration) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Dispatch(context.Background(), CommandParams{Command: strp("MF")}, func(models.CommandResult) error { return nil })
		}()
	}
	wg.Wait()
	if overlap {
		t.Fatalf("dispatch cycles overlapped")
	}
}

func TestDispatch_StatusTracksLastRequest(t *testing.T) {
	f := newDispatchFixture(gpio.Low)
	if _, ok, busy := f.svc.Status(); ok || busy {
		t.Fatalf("fresh dispatcher should report no history")
	}

	var busyDuringDelay bool
	f.svc.WithSleeper(func(time.Duration) { _, _, busyDuringDelay = f.svc.Status() })
	_, _ = f.svc.Dispatch(context.Background(), CommandParams{Command: strp("MB"), Velocity: strp("90")}, func(models.CommandResult) error { return nil })

	last, ok, busy := f.svc.Status()
	if !ok || busy || last.Raw != "MB" || last.Velocity != 90 {
		t.Fatalf("status = %+v ok=%v busy=%v", last, ok, busy)
	}
	if !busyDuringDelay {
		t.Fatalf("dispatcher should report busy during the delay")
	}
}

func TestDispatch_GPIOFailureSkipsAck(t *testing.T) {
	dev := device.New(brokenPin{&gpiotest.Pin{N: "GPIO23"}}, nil)
	svc := NewDispatcherService(dev, nil, nil, nil).WithSleeper(func(time.Duration) {})
	acked := false
	_, err := svc.Dispatch(context.Background(), CommandParams{Command: strp("MF")}, func(models.CommandResult) error {
		acked = true
		return nil
	})
	if err == nil || acked {
		t.Fatalf("expected error without ack; err=%v acked=%v", err, acked)
	}
}

type brokenPin struct{ *gpiotest.Pin }

func (brokenPin) Out(gpio.Level) error { return errors.New("bus error") }

func TestDispatch_RecordsMetrics(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO23", L: gpio.Low}
	m := metrics.New()
	svc := NewDispatcherService(device.New(pin, nil), nil, m, nil).WithSleeper(func(time.Duration) {})
	noop := func(models.CommandResult) error { return nil }

	_, _ = svc.Dispatch(context.Background(), CommandParams{Command: strp("MF")}, noop)
	_, _ = svc.Dispatch(context.Background(), CommandParams{Command: strp("bogus")}, noop)

	n, err := testutil.GatherAndCount(m.Registry(), "robot_commands_total")
	if err != nil || n != 2 {
		t.Fatalf("expected two command series, got %d (%v)", n, err)
	}
}

func TestStartup_ParksHighAndJournals(t *testing.T) {
	f := newDispatchFixture(gpio.High)
	if err := f.svc.Startup(context.Background()); err != nil {
		t.Fatalf("Startup: %v", err)
	}
	if f.pin.Read() != gpio.High {
		t.Fatalf("device should rest HIGH after startup")
	}
	if len(f.events.appended) != 1 || f.events.appended[0].Type != models.EventStartup {
		t.Fatalf("expected STARTUP event, got %+v", f.events.appended)
	}
}

func TestRequest_DefaultsAreFixed(t *testing.T) {
	// Env overrides from older deployments have no path into the dispatcher.
	t.Setenv("ROBOT_COMMAND_DEFAULT_DURATION_MS", "0")
	t.Setenv("ROBOT_COMMAND_DEFAULT_VELOCITY", "0")

	svc := NewDispatcherService(device.New(&gpiotest.Pin{N: "GPIO23"}, nil), nil, nil, nil)
	req := svc.Request(CommandParams{Command: strp("TL")})
	if req.Command != models.CommandTurnLeft || req.DurationMs != 1000 || req.Velocity != 150 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.DurationMs != models.DefaultDurationMs || req.Velocity != models.DefaultVelocity {
		t.Fatalf("request defaults diverge from models: %+v", req)
	}
}
