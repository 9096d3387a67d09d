package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"robot_control/internal/device"
	"robot_control/internal/logger"
	"robot_control/internal/metrics"
	"robot_control/internal/models"
	"robot_control/internal/repository"

	"github.com/google/uuid"
)

// AckFunc delivers the response for a request. The dispatcher calls it once,
// before the post-delay, so the caller is answered while the robot still moves.
type AckFunc func(models.CommandResult) error

// Sleeper blocks for d. Tests replace it to observe delays without waiting.
type Sleeper func(d time.Duration)

var errNilAck = errors.New("dispatch: ack func is required")

// DispatcherService runs one command cycle at a time: act, acknowledge,
// hold for the requested duration, park.
type DispatcherService struct {
	dev       *device.Device
	eventRepo repository.EventRepo
	metrics   *metrics.Metrics
	log       *logger.Logger
	sleep     Sleeper
	hub       *Hub

	// cycle serializes whole dispatch cycles, delay included.
	cycle sync.Mutex

	statusMu sync.RWMutex
	busy     bool
	last     *models.CommandRequest
}

func NewDispatcherService(dev *device.Device, eventRepo repository.EventRepo, m *metrics.Metrics, log *logger.Logger) *DispatcherService {
	return &DispatcherService{
		dev:       dev,
		eventRepo: eventRepo,
		metrics:   m,
		log:       log,
		sleep:     time.Sleep,
	}
}

// WithSleeper replaces the post-delay implementation.
func (s *DispatcherService) WithSleeper(fn Sleeper) *DispatcherService {
	s.sleep = fn
	return s
}

// WithHub publishes busy transitions, pin writes and journal entries to hub.
func (s *DispatcherService) WithHub(hub *Hub) *DispatcherService {
	s.hub = hub
	return s
}

// Startup runs the power-on sequence and journals it. Call before serving.
func (s *DispatcherService) Startup(ctx context.Context) error {
	s.cycle.Lock()
	defer s.cycle.Unlock()

	if err := s.dev.Init(); err != nil {
		return fmt.Errorf("device init: %w", err)
	}
	level := device.LevelString(s.dev.Level())
	s.metrics.SetPinLevel(level == models.LevelHigh)
	s.hub.Publish(Update{Kind: UpdateState})
	s.record(ctx, models.EventStartup, "Device initialised and parked", map[string]any{
		"level": level,
	})
	return nil
}

// Request resolves raw parameters into a CommandRequest, applying defaults
// for absent duration and velocity and NOP for an absent command.
func (s *DispatcherService) Request(p CommandParams) models.CommandRequest {
	req := models.CommandRequest{
		Raw:        models.TokenNop,
		DurationMs: models.DefaultDurationMs,
		Velocity:   models.DefaultVelocity,
	}
	if p.Command != nil {
		req.Raw = *p.Command
	}
	if p.Duration != nil {
		req.DurationMs = ParseIntArg(*p.Duration)
	}
	if p.Velocity != nil {
		req.Velocity = ParseIntArg(*p.Velocity)
	}
	req.Command, _ = models.ParseCommand(req.Raw)
	return req
}

// Dispatch runs a full cycle for p. Unrecognized commands park immediately,
// are acknowledged and skip the delay. Recognized commands act, are
// acknowledged, hold for DurationMs when positive, then park.
//
// A returned error means the pin could not be driven. Ack errors (typically a
// client that went away) are logged and do not stop the cycle.
func (s *DispatcherService) Dispatch(ctx context.Context, p CommandParams, ack AckFunc) (models.CommandResult, error) {
	if ack == nil {
		return models.CommandResult{}, errNilAck
	}
	s.cycle.Lock()
	defer s.cycle.Unlock()

	started := time.Now()
	req := s.Request(p)
	s.setBusy(true, req)
	defer s.setBusy(false, req)

	// The journal entry is written after the cycle, when the request
	// context may already be cancelled by a disconnected client.
	journalCtx := context.WithoutCancel(ctx)

	if !req.Recognized() {
		if err := s.dev.Park(); err != nil {
			s.metrics.ObserveCommand(req.Command.String(), metrics.OutcomeFailed, time.Since(started))
			return models.CommandResult{Request: req}, err
		}
		res := models.CommandResult{Request: req, Accepted: false, Level: device.LevelString(s.dev.Level())}
		s.acknowledge(ack, res)
		s.finish(journalCtx, res, res.Level, started)
		return res, nil
	}

	if err := s.actuate(req); err != nil {
		s.metrics.ObserveCommand(req.Command.String(), metrics.OutcomeFailed, time.Since(started))
		return models.CommandResult{Request: req, Accepted: true}, err
	}
	res := models.CommandResult{Request: req, Accepted: true, Level: device.LevelString(s.dev.Level())}
	s.metrics.SetPinLevel(res.Level == models.LevelHigh)
	s.hub.Publish(Update{Kind: UpdateState})
	s.acknowledge(ack, res)

	if req.DurationMs > 0 {
		s.sleep(time.Duration(req.DurationMs) * time.Millisecond)
	}

	if err := s.dev.Park(); err != nil {
		s.metrics.ObserveCommand(req.Command.String(), metrics.OutcomeFailed, time.Since(started))
		return res, fmt.Errorf("park after %s: %w", req.Raw, err)
	}
	s.finish(journalCtx, res, device.LevelString(s.dev.Level()), started)
	return res, nil
}

// Status reports the last resolved request and whether a cycle is running.
func (s *DispatcherService) Status() (last models.CommandRequest, ok bool, busy bool) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	if s.last == nil {
		return models.CommandRequest{}, false, s.busy
	}
	return *s.last, true, s.busy
}

func (s *DispatcherService) actuate(req models.CommandRequest) error {
	switch req.Command {
	case models.CommandMoveForward:
		return s.dev.MoveForward(req.Velocity)
	case models.CommandMoveBackward:
		return s.dev.MoveBackward(req.Velocity)
	case models.CommandTurnRight:
		return s.dev.TurnRight(req.Velocity)
	case models.CommandTurnLeft:
		return s.dev.TurnLeft(req.Velocity)
	case models.CommandPark:
		return s.dev.Park()
	default:
		return fmt.Errorf("no actuator for %s", req.Command)
	}
}

func (s *DispatcherService) acknowledge(ack AckFunc, res models.CommandResult) {
	if err := ack(res); err != nil && s.log != nil {
		s.log.Infow("dispatch_ack_failed", "err", err, "cmd", res.Request.Raw)
	}
}

// finish journals the cycle and updates metrics. parkedLevel is the pin level
// once the cycle has fully completed.
func (s *DispatcherService) finish(ctx context.Context, res models.CommandResult, parkedLevel string, started time.Time) {
	req := res.Request
	outcome := metrics.OutcomeExecuted
	typ := models.EventExecute
	desc := "Executed " + req.Raw
	meta := map[string]any{
		"cmd":          req.Raw,
		"duration_ms":  req.DurationMs,
		"velocity":     req.Velocity,
		"level_parked": parkedLevel,
	}
	switch {
	case !res.Accepted:
		outcome = metrics.OutcomeRejected
		typ = models.EventReject
		desc = "Rejected command " + req.Raw
	case req.Command == models.CommandPark:
		typ = models.EventPark
		desc = "Parked on request"
		meta["level_action"] = res.Level
	default:
		meta["level_action"] = res.Level
	}

	s.metrics.ObserveCommand(req.Command.String(), outcome, time.Since(started))
	s.metrics.SetPinLevel(parkedLevel == models.LevelHigh)
	if s.log != nil {
		s.log.Infow("dispatch_"+outcome, "cmd", req.Raw, "duration_ms", req.DurationMs, "velocity", req.Velocity, "level", parkedLevel)
	}
	s.record(ctx, typ, desc, meta)
}

// record appends a journal entry; failures are logged and otherwise ignored.
func (s *DispatcherService) record(ctx context.Context, typ, desc string, meta map[string]any) {
	if s.eventRepo == nil {
		return
	}
	e := models.RobotEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}
	if err := s.eventRepo.Append(ctx, e); err != nil {
		if s.log != nil {
			s.log.Errorw("event_append_failed", "err", err, "type", typ)
		}
		return
	}
	s.hub.Publish(Update{Kind: UpdateEvent, Event: &e})
}

func (s *DispatcherService) setBusy(busy bool, req models.CommandRequest) {
	s.statusMu.Lock()
	s.busy = busy
	if busy {
		r := req
		s.last = &r
	}
	s.statusMu.Unlock()
	s.metrics.SetBusy(busy)
	s.hub.Publish(Update{Kind: UpdateState})
}
