package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"robot_control/internal/models"
	"robot_control/internal/repository"
)

var (
	// ErrInvalidTimeRange is returned when From is after To.
	ErrInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	// ErrUnknownEventType is returned for a type filter the dispatcher never journals.
	ErrUnknownEventType = errors.New("unknown event type")
)

// journalTypes lists every event type the dispatcher writes.
var journalTypes = map[string]struct{}{
	models.EventStartup: {},
	models.EventExecute: {},
	models.EventReject:  {},
	models.EventPark:    {},
}

// EventLogService reads the command journal written by the dispatcher.
type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// normalize returns f with both bounds in UTC and the type upper-cased.
// A filter for a type the journal cannot contain is rejected rather than
// silently answered with an empty list.
func (f LogFilter) normalize() (LogFilter, error) {
	out := LogFilter{
		From: normalizeToUTC(f.From),
		To:   normalizeToUTC(f.To),
		Type: strings.ToUpper(strings.TrimSpace(f.Type)),
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return LogFilter{}, ErrInvalidTimeRange
	}
	if out.Type != "" {
		if _, ok := journalTypes[out.Type]; !ok {
			return LogFilter{}, fmt.Errorf("%w: %q", ErrUnknownEventType, f.Type)
		}
	}
	return out, nil
}

// List returns journal entries matching f in ascending time order.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.RobotEvent, error) {
	nf, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, nf.From, nf.To, nf.Type)
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
