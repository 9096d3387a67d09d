package service

import (
	"context"

	"robot_control/internal/device"
	"robot_control/internal/models"
)

const subscriberBuffer = 16

// StatusSource reports the dispatcher's last request and busy flag.
type StatusSource interface {
	Status() (last models.CommandRequest, ok bool, busy bool)
}

type MonitoringService struct {
	dev    *device.Device
	status StatusSource
	hub    *Hub
}

// NewMonitoringService builds snapshots from dev and status. hub may be nil,
// in which case Subscribe yields a channel that never delivers.
func NewMonitoringService(dev *device.Device, status StatusSource, hub *Hub) *MonitoringService {
	return &MonitoringService{dev: dev, status: status, hub: hub}
}

// Subscribe streams change notifications until cancel is called.
func (s *MonitoringService) Subscribe() (<-chan Update, func()) {
	return s.hub.Subscribe(subscriberBuffer)
}

// GetState builds a snapshot from the device cache; the pin itself is not read.
func (s *MonitoringService) GetState(ctx context.Context) (models.RobotState, error) {
	if err := ctx.Err(); err != nil {
		return models.RobotState{}, err
	}
	snap := s.dev.Snapshot()
	st := models.RobotState{
		Pin:       snap.Pin,
		Level:     device.LevelString(snap.Level),
		UpdatedAt: normalizeToUTC(snap.UpdatedAt),
	}
	st.Moving = st.Level == models.LevelHigh
	if s.status != nil {
		last, ok, busy := s.status.Status()
		st.Busy = busy
		if ok {
			st.LastCommand = last.Raw
			st.LastDurationMs = last.DurationMs
			st.LastVelocity = last.Velocity
		}
	}
	return st, nil
}
