package service

import (
	"context"
	"time"

	"robot_control/internal/device"
	"robot_control/internal/logger"
	"robot_control/internal/metrics"
	"robot_control/internal/models"
	"robot_control/internal/repository"
)

// Dispatcher validates and executes movement commands, one cycle at a time.
type Dispatcher interface {
	Dispatch(ctx context.Context, p CommandParams, ack AckFunc) (models.CommandResult, error)
}

// Monitoring exposes a read-only snapshot of the robot and a feed of changes.
type Monitoring interface {
	GetState(ctx context.Context) (models.RobotState, error)
	Subscribe() (<-chan Update, func())
}

// EventLog exposes the command journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.RobotEvent, error)
}

// Sampler runs the background loop that publishes the pin level.
// Stop via context cancellation for graceful shutdown.
type Sampler interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Dispatcher
	Monitoring
	EventLog
	Sampler

	// Startup runs the device power-on sequence; nil in handler tests.
	Startup func(ctx context.Context) error
}

// NewService wires the device, the journal and metrics into concrete services.
// The dispatcher and monitoring share a hub so live clients see every cycle.
func NewService(repos *repository.Repository, dev *device.Device, m *metrics.Metrics, log *logger.Logger) *Service {
	hub := NewHub()
	dispatcher := NewDispatcherService(dev, repos.EventRepo, m, log).WithHub(hub)
	return &Service{
		Dispatcher: dispatcher,
		Monitoring: NewMonitoringService(dev, dispatcher, hub),
		EventLog:   NewEventLogService(repos.EventRepo),
		Sampler:    NewSamplerService(dev, m, log),
		Startup:    dispatcher.Startup,
	}
}
