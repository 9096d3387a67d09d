package service

import (
	"context"
	"time"

	"robot_control/internal/device"
	"robot_control/internal/logger"
	"robot_control/internal/metrics"

	"periph.io/x/conn/v3/gpio"
)

// SamplerService periodically publishes the cached pin level as a gauge.
type SamplerService struct {
	dev     *device.Device
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewSamplerService(dev *device.Device, m *metrics.Metrics, log *logger.Logger) *SamplerService {
	return &SamplerService{dev: dev, metrics: m, log: log}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SamplerService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	prev := s.sample(gpio.Level(!s.dev.Level()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			prev = s.sample(prev)
		}
	}
}

// sample publishes the current level and logs transitions since prev.
func (s *SamplerService) sample(prev gpio.Level) gpio.Level {
	l := s.dev.Level()
	s.metrics.SetPinLevel(l == gpio.High)
	if l != prev && s.log != nil {
		s.log.Debugw("pin_level_sampled", "level", device.LevelString(l))
	}
	return l
}
