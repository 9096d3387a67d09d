package handlers

import (
	"context"
	"sync"
	"time"

	"robot_control/internal/models"
	"robot_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockDispatcher struct {
	mu sync.Mutex

	// result is acknowledged unless ackSkip is set.
	result  models.CommandResult
	ackSkip bool
	err     error
	// afterAck runs between the ack and the return, standing in for the delay.
	afterAck func()

	calls   int
	last    service.CommandParams
	lastErr error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, p service.CommandParams, ack service.AckFunc) (models.CommandResult, error) {
	m.mu.Lock()
	m.calls++
	m.last = p
	m.mu.Unlock()

	if !m.ackSkip {
		m.lastErr = ack(m.result)
	}
	if m.afterAck != nil {
		m.afterAck()
	}
	return m.result, m.err
}

type mockMonitoring struct {
	state models.RobotState
	err   error
	// updates is handed to every subscriber; nil never delivers.
	updates chan service.Update
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.RobotState, error) {
	return m.state, m.err
}

func (m *mockMonitoring) Subscribe() (<-chan service.Update, func()) {
	return m.updates, func() {}
}

type mockEventLog struct {
	resp     []models.RobotEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.RobotEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func newTestAdminRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitAdminRoutes()
}
