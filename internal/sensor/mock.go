package sensor

import (
	"context"
	"sync"

	"chronolens/internal/service"
)

// MockSensor is a scripted sensor for tests. Each Poll consumes the next
// queued observation; when the queue is exhausted the last observation
// repeats, matching a user who keeps the same window focused.
type MockSensor struct {
	pollErr     error
	idleErr     error
	queue       []*service.Observation
	last        *service.Observation
	idleSeconds float64
	supported   bool
	mu          sync.Mutex
}

// NewMockSensor creates a supported mock with an empty script.
func NewMockSensor() *MockSensor {
	return &MockSensor{supported: true}
}

// Queue appends observations to the script. A nil observation simulates a
// tick where the sensor saw nothing.
func (m *MockSensor) Queue(observations ...*service.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, observations...)
}

// SetIdle sets the idle time reported by subsequent IdleSeconds calls.
func (m *MockSensor) SetIdle(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleSeconds = seconds
}

// SetSupported overrides the platform capability check.
func (m *MockSensor) SetSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supported = supported
}

// SetPollError makes every subsequent Poll fail with err.
func (m *MockSensor) SetPollError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollErr = err
}

// SetIdleError makes every subsequent IdleSeconds fail with err.
func (m *MockSensor) SetIdleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleErr = err
}

// Poll returns the next scripted observation.
func (m *MockSensor) Poll(_ context.Context) (*service.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pollErr != nil {
		return nil, m.pollErr
	}
	if len(m.queue) > 0 {
		m.last = m.queue[0]
		m.queue = m.queue[1:]
	}
	return m.last, nil
}

// IdleSeconds returns the scripted idle time.
func (m *MockSensor) IdleSeconds(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idleErr != nil {
		return 0, m.idleErr
	}
	return m.idleSeconds, nil
}

// Supported reports the scripted capability flag.
func (m *MockSensor) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}
