package device

import (
	"sync"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
)

// MockController is an in-memory Controller for tests. It records format
// writes and can be configured to reject specific bit depths, mimicking
// hardware that accepts a rate but not every depth.
type MockController struct {
	mu sync.Mutex

	Devices       []Info
	Current       Format
	RejectDepths  map[int]bool // depths SetFormat refuses
	FailWrites    bool         // all writes fail
	FailReads     bool         // CurrentFormat fails
	SetFormatLog  []Format     // every accepted write, in order
	WriteAttempts int          // SetFormat calls, including failed ones
}

// NewMockController returns a mock with one default device running the
// given format.
func NewMockController(current Format) *MockController {
	return &MockController{
		Devices: []Info{{ID: "mock-out", Name: "Mock Output", IsDefault: true}},
		Current: current,
	}
}

func (m *MockController) ListOutputDevices() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Info, len(m.Devices))
	copy(out, m.Devices)
	return out, nil
}

func (m *MockController) DefaultOutputDevice() (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Devices {
		if m.Devices[i].IsDefault {
			info := m.Devices[i]
			return &info, nil
		}
	}
	return nil, nil
}

func (m *MockController) CurrentFormat(deviceID string) (*Format, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailReads {
		return nil, errors.Newf("mock read failure").
			Component("device").
			Category(errors.CategoryDevice).
			Build()
	}
	f := m.Current
	return &f, nil
}

func (m *MockController) SetFormat(deviceID string, format Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteAttempts++
	if m.FailWrites {
		return errors.Newf("mock write failure").
			Component("device").
			Category(errors.CategoryDeviceFormat).
			Build()
	}
	for _, depth := range CandidateDepths(format.BitDepth) {
		if m.RejectDepths[depth] {
			continue
		}
		applied := Format{SampleRate: format.SampleRate, BitDepth: depth}
		m.Current = applied
		m.SetFormatLog = append(m.SetFormatLog, applied)
		return nil
	}
	return errors.Newf("mock device rejected all depths").
		Component("device").
		Category(errors.CategoryDeviceFormat).
		Context("sample_rate", format.SampleRate).
		Build()
}

// Writes returns the number of accepted format writes.
func (m *MockController) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SetFormatLog)
}

// LastWrite returns the most recently accepted write, or nil.
func (m *MockController) LastWrite() *Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SetFormatLog) == 0 {
		return nil
	}
	f := m.SetFormatLog[len(m.SetFormatLog)-1]
	return &f
}
