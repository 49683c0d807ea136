package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/internal/provider"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*MockProvider)(nil)

// MockProvider is an in-memory Provider implementation for testing. Rows are
// kept in their stored shape (with pk/sk) so callers exercise shaping.
type MockProvider struct {
	mu      sync.Mutex
	details map[string]types.Record
	current map[string]types.Record
	history map[string][]types.Record
	seq     int

	// Err fields, when set, are returned by the matching operation.
	RegisterErr    error
	ReportErr      error
	ListDevicesErr error
	GetDeviceErr   error
	PingErr        error

	registerCalls int
	reportCalls   int
}

// NewMockProvider creates a new in-memory mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		details: make(map[string]types.Record),
		current: make(map[string]types.Record),
		history: make(map[string][]types.Record),
	}
}

func (m *MockProvider) Register(_ context.Context, deviceID string, totalLevels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerCalls++
	if m.RegisterErr != nil {
		return m.RegisterErr
	}
	if _, ok := m.details[deviceID]; ok {
		return nil
	}
	m.details[deviceID] = types.Record{
		keys.AttrPK:          keys.DeviceKey(deviceID),
		keys.AttrSK:          keys.Details,
		keys.AttrTotalLevels: int64(totalLevels),
	}
	m.current[deviceID] = types.Record{
		keys.AttrPK:          keys.ReportCurrent,
		keys.AttrSK:          keys.DeviceKey(deviceID),
		keys.AttrTotalLevels: int64(totalLevels),
	}
	return nil
}

func (m *MockProvider) Report(_ context.Context, deviceID string, fillLevel int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportCalls++
	if m.ReportErr != nil {
		return m.ReportErr
	}
	m.seq++
	m.history[deviceID] = append([]types.Record{{
		keys.AttrPK:        keys.DeviceKey(deviceID),
		keys.AttrSK:        keys.ReportSortKey(padSeq(m.seq)),
		keys.AttrFillLevel: int64(fillLevel),
	}}, m.history[deviceID]...)

	cur, ok := m.current[deviceID]
	if !ok {
		cur = types.Record{keys.AttrPK: keys.ReportCurrent, keys.AttrSK: keys.DeviceKey(deviceID)}
	}
	cur = cur.Clone()
	cur[keys.AttrFillLevel] = int64(fillLevel)
	m.current[deviceID] = cur
	return nil
}

func (m *MockProvider) ListDevices(_ context.Context) ([]types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListDevicesErr != nil {
		return nil, m.ListDevicesErr
	}
	ids := make([]string, 0, len(m.current))
	for id := range m.current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]types.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.current[id].Clone())
	}
	return out, nil
}

func (m *MockProvider) GetDevice(_ context.Context, deviceID string) (types.Record, []types.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetDeviceErr != nil {
		return nil, nil, m.GetDeviceErr
	}
	d, ok := m.details[deviceID]
	if !ok {
		return nil, nil, types.NewError(types.CodeDeviceNotFound, types.MsgDeviceNotFound, types.ErrDeviceNotFound)
	}
	hist := make([]types.Record, 0, len(m.history[deviceID]))
	for _, h := range m.history[deviceID] {
		hist = append(hist, h.Clone())
	}
	return d.Clone(), hist, nil
}

func (m *MockProvider) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

// SeedCurrent stores a raw current status row, bypassing Register.
func (m *MockProvider) SeedCurrent(deviceID string, rec types.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[deviceID] = rec.Clone()
}

// RegisterCalls returns how many times Register was invoked.
func (m *MockProvider) RegisterCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerCalls
}

// ReportCalls returns how many times Report was invoked.
func (m *MockProvider) ReportCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reportCalls
}

func padSeq(n int) string {
	const width = 9
	s := []byte("000000000")
	for i := width - 1; i >= 0 && n > 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}
