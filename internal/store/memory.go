// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitalmesh/sentinel/api/schemas"
)

// MemoryStore is a mutex-guarded in-memory backend. It backs tests, local
// development, and the default configuration.
type MemoryStore struct {
	mu      sync.RWMutex
	samples map[string][]schemas.Sample // device ID -> samples, unsorted
	devices map[string][]schemas.Device // user ID -> devices
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples: make(map[string][]schemas.Sample),
		devices: make(map[string][]schemas.Device),
	}
}

// AddSamples appends telemetry samples for later queries.
func (m *MemoryStore) AddSamples(samples ...schemas.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.samples[s.DeviceID] = append(m.samples[s.DeviceID], s)
	}
}

// AddDevices registers devices for a user.
func (m *MemoryStore) AddDevices(userID string, devices ...schemas.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range devices {
		devices[i].UserID = userID
	}
	m.devices[userID] = append(m.devices[userID], devices...)
}

// Query implements TelemetryStore.
func (m *MemoryStore) Query(_ context.Context, deviceID, metric string, from, to time.Time) ([]schemas.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schemas.Sample
	for _, s := range m.samples[deviceID] {
		if metric != "" && s.Metric != metric {
			continue
		}
		if s.RecordedAt.Before(from) || !s.RecordedAt.Before(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

// UserDevices implements DeviceRegistry.
func (m *MemoryStore) UserDevices(_ context.Context, userID, deviceID string) ([]schemas.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := m.devices[userID]
	if deviceID == "" {
		out := make([]schemas.Device, len(devices))
		copy(out, devices)
		return out, nil
	}
	for _, d := range devices {
		if d.ID == deviceID {
			return []schemas.Device{d}, nil
		}
	}
	return nil, nil
}

// Close implements Store. The memory backend holds no external resources.
func (m *MemoryStore) Close() {}
