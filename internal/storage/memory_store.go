package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/google/uuid"

	"github.com/hacksphere/esp32-gateway/internal/models"
)

// MemoryStore is a bounded in-memory SensorStore. Readings are kept in
// insertion order so newest-first queries walk the map backwards. When the
// capacity is reached the oldest reading is dropped.
type MemoryStore struct {
	mu       sync.RWMutex
	readings *orderedmap.OrderedMap[string, models.SensorReading]
	capacity int
}

// NewMemoryStore creates a MemoryStore holding at most capacity readings.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{
		readings: orderedmap.NewOrderedMap[string, models.SensorReading](),
		capacity: capacity,
	}
}

// Save appends a reading, evicting the oldest one when full.
func (s *MemoryStore) Save(_ context.Context, reading models.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.readings.Len() >= s.capacity {
		front := s.readings.Front()
		if front == nil {
			break
		}
		s.readings.Delete(front.Key)
	}

	s.readings.Set(uuid.NewString(), reading)
	return nil
}

// Query returns up to limit readings matching the filter, newest first.
// Concurrent saves can land slightly out of send order, so newest-first is
// enforced by reading timestamp rather than insertion order.
func (s *MemoryStore) Query(_ context.Context, filter Filter, limit int) ([]models.SensorReading, error) {
	s.mu.RLock()
	results := make([]models.SensorReading, 0, s.readings.Len())
	for el := s.readings.Back(); el != nil; el = el.Prev() {
		if matches(el.Value, filter) {
			results = append(results, el.Value)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Len reports how many readings are currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings.Len()
}

func matches(r models.SensorReading, f Filter) bool {
	if f.DeviceID != "" && r.DeviceID != f.DeviceID {
		return false
	}
	if f.SensorType != "" && r.SensorType != f.SensorType {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	return true
}
