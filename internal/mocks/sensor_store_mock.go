package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hacksphere/esp32-gateway/internal/models"
	"github.com/hacksphere/esp32-gateway/internal/storage"
)

// MockSensorStore is a mock implementation of the storage.SensorStore interface
type MockSensorStore struct {
	mock.Mock
}

func (m *MockSensorStore) Save(ctx context.Context, reading models.SensorReading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}

func (m *MockSensorStore) Query(ctx context.Context, filter storage.Filter, limit int) ([]models.SensorReading, error) {
	args := m.Called(ctx, filter, limit)
	if readings, ok := args.Get(0).([]models.SensorReading); ok {
		return readings, args.Error(1)
	}
	return nil, args.Error(1)
}
