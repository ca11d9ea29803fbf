package storage

import (
	"context"
	"time"

	"github.com/hacksphere/esp32-gateway/internal/models"
)

// Filter narrows a sensor history query. Zero values match everything.
type Filter struct {
	DeviceID   string
	SensorType string
	From       time.Time
	To         time.Time
}

// SensorStore is the durable interface for sensor readings. Save appends a
// single reading; Query returns matching readings ordered newest-first.
type SensorStore interface {
	Save(ctx context.Context, reading models.SensorReading) error
	Query(ctx context.Context, filter Filter, limit int) ([]models.SensorReading, error)
}
