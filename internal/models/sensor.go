package models

import (
	"encoding/json"
	"time"
)

// ReadingMetadata carries device health captured alongside a reading.
type ReadingMetadata struct {
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	SignalStrength *float64 `json:"signalStrength,omitempty"`
}

// SensorReading is a single persisted measurement from the device.
// Readings are immutable once created.
type SensorReading struct {
	DeviceID   string          `json:"deviceId"`
	SensorType string          `json:"sensorType"`
	Payload    json.RawMessage `json:"payload"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   ReadingMetadata `json:"metadata"`
}
