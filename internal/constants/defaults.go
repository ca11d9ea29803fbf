package constants

import "time"

const (
	// DefaultDeviceID identifies the single hardware endpoint this
	// gateway instance serves.
	DefaultDeviceID = "esp32-main"

	// DefaultHeartbeatInterval is the client ping cycle length.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultStalenessInterval is how often device liveness is evaluated.
	DefaultStalenessInterval = 30 * time.Second

	// DefaultStalenessTimeout is how long the device may stay silent
	// before its status is flipped to disconnected.
	DefaultStalenessTimeout = 60 * time.Second

	// DefaultHistoryLimit caps sensor history query results.
	DefaultHistoryLimit = 100

	// DefaultStoreCapacity bounds the in-memory reading store.
	DefaultStoreCapacity = 10000
)

// Sensor types
const (
	// SensorTypeUnknown is assigned to readings whose message did not
	// declare a sensor type.
	SensorTypeUnknown = "unknown"
)
