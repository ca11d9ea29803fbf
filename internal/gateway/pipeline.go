package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
	"github.com/hacksphere/esp32-gateway/internal/storage"
)

// ReadingSink receives every reading the pipeline accepts, after the store.
// Used for best-effort export; a sink must never block.
type ReadingSink interface {
	Record(reading models.SensorReading)
}

// Pipeline validates and enriches structured sensor-data messages, persists
// them, and broadcasts them to all clients. Persistence and broadcast are
// independent: the broadcast never waits on the store.
type Pipeline struct {
	Registry *Registry
	Store    storage.SensorStore
	DeviceID string
	Logger   zerolog.Logger

	sink ReadingSink
}

// NewPipeline initializes a new ingestion pipeline for the given device id.
func NewPipeline(registry *Registry, store storage.SensorStore, deviceID string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		Registry: registry,
		Store:    store,
		DeviceID: deviceID,
		Logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// SetSink attaches an optional reading sink. Must be called before the
// gateway starts serving.
func (p *Pipeline) SetSink(sink ReadingSink) {
	p.sink = sink
}

// Ingest turns one sensor-data message into exactly one stored reading and
// exactly one broadcast. The store call runs on its own goroutine; a save
// failure is logged and the broadcast happens regardless. Broadcast order
// follows device-send order because Ingest runs on the single device read
// goroutine.
func (p *Pipeline) Ingest(msg models.SensorDataMessage) {
	sensorType := msg.SensorType
	if sensorType == "" {
		sensorType = constants.SensorTypeUnknown
	}

	status := p.Registry.Status()
	reading := models.SensorReading{
		DeviceID:   p.DeviceID,
		SensorType: sensorType,
		Payload:    msg.Data,
		Timestamp:  time.Now(),
		Metadata: models.ReadingMetadata{
			BatteryLevel:   status.DeviceInfo.BatteryLevel,
			SignalStrength: status.DeviceInfo.SignalStrength,
		},
	}

	go p.persist(reading)

	p.Registry.Broadcast(models.SensorDataBroadcast{
		Type: constants.TypeSensorData,
		Data: reading,
	})
}

func (p *Pipeline) persist(reading models.SensorReading) {
	if err := p.Store.Save(context.Background(), reading); err != nil {
		p.Logger.Error().Err(err).Str("sensor_type", reading.SensorType).Msg("Failed to persist sensor reading")
		if p.Registry.metrics != nil {
			p.Registry.metrics.persistenceFailures.Inc()
		}
		return
	}
	if p.Registry.metrics != nil {
		p.Registry.metrics.readingsPersisted.Inc()
	}
	if p.sink != nil {
		p.sink.Record(reading)
	}
}
