package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
	"github.com/hacksphere/esp32-gateway/internal/storage"
)

// Router decodes inbound frames into typed messages and dispatches them to
// the handlers for the connection class they arrived on. Decode failures
// are logged and never close the connection.
type Router struct {
	Registry     *Registry
	Pipeline     *Pipeline
	Relay        *Relay
	Store        storage.SensorStore
	DeviceID     string
	HistoryLimit int
	Logger       zerolog.Logger
}

// NewRouter initializes a new message router.
func NewRouter(registry *Registry, pipeline *Pipeline, relay *Relay, store storage.SensorStore,
	deviceID string, historyLimit int, logger zerolog.Logger) *Router {

	if historyLimit <= 0 {
		historyLimit = constants.DefaultHistoryLimit
	}
	return &Router{
		Registry:     registry,
		Pipeline:     pipeline,
		Relay:        relay,
		Store:        store,
		DeviceID:     deviceID,
		HistoryLimit: historyLimit,
		Logger:       logger.With().Str("component", "router").Logger(),
	}
}

// HandleDeviceFrame processes one inbound frame from the device. Binary
// frames are streamed raw sensor data and are broadcast without being
// persisted; structured frames dispatch by type.
func (rt *Router) HandleDeviceFrame(messageType int, data []byte) {
	rt.Registry.MarkDeviceSeen()

	if messageType == websocket.BinaryMessage {
		rt.Registry.Broadcast(models.AudioDataMessage{
			Type:      constants.TypeAudioData,
			Data:      data,
			Size:      len(data),
			Timestamp: time.Now(),
		})
		return
	}

	var envelope models.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		rt.Logger.Warn().Err(err).Msg("Malformed device frame, dropping")
		return
	}

	switch envelope.Type {
	case constants.TypeDeviceInfo:
		rt.handleDeviceInfo(data)
	case constants.TypeSensorData:
		rt.handleSensorData(data)
	case constants.TypeStatusUpdate:
		rt.handleStatusUpdate(data)
	case constants.TypePing:
		rt.Registry.SendToDevice(models.PongMessage{Type: constants.TypePong, Timestamp: time.Now()})
	default:
		rt.Logger.Warn().Str("type", envelope.Type).Msg("Unrecognized device message type, dropping")
	}
}

func (rt *Router) handleDeviceInfo(data []byte) {
	var msg models.DeviceInfoMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		rt.Logger.Warn().Err(err).Msg("Malformed device-info message, dropping")
		return
	}

	// Firmware versions are stored verbatim; the device is trusted even
	// when it reports something unparsable.
	if msg.FirmwareVersion != "" {
		if _, err := semver.NewVersion(msg.FirmwareVersion); err != nil {
			rt.Logger.Warn().Str("firmware", msg.FirmwareVersion).Msg("Device reported non-semver firmware version")
		}
	}

	rt.Registry.SetDeviceInfo(msg.DeviceInfo)
	rt.Logger.Info().Str("device_name", msg.Name).Strs("sensor_types", msg.SensorTypes).Msg("Device info updated")

	rt.Registry.Broadcast(models.DeviceInfoBroadcast{
		Type:       constants.TypeDeviceInfoUpdate,
		DeviceInfo: msg.DeviceInfo,
		Timestamp:  time.Now(),
	})
}

func (rt *Router) handleSensorData(data []byte) {
	var msg models.SensorDataMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		rt.Logger.Warn().Err(err).Msg("Malformed sensor-data message, dropping")
		return
	}
	rt.Pipeline.Ingest(msg)
}

func (rt *Router) handleStatusUpdate(data []byte) {
	var msg models.StatusUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		rt.Logger.Warn().Err(err).Msg("Malformed status-update message, dropping")
		return
	}

	rt.Registry.ApplyStatusUpdate(msg.BatteryLevel, msg.SignalStrength, msg.IsStreaming)

	rt.Registry.Broadcast(models.StatusUpdateBroadcast{
		Type:           constants.TypeStatusUpdateEvent,
		BatteryLevel:   msg.BatteryLevel,
		SignalStrength: msg.SignalStrength,
		IsStreaming:    msg.IsStreaming,
		Timestamp:      time.Now(),
	})
}

// HandleClientFrame processes one inbound frame from an authenticated
// client. Unrecognized types are dropped without a reply.
func (rt *Router) HandleClientFrame(client *Client, _ int, data []byte) {
	var envelope models.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		rt.Logger.Warn().Err(err).Str("user_id", client.Identity()).Msg("Malformed client frame, dropping")
		return
	}

	switch envelope.Type {
	case constants.TypePing:
		client.MarkAlive()
		rt.Registry.SendToClient(client.Identity(), models.PongMessage{
			Type:      constants.TypePong,
			Timestamp: time.Now(),
		})
	case constants.TypeGetStatus:
		rt.Registry.SendToClient(client.Identity(), models.StatusMessage{
			Type:      constants.TypeStatusResponse,
			Status:    rt.Registry.Status(),
			Timestamp: time.Now(),
		})
	case constants.TypeGetSensorData:
		rt.handleHistoryRequest(client, data)
	case constants.TypeControl:
		rt.handleControl(client, data)
	default:
		// Unknown client message types are silently dropped.
	}
}

func (rt *Router) handleHistoryRequest(client *Client, data []byte) {
	var req models.HistoryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		rt.Logger.Warn().Err(err).Str("user_id", client.Identity()).Msg("Malformed history request, dropping")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > rt.HistoryLimit {
		limit = rt.HistoryLimit
	}

	filter := storage.Filter{
		DeviceID:   rt.DeviceID,
		SensorType: req.SensorType,
	}
	if req.From != nil {
		filter.From = *req.From
	}
	if req.To != nil {
		filter.To = *req.To
	}

	readings, err := rt.Store.Query(context.Background(), filter, limit)
	if err != nil {
		rt.Logger.Error().Err(err).Str("user_id", client.Identity()).Msg("Sensor history query failed")
		rt.Registry.SendToClient(client.Identity(), models.ErrorMessage{
			Type:      constants.TypeError,
			Message:   "Failed to fetch sensor data history",
			Timestamp: time.Now(),
		})
		return
	}

	rt.Registry.SendToClient(client.Identity(), models.HistoryResponse{
		Type:     constants.TypeSensorHistory,
		Readings: readings,
		Count:    len(readings),
	})
}

func (rt *Router) handleControl(client *Client, data []byte) {
	var msg models.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		rt.Logger.Warn().Err(err).Str("user_id", client.Identity()).Msg("Malformed control message, dropping")
		return
	}
	rt.Relay.Relay(client, msg)
}
