package models

import (
	"encoding/json"
	"time"
)

// Envelope is the minimal structured frame shape. Inbound frames are
// decoded against it first to discover the message type, then re-decoded
// into the concrete message struct for that type.
type Envelope struct {
	Type string `json:"type"`
}

// DeviceInfoMessage is sent by the device right after connecting.
type DeviceInfoMessage struct {
	Type string `json:"type"`
	DeviceInfo
}

// SensorDataMessage is a structured measurement from the device.
type SensorDataMessage struct {
	Type       string          `json:"type"`
	SensorType string          `json:"sensorType,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// StatusUpdateMessage reports incremental device health changes.
type StatusUpdateMessage struct {
	Type           string   `json:"type"`
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	SignalStrength *float64 `json:"signalStrength,omitempty"`
	IsStreaming    *bool    `json:"isStreaming,omitempty"`
}

// ControlMessage is a client request to command the device.
type ControlMessage struct {
	Type    string          `json:"type"`
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HistoryRequest is a client query for stored sensor readings.
type HistoryRequest struct {
	Type       string     `json:"type"`
	SensorType string     `json:"sensorType,omitempty"`
	From       *time.Time `json:"from,omitempty"`
	To         *time.Time `json:"to,omitempty"`
	Limit      int        `json:"limit,omitempty"`
}

// ConnectionMessage acknowledges a successful client handshake.
type ConnectionMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionEstablishedMessage acknowledges the device handshake.
type ConnectionEstablishedMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusMessage carries the full device status to clients, both as
// broadcast (esp32-status) and as a query reply (esp32-status-response).
type StatusMessage struct {
	Type      string       `json:"type"`
	Status    DeviceStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// DeviceInfoBroadcast relays refreshed device info to clients.
type DeviceInfoBroadcast struct {
	Type       string     `json:"type"`
	DeviceInfo DeviceInfo `json:"deviceInfo"`
	Timestamp  time.Time  `json:"timestamp"`
}

// StatusUpdateBroadcast relays incremental status changes to clients.
type StatusUpdateBroadcast struct {
	Type           string    `json:"type"`
	BatteryLevel   *float64  `json:"batteryLevel,omitempty"`
	SignalStrength *float64  `json:"signalStrength,omitempty"`
	IsStreaming    *bool     `json:"isStreaming,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// SensorDataBroadcast fans a fresh reading out to all clients.
type SensorDataBroadcast struct {
	Type string        `json:"type"`
	Data SensorReading `json:"data"`
}

// AudioDataMessage wraps raw binary device frames for clients. Data is
// base64-encoded by the JSON marshaller.
type AudioDataMessage struct {
	Type      string    `json:"type"`
	Data      []byte    `json:"data"`
	Size      int       `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse answers a HistoryRequest.
type HistoryResponse struct {
	Type     string          `json:"type"`
	Readings []SensorReading `json:"data"`
	Count    int             `json:"count"`
}

// CommandMessage is forwarded to the device on behalf of a client.
type CommandMessage struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Command     string          `json:"command"`
	Params      json.RawMessage `json:"params,omitempty"`
	RequestedBy string          `json:"requestedBy"`
	Timestamp   time.Time       `json:"timestamp"`
}

// CommandSentMessage acknowledges command relay to the requester.
type CommandSentMessage struct {
	Type      string    `json:"type"`
	CommandID string    `json:"commandId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage reports a request-level failure to a client.
type ErrorMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// PongMessage answers an application-level ping.
type PongMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
