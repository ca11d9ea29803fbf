package models

import "time"

// DeviceInfo holds the self-description the ESP32 reports after connecting.
type DeviceInfo struct {
	Name            string   `json:"deviceName,omitempty"`
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
	SensorTypes     []string `json:"sensorTypes,omitempty"`
	BatteryLevel    *float64 `json:"batteryLevel,omitempty"`
	SignalStrength  *float64 `json:"signalStrength,omitempty"`
}

// DeviceStatus is the gateway's view of the single hardware endpoint.
// Connected is true only while a live device connection is registered;
// staleness detection may flip it to false without the transport closing.
type DeviceStatus struct {
	Connected   bool       `json:"connected"`
	LastSeen    *time.Time `json:"lastSeen,omitempty"`
	DeviceInfo  DeviceInfo `json:"deviceInfo"`
	IsStreaming bool       `json:"isStreaming"`
}
