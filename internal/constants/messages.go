package constants

// Message types received from the ESP32 device.
const (
	TypeDeviceInfo   = "device-info"
	TypeSensorData   = "sensor-data"
	TypeStatusUpdate = "status-update"
	TypePing         = "ping"
)

// Message types received from web clients.
const (
	TypeGetStatus     = "get-esp32-status"
	TypeGetSensorData = "get-sensor-data"
	TypeControl       = "control-esp32"
)

// Message types sent to web clients.
const (
	TypeConnection        = "connection"
	TypeStatus            = "esp32-status"
	TypeStatusResponse    = "esp32-status-response"
	TypeDeviceInfoUpdate  = "esp32-device-info"
	TypeStatusUpdateEvent = "esp32-status-update"
	TypeAudioData         = "audio-data"
	TypeSensorHistory     = "sensor-data-history"
	TypeCommandSent       = "command-sent"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message types sent to the ESP32 device.
const (
	TypeConnectionEstablished = "connection-established"
	TypeCommand               = "command"
)
