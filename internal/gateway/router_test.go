package gateway

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/storage"
)

func newTestRouter(t *testing.T) (*Router, *Registry, *storage.MemoryStore) {
	t.Helper()
	registry := NewRegistry(zerolog.Nop(), nil)
	store := storage.NewMemoryStore(100)
	pipeline := NewPipeline(registry, store, "esp32-main", zerolog.Nop())
	relay := NewRelay(registry, zerolog.Nop())
	router := NewRouter(registry, pipeline, relay, store, "esp32-main", 10, zerolog.Nop())
	return router, registry, store
}

// TestRouter_DeviceInfoBroadcast verifies the device self-description is
// stored and fanned out to every connected client.
func TestRouter_DeviceInfoBroadcast(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	registry.RegisterDevice(newFakeConn())
	c1 := newFakeConn()
	c2 := newFakeConn()
	registry.RegisterClient("user-1", c1)
	registry.RegisterClient("user-2", c2)

	frame := []byte(`{"type":"device-info","deviceName":"S1","firmwareVersion":"1.2.3","sensorTypes":["temp"]}`)
	router.HandleDeviceFrame(websocket.TextMessage, frame)

	status := registry.Status()
	assert.Equal(t, "S1", status.DeviceInfo.Name)
	assert.Equal(t, []string{"temp"}, status.DeviceInfo.SensorTypes)

	for _, conn := range []*fakeConn{c1, c2} {
		msgs := conn.messagesOfType(t, constants.TypeDeviceInfoUpdate)
		require.Len(t, msgs, 1)
		info := msgs[0]["deviceInfo"].(map[string]any)
		assert.Equal(t, "S1", info["deviceName"])
		assert.Equal(t, []any{"temp"}, info["sensorTypes"])
	}
}

// TestRouter_SensorDataFeedsPipeline verifies a structured sensor frame
// reaches the store and the clients.
func TestRouter_SensorDataFeedsPipeline(t *testing.T) {
	router, registry, store := newTestRouter(t)

	clientConn := newFakeConn()
	registry.RegisterClient("user-1", clientConn)

	frame := []byte(`{"type":"sensor-data","sensorType":"humidity","data":{"v":55}}`)
	router.HandleDeviceFrame(websocket.TextMessage, frame)

	require.Len(t, clientConn.messagesOfType(t, constants.TypeSensorData), 1)
	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 10*time.Millisecond)
}

// TestRouter_BinaryFrameBecomesAudioData verifies raw binary frames are
// wrapped and broadcast without touching the store.
func TestRouter_BinaryFrameBecomesAudioData(t *testing.T) {
	router, registry, store := newTestRouter(t)

	clientConn := newFakeConn()
	registry.RegisterClient("user-1", clientConn)

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	router.HandleDeviceFrame(websocket.BinaryMessage, payload)

	msgs := clientConn.messagesOfType(t, constants.TypeAudioData)
	require.Len(t, msgs, 1)
	assert.Equal(t, float64(4), msgs[0]["size"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), msgs[0]["data"])
	assert.Equal(t, 0, store.Len())
}

// TestRouter_StatusUpdateBroadcast verifies incremental health updates are
// merged into the status and relayed to clients.
func TestRouter_StatusUpdateBroadcast(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	registry.RegisterDevice(newFakeConn())
	clientConn := newFakeConn()
	registry.RegisterClient("user-1", clientConn)

	frame := []byte(`{"type":"status-update","batteryLevel":42.5,"isStreaming":true}`)
	router.HandleDeviceFrame(websocket.TextMessage, frame)

	status := registry.Status()
	require.NotNil(t, status.DeviceInfo.BatteryLevel)
	assert.Equal(t, 42.5, *status.DeviceInfo.BatteryLevel)
	assert.True(t, status.IsStreaming)

	msgs := clientConn.messagesOfType(t, constants.TypeStatusUpdateEvent)
	require.Len(t, msgs, 1)
	assert.Equal(t, 42.5, msgs[0]["batteryLevel"])
	assert.Equal(t, true, msgs[0]["isStreaming"])
}

// TestRouter_DevicePingAnswered verifies the application-level device ping
// gets a pong and refreshes liveness.
func TestRouter_DevicePingAnswered(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	device := newFakeConn()
	registry.RegisterDevice(device)

	router.HandleDeviceFrame(websocket.TextMessage, []byte(`{"type":"ping"}`))

	msgs := device.messagesOfType(t, constants.TypePong)
	assert.Len(t, msgs, 1)
	assert.NotNil(t, registry.Status().LastSeen)
}

// TestRouter_MalformedAndUnknownDeviceFrames verifies bad frames are dropped
// without side effects.
func TestRouter_MalformedAndUnknownDeviceFrames(t *testing.T) {
	router, registry, store := newTestRouter(t)

	clientConn := newFakeConn()
	registry.RegisterClient("user-1", clientConn)

	router.HandleDeviceFrame(websocket.TextMessage, []byte(`{not json`))
	router.HandleDeviceFrame(websocket.TextMessage, []byte(`{"type":"mystery"}`))

	assert.Empty(t, clientConn.textFrames())
	assert.Equal(t, 0, store.Len())
}

// TestRouter_ClientPingMarksAliveAndReplies verifies the application-level
// ping answers with a pong and refreshes the heartbeat flag.
func TestRouter_ClientPingMarksAliveAndReplies(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	conn := newFakeConn()
	client := registry.RegisterClient("user-1", conn)
	client.resetAlive()

	router.HandleClientFrame(client, websocket.TextMessage, []byte(`{"type":"ping"}`))

	assert.Len(t, conn.messagesOfType(t, constants.TypePong), 1)
	assert.True(t, client.resetAlive(), "ping must refresh the alive flag")
}

// TestRouter_GetStatusReturnsSnapshot verifies the on-demand status query.
func TestRouter_GetStatusReturnsSnapshot(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	registry.RegisterDevice(newFakeConn())
	conn := newFakeConn()
	client := registry.RegisterClient("user-1", conn)

	router.HandleClientFrame(client, websocket.TextMessage, []byte(`{"type":"get-esp32-status"}`))

	msgs := conn.messagesOfType(t, constants.TypeStatusResponse)
	require.Len(t, msgs, 1)
	status := msgs[0]["status"].(map[string]any)
	assert.Equal(t, true, status["connected"])
}

// TestRouter_HistoryRequestClampsLimit verifies newest-first history with
// the configured cap applied to oversized requests.
func TestRouter_HistoryRequestClampsLimit(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	for i := 0; i < 15; i++ {
		router.HandleDeviceFrame(websocket.TextMessage,
			[]byte(`{"type":"sensor-data","sensorType":"temp","data":{"v":1}}`))
	}

	conn := newFakeConn()
	client := registry.RegisterClient("user-1", conn)

	// Wait for the async persists to land before querying.
	assert.Eventually(t, func() bool {
		return router.Store.(*storage.MemoryStore).Len() == 15
	}, time.Second, 10*time.Millisecond)

	router.HandleClientFrame(client, websocket.TextMessage,
		[]byte(`{"type":"get-sensor-data","limit":500}`))

	msgs := conn.messagesOfType(t, constants.TypeSensorHistory)
	require.Len(t, msgs, 1)
	assert.Equal(t, float64(10), msgs[0]["count"], "limit must clamp to the configured maximum")
}

// TestRouter_HistoryRequestFiltersSensorType verifies the sensorType filter.
func TestRouter_HistoryRequestFiltersSensorType(t *testing.T) {
	router, registry, store := newTestRouter(t)

	router.HandleDeviceFrame(websocket.TextMessage,
		[]byte(`{"type":"sensor-data","sensorType":"temp","data":{"v":20}}`))
	router.HandleDeviceFrame(websocket.TextMessage,
		[]byte(`{"type":"sensor-data","sensorType":"humidity","data":{"v":60}}`))

	assert.Eventually(t, func() bool { return store.Len() == 2 }, time.Second, 10*time.Millisecond)

	conn := newFakeConn()
	client := registry.RegisterClient("user-1", conn)

	router.HandleClientFrame(client, websocket.TextMessage,
		[]byte(`{"type":"get-sensor-data","sensorType":"humidity"}`))

	msgs := conn.messagesOfType(t, constants.TypeSensorHistory)
	require.Len(t, msgs, 1)
	assert.Equal(t, float64(1), msgs[0]["count"])
	readings := msgs[0]["data"].([]any)
	require.Len(t, readings, 1)
	assert.Equal(t, "humidity", readings[0].(map[string]any)["sensorType"])
}

// TestRouter_UnknownClientTypeDropped verifies unrecognized client messages
// get no reply at all.
func TestRouter_UnknownClientTypeDropped(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	conn := newFakeConn()
	client := registry.RegisterClient("user-1", conn)

	router.HandleClientFrame(client, websocket.TextMessage, []byte(`{"type":"subscribe"}`))
	router.HandleClientFrame(client, websocket.TextMessage, []byte(`not json`))

	assert.Empty(t, conn.textFrames())
}
