package gateway

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
)

// TestRegistry_RegisterDevice_ReplacesExisting verifies the at-most-one-device
// invariant: registering a second device forcibly closes the first.
func TestRegistry_RegisterDevice_ReplacesExisting(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	first := newFakeConn()
	second := newFakeConn()

	registry.RegisterDevice(first)
	assert.True(t, registry.DeviceConnected())
	assert.True(t, registry.Status().Connected)

	registry.RegisterDevice(second)
	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.True(t, registry.DeviceConnected())
}

// TestRegistry_ClearDevice_GuardsAgainstStaleHandle verifies that a close
// from a replaced device connection cannot evict its successor.
func TestRegistry_ClearDevice_GuardsAgainstStaleHandle(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	first := newFakeConn()
	second := newFakeConn()

	registry.RegisterDevice(first)
	registry.RegisterDevice(second)

	// The read loop of the replaced connection reports its closure late.
	assert.False(t, registry.ClearDevice(first))
	assert.True(t, registry.DeviceConnected())

	assert.True(t, registry.ClearDevice(second))
	assert.False(t, registry.DeviceConnected())
	assert.False(t, registry.Status().Connected)
	assert.False(t, registry.Status().IsStreaming)

	// Clearing again is idempotent.
	assert.False(t, registry.ClearDevice(nil))
}

// TestRegistry_RegisterClient_ReplacesSameIdentity verifies the
// at-most-one-connection-per-identity invariant.
func TestRegistry_RegisterClient_ReplacesSameIdentity(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	first := newFakeConn()
	second := newFakeConn()

	registry.RegisterClient("user-1", first)
	registry.RegisterClient("user-1", second)

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, registry.ClientCount())
}

// TestRegistry_RemoveClient_GuardsAgainstStaleHandle mirrors the device
// guard for clients: a stale close cannot remove the replacement.
func TestRegistry_RemoveClient_GuardsAgainstStaleHandle(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	first := newFakeConn()
	second := newFakeConn()

	registry.RegisterClient("user-1", first)
	registry.RegisterClient("user-1", second)

	assert.False(t, registry.RemoveClient("user-1", first))
	assert.Equal(t, 1, registry.ClientCount())

	assert.True(t, registry.RemoveClient("user-1", second))
	assert.Equal(t, 0, registry.ClientCount())
	assert.False(t, registry.RemoveClient("user-1", nil))
}

// TestRegistry_Broadcast_ContinuesPastFailingClient verifies that one
// failing send drops only that client and the rest still receive.
func TestRegistry_Broadcast_ContinuesPastFailingClient(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	good1 := newFakeConn()
	bad := newFakeConn()
	good2 := newFakeConn()

	registry.RegisterClient("user-1", good1)
	registry.RegisterClient("user-2", bad)
	registry.RegisterClient("user-3", good2)
	bad.setFailWrites(true)

	delivered := registry.Broadcast(models.PongMessage{Type: constants.TypePong})

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 2, registry.ClientCount())
	assert.Len(t, good1.textFrames(), 1)
	assert.Len(t, good2.textFrames(), 1)
	assert.True(t, bad.isClosed())
}

// TestRegistry_SendToDevice_ReportsOutcome covers the boolean contract of
// targeted sends.
func TestRegistry_SendToDevice_ReportsOutcome(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	assert.False(t, registry.SendToDevice(models.PongMessage{Type: constants.TypePong}))

	device := newFakeConn()
	registry.RegisterDevice(device)
	assert.True(t, registry.SendToDevice(models.PongMessage{Type: constants.TypePong}))
	assert.Len(t, device.textFrames(), 1)

	device.setFailWrites(true)
	assert.False(t, registry.SendToDevice(models.PongMessage{Type: constants.TypePong}))
}

// TestRegistry_SendToClient_ReportsOutcome covers the client-side boolean
// contract.
func TestRegistry_SendToClient_ReportsOutcome(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	assert.False(t, registry.SendToClient("user-1", models.PongMessage{Type: constants.TypePong}))

	conn := newFakeConn()
	registry.RegisterClient("user-1", conn)
	assert.True(t, registry.SendToClient("user-1", models.PongMessage{Type: constants.TypePong}))

	conn.setFailWrites(true)
	assert.False(t, registry.SendToClient("user-1", models.PongMessage{Type: constants.TypePong}))
}

// TestRegistry_StatusUpdates exercises the status mutators.
func TestRegistry_StatusUpdates(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	assert.False(t, registry.Status().Connected)
	assert.Nil(t, registry.Status().LastSeen)

	registry.RegisterDevice(newFakeConn())
	assert.NotNil(t, registry.Status().LastSeen)

	battery := 87.5
	streaming := true
	registry.ApplyStatusUpdate(&battery, nil, &streaming)

	status := registry.Status()
	assert.Equal(t, &battery, status.DeviceInfo.BatteryLevel)
	assert.Nil(t, status.DeviceInfo.SignalStrength)
	assert.True(t, status.IsStreaming)

	assert.True(t, registry.MarkDeviceOffline())
	assert.False(t, registry.MarkDeviceOffline())

	status = registry.Status()
	assert.False(t, status.Connected)
	assert.False(t, status.IsStreaming)
}

// TestRegistry_StaleDeviceRecoversOnNextFrame verifies that a device marked
// offline by staleness flips back to connected when frames resume, but only
// while its transport is still registered.
func TestRegistry_StaleDeviceRecoversOnNextFrame(t *testing.T) {
	registry := NewRegistry(zerolog.Nop(), nil)

	device := newFakeConn()
	registry.RegisterDevice(device)
	require.True(t, registry.MarkDeviceOffline())

	registry.MarkDeviceSeen()
	assert.True(t, registry.Status().Connected)

	// Without a registered transport the status stays offline.
	registry.ClearDevice(device)
	registry.MarkDeviceSeen()
	assert.False(t, registry.Status().Connected)
}
