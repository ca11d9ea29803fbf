package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/models"
)

// Conn is the subset of *websocket.Conn the registry needs. It exists so
// tests can substitute an in-memory connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one authenticated web client connection. The alive flag backs
// the heartbeat eviction cycle: reset at the start of each cycle, set again
// by the next pong.
type Client struct {
	identity  string
	conn      Conn
	alive     atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Identity returns the user id this connection authenticated as.
func (c *Client) Identity() string {
	return c.identity
}

// MarkAlive records a liveness response from the client.
func (c *Client) MarkAlive() {
	c.alive.Store(true)
}

func (c *Client) resetAlive() bool {
	return c.alive.Swap(false)
}

// send writes one text frame. The write mutex guards against concurrent
// writes, which the websocket library does not allow.
func (c *Client) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Registry owns the single device slot, the client connection map, and the
// device status. It is the only place this shared state is mutated.
type Registry struct {
	logger  zerolog.Logger
	metrics *Metrics

	clients cmap.ConcurrentMap[string, *Client]

	deviceMu sync.Mutex
	device   Conn

	statusMu sync.RWMutex
	status   models.DeviceStatus
}

// NewRegistry creates an empty registry. The device starts disconnected.
func NewRegistry(logger zerolog.Logger, metrics *Metrics) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "registry").Logger(),
		metrics: metrics,
		clients: cmap.New[*Client](),
	}
}

// RegisterDevice installs a new device connection. An existing device
// handle is closed first (best-effort, last writer wins).
func (r *Registry) RegisterDevice(conn Conn) {
	r.deviceMu.Lock()
	if r.device != nil {
		r.logger.Warn().Msg("Replacing existing device connection")
		_ = r.device.Close()
	}
	r.device = conn
	r.deviceMu.Unlock()

	now := time.Now()
	r.statusMu.Lock()
	r.status.Connected = true
	r.status.LastSeen = &now
	r.statusMu.Unlock()

	if r.metrics != nil {
		r.metrics.connectionsTotal.WithLabelValues("device").Inc()
	}
	r.logger.Info().Msg("Device connection registered")
}

// ClearDevice removes the device slot and resets the status. When conn is
// non-nil the slot is cleared only if it still holds that handle, so a
// stale close from a replaced connection cannot evict its successor.
// Returns whether the slot was cleared.
func (r *Registry) ClearDevice(conn Conn) bool {
	r.deviceMu.Lock()
	if r.device == nil || (conn != nil && r.device != conn) {
		r.deviceMu.Unlock()
		return false
	}
	r.device = nil
	r.deviceMu.Unlock()

	r.statusMu.Lock()
	r.status.Connected = false
	r.status.IsStreaming = false
	r.statusMu.Unlock()

	if r.metrics != nil {
		r.metrics.disconnectionsTotal.WithLabelValues("device_closed").Inc()
	}
	r.logger.Info().Msg("Device connection cleared")
	return true
}

// DeviceConnected reports whether a live device handle is registered.
func (r *Registry) DeviceConnected() bool {
	r.deviceMu.Lock()
	defer r.deviceMu.Unlock()
	return r.device != nil
}

// SendToDevice marshals v and writes it to the device connection. Returns
// false when no device is registered or the write failed. No retry.
func (r *Registry) SendToDevice(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to serialize device-bound message")
		return false
	}

	r.deviceMu.Lock()
	defer r.deviceMu.Unlock()
	if r.device == nil {
		return false
	}
	if err := r.device.WriteMessage(websocket.TextMessage, data); err != nil {
		r.logger.Warn().Err(err).Msg("Device send failed")
		return false
	}
	return true
}

// RegisterClient stores a client connection under its identity. A previous
// connection for the same identity is closed and replaced.
func (r *Registry) RegisterClient(identity string, conn Conn) *Client {
	client := &Client{identity: identity, conn: conn}
	client.alive.Store(true)

	if prev, ok := r.clients.Get(identity); ok {
		r.logger.Info().Str("user_id", identity).Msg("Replacing existing client connection")
		prev.close()
	}
	r.clients.Set(identity, client)

	if r.metrics != nil {
		r.metrics.connectionsTotal.WithLabelValues("client").Inc()
		r.metrics.clientsConnected.Set(float64(r.clients.Count()))
	}
	r.logger.Info().Str("user_id", identity).Msg("Client connection registered")
	return client
}

// RemoveClient removes the client registered under identity. When conn is
// non-nil the entry is removed only if it still holds that handle, so a
// stale close from a replaced connection cannot evict its successor.
// Removal is idempotent.
func (r *Registry) RemoveClient(identity string, conn Conn) bool {
	removed := r.clients.RemoveCb(identity, func(_ string, client *Client, exists bool) bool {
		if !exists {
			return false
		}
		if conn != nil && client.conn != conn {
			return false
		}
		client.close()
		return true
	})

	if removed {
		if r.metrics != nil {
			r.metrics.clientsConnected.Set(float64(r.clients.Count()))
		}
		r.logger.Info().Str("user_id", identity).Msg("Client connection removed")
	}
	return removed
}

// SendToClient marshals v and writes it to one client. Returns false when
// the identity is unknown or the write failed.
func (r *Registry) SendToClient(identity string, v any) bool {
	client, ok := r.clients.Get(identity)
	if !ok {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to serialize client-bound message")
		return false
	}
	if err := client.send(data); err != nil {
		r.logger.Warn().Err(err).Str("user_id", identity).Msg("Client send failed")
		return false
	}
	return true
}

// Broadcast serializes v once and attempts delivery to every client. A
// failing client is closed and removed; the loop continues with the rest.
// Returns the number of successful deliveries.
func (r *Registry) Broadcast(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to serialize broadcast message")
		return 0
	}

	start := time.Now()
	delivered := 0
	for item := range r.clients.IterBuffered() {
		client := item.Val
		if err := client.send(data); err != nil {
			r.logger.Warn().Err(err).Str("user_id", client.identity).Msg("Dropping client after failed broadcast send")
			r.RemoveClient(client.identity, client.conn)
			if r.metrics != nil {
				r.metrics.disconnectionsTotal.WithLabelValues("send_failed").Inc()
			}
			continue
		}
		delivered++
	}

	if r.metrics != nil {
		r.metrics.messagesBroadcast.Inc()
		r.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
	return delivered
}

// Clients returns a snapshot of all registered client connections.
func (r *Registry) Clients() []*Client {
	snapshot := make([]*Client, 0, r.clients.Count())
	for item := range r.clients.IterBuffered() {
		snapshot = append(snapshot, item.Val)
	}
	return snapshot
}

// ClientCount returns the number of registered clients.
func (r *Registry) ClientCount() int {
	return r.clients.Count()
}

// CloseAll force-closes the device and every client connection. Used on
// shutdown only.
func (r *Registry) CloseAll() {
	r.deviceMu.Lock()
	if r.device != nil {
		_ = r.device.Close()
		r.device = nil
	}
	r.deviceMu.Unlock()

	r.statusMu.Lock()
	r.status.Connected = false
	r.status.IsStreaming = false
	r.statusMu.Unlock()

	for item := range r.clients.IterBuffered() {
		item.Val.close()
		r.clients.Remove(item.Key)
	}
	if r.metrics != nil {
		r.metrics.clientsConnected.Set(0)
	}
}

// Status returns a copy of the current device status.
func (r *Registry) Status() models.DeviceStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	status := r.status
	if r.status.LastSeen != nil {
		seen := *r.status.LastSeen
		status.LastSeen = &seen
	}
	return status
}

// MarkDeviceSeen refreshes the last-seen timestamp. Called on every inbound
// device frame and on websocket-level pongs from the device. A frame from a
// device previously marked stale proves recovery, so the status flips back
// to connected as long as the transport is still registered.
func (r *Registry) MarkDeviceSeen() {
	now := time.Now()
	r.statusMu.Lock()
	r.status.LastSeen = &now
	if !r.status.Connected && r.DeviceConnected() {
		r.status.Connected = true
		r.logger.Info().Msg("Stale device resumed sending, marking connected")
	}
	r.statusMu.Unlock()
}

// SetDeviceInfo replaces the stored device self-description.
func (r *Registry) SetDeviceInfo(info models.DeviceInfo) {
	r.statusMu.Lock()
	r.status.DeviceInfo = info
	r.statusMu.Unlock()
}

// ApplyStatusUpdate merges an incremental status-update from the device.
// Nil fields leave the existing values untouched.
func (r *Registry) ApplyStatusUpdate(battery, signal *float64, streaming *bool) {
	r.statusMu.Lock()
	if battery != nil {
		r.status.DeviceInfo.BatteryLevel = battery
	}
	if signal != nil {
		r.status.DeviceInfo.SignalStrength = signal
	}
	if streaming != nil && r.status.Connected {
		r.status.IsStreaming = *streaming
	}
	r.statusMu.Unlock()
}

// MarkDeviceOffline flips the status to disconnected without touching the
// underlying transport. Returns false if the device was already offline.
func (r *Registry) MarkDeviceOffline() bool {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if !r.status.Connected {
		return false
	}
	r.status.Connected = false
	r.status.IsStreaming = false
	return true
}
