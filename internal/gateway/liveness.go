package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
)

// ClientHeartbeatService probes every client once per cycle and evicts
// connections that did not answer the previous probe. A client that misses
// one full cycle is force-closed and removed.
type ClientHeartbeatService struct {
	Registry *Registry
	Interval time.Duration
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClientHeartbeatService initializes a new ClientHeartbeatService.
func NewClientHeartbeatService(registry *Registry, interval time.Duration, logger zerolog.Logger) *ClientHeartbeatService {
	return &ClientHeartbeatService{
		Registry: registry,
		Interval: interval,
		Logger:   logger.With().Str("component", "client-heartbeat").Logger(),
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (s *ClientHeartbeatService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("ClientHeartbeatService is already running")
		return errors.New("client heartbeat service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runHeartbeatLoop()
	}()

	s.Logger.Info().Dur("interval", s.Interval).Msg("ClientHeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (s *ClientHeartbeatService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("ClientHeartbeatService is not running")
		return errors.New("client heartbeat service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("ClientHeartbeatService stopped successfully")
	return nil
}

func (s *ClientHeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCycle()
		case <-s.ctx.Done():
			s.Logger.Info().Msg("ClientHeartbeatService stopping gracefully")
			return
		}
	}
}

// runCycle evicts clients whose alive flag is still down from the previous
// probe, then resets the flag and probes the survivors.
func (s *ClientHeartbeatService) runCycle() {
	for _, client := range s.Registry.Clients() {
		if !client.resetAlive() {
			s.Logger.Info().Str("user_id", client.Identity()).Msg("Evicting unresponsive client")
			if s.evict(client) && s.Registry.metrics != nil {
				s.Registry.metrics.clientsEvicted.Inc()
				s.Registry.metrics.disconnectionsTotal.WithLabelValues("heartbeat_timeout").Inc()
			}
			continue
		}

		if err := client.ping(); err != nil {
			s.Logger.Warn().Err(err).Str("user_id", client.Identity()).Msg("Liveness probe failed, removing client")
			s.evict(client)
		}
	}
}

// evict closes the snapshotted connection and removes its registry entry.
// Removal is guarded by the connection handle: a client that reconnected
// after the snapshot holds a different handle and is left untouched.
// Reports whether the entry was removed.
func (s *ClientHeartbeatService) evict(client *Client) bool {
	client.close()
	return s.Registry.RemoveClient(client.Identity(), client.conn)
}

// DeviceStalenessService watches the device's last-seen timestamp and marks
// the device offline once it exceeds the timeout. It deliberately does not
// close the transport: a silent device may still recover, and the next
// frame re-registers its liveness.
type DeviceStalenessService struct {
	Registry *Registry
	Interval time.Duration
	Timeout  time.Duration
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeviceStalenessService initializes a new DeviceStalenessService.
func NewDeviceStalenessService(registry *Registry, interval, timeout time.Duration, logger zerolog.Logger) *DeviceStalenessService {
	return &DeviceStalenessService{
		Registry: registry,
		Interval: interval,
		Timeout:  timeout,
		Logger:   logger.With().Str("component", "device-staleness").Logger(),
	}
}

// Start launches the staleness check loop in a separate goroutine.
func (s *DeviceStalenessService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("DeviceStalenessService is already running")
		return errors.New("device staleness service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStalenessLoop()
	}()

	s.Logger.Info().Dur("interval", s.Interval).Dur("timeout", s.Timeout).Msg("DeviceStalenessService started successfully")
	return nil
}

// Stop gracefully stops the staleness service.
func (s *DeviceStalenessService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("DeviceStalenessService is not running")
		return errors.New("device staleness service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("DeviceStalenessService stopped successfully")
	return nil
}

func (s *DeviceStalenessService) runStalenessLoop() {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkStaleness()
		case <-s.ctx.Done():
			s.Logger.Info().Msg("DeviceStalenessService stopping gracefully")
			return
		}
	}
}

func (s *DeviceStalenessService) checkStaleness() {
	status := s.Registry.Status()
	if !status.Connected || status.LastSeen == nil {
		return
	}
	if time.Since(*status.LastSeen) <= s.Timeout {
		return
	}

	if !s.Registry.MarkDeviceOffline() {
		return
	}
	s.Logger.Warn().Time("last_seen", *status.LastSeen).Msg("Device is stale, marking offline")

	s.Registry.Broadcast(models.StatusMessage{
		Type:      constants.TypeStatus,
		Status:    s.Registry.Status(),
		Timestamp: time.Now(),
	})
}
