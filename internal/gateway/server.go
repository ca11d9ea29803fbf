package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/models"
)

// Server owns the HTTP listener and the WebSocket upgrade endpoints. Each
// accepted connection gets one read goroutine; all inbound frames of a
// connection are processed sequentially on that goroutine.
type Server struct {
	Address    string
	DevicePath string
	ClientPath string
	Auth       *Authenticator
	Registry   *Registry
	Router     *Router
	Logger     zerolog.Logger

	// Optional extra endpoints, wired by the caller.
	HealthHandler  http.Handler
	MetricsHandler http.Handler

	upgrader   websocket.Upgrader
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer initializes a new gateway server.
func NewServer(address, devicePath, clientPath string, auth *Authenticator,
	registry *Registry, router *Router, logger zerolog.Logger) *Server {

	s := &Server{
		Address:    address,
		DevicePath: devicePath,
		ClientPath: clientPath,
		Auth:       auth,
		Registry:   registry,
		Router:     router,
		Logger:     logger.With().Str("component", "server").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     auth.OriginAllowed,
	}
	return s
}

// Start begins listening for upgrade requests.
func (s *Server) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("Server is already running")
		return errors.New("server is already running")
	}
	if s.DevicePath == s.ClientPath {
		return errors.New("device path and client path must differ")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc(s.DevicePath, s.handleUpgrade)
	mux.HandleFunc(s.ClientPath, s.handleUpgrade)
	if s.HealthHandler != nil {
		mux.Handle("/healthz", s.HealthHandler)
	}
	if s.MetricsHandler != nil {
		mux.Handle("/metrics", s.MetricsHandler)
	}

	s.httpServer = &http.Server{
		Addr:    s.Address,
		Handler: mux,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.Logger.Info().Str("address", s.Address).Str("device_path", s.DevicePath).Str("client_path", s.ClientPath).Msg("Server started successfully")
	return nil
}

// Stop shuts the listener down and closes every open connection. Pending
// sends to closing connections may be dropped.
func (s *Server) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("Server is not running")
		return errors.New("server is not running")
	}

	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.Warn().Err(err).Msg("HTTP server shutdown error")
	}

	s.Registry.CloseAll()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("Server stopped successfully")
	return nil
}

// handleUpgrade authenticates and promotes an inbound request into a
// persistent connection of the decided class.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	decision, err := s.Auth.Authenticate(r)
	if err != nil {
		switch {
		case errors.Is(err, ErrOriginDenied):
			http.Error(w, "origin not allowed", http.StatusForbidden)
		default:
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
		return
	}

	// Echo the negotiated subprotocol back when the credential rode on it;
	// browsers abort the handshake if the server picks none.
	var responseHeader http.Header
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		responseHeader = http.Header{"Sec-WebSocket-Protocol": {firstProtocol(proto)}}
	}

	conn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	switch decision.Class {
	case ClassDevice:
		s.acceptDevice(conn)
	case ClassClient:
		s.acceptClient(decision.Identity, conn)
	}
}

func (s *Server) acceptDevice(conn *websocket.Conn) {
	s.Registry.RegisterDevice(conn)

	s.Registry.SendToDevice(models.ConnectionEstablishedMessage{
		Type:      constants.TypeConnectionEstablished,
		Timestamp: time.Now(),
	})
	s.Registry.Broadcast(models.StatusMessage{
		Type:      constants.TypeStatus,
		Status:    s.Registry.Status(),
		Timestamp: time.Now(),
	})

	s.wg.Add(1)
	go s.readDeviceLoop(conn)
}

func (s *Server) acceptClient(identity string, conn *websocket.Conn) {
	client := s.Registry.RegisterClient(identity, conn)

	s.Registry.SendToClient(identity, models.ConnectionMessage{
		Type:      constants.TypeConnection,
		Message:   "Connected to sensor gateway",
		UserID:    identity,
		Timestamp: time.Now(),
	})

	s.wg.Add(1)
	go s.readClientLoop(client, conn)
}

// readDeviceLoop processes device frames sequentially until the transport
// errors out. Low-level pongs from the device refresh its last-seen mark.
func (s *Server) readDeviceLoop(conn *websocket.Conn) {
	defer s.wg.Done()

	conn.SetPongHandler(func(string) error {
		s.Registry.MarkDeviceSeen()
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.Router.HandleDeviceFrame(messageType, data)
	}

	if s.Registry.ClearDevice(conn) {
		s.Registry.Broadcast(models.StatusMessage{
			Type:      constants.TypeStatus,
			Status:    s.Registry.Status(),
			Timestamp: time.Now(),
		})
	}
}

// readClientLoop processes one client's frames sequentially until the
// transport errors out. Pongs answer the heartbeat probe.
func (s *Server) readClientLoop(client *Client, conn *websocket.Conn) {
	defer s.wg.Done()

	conn.SetPongHandler(func(string) error {
		client.MarkAlive()
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.Router.HandleClientFrame(client, messageType, data)
	}

	s.Registry.RemoveClient(client.Identity(), conn)
}

func firstProtocol(header string) string {
	return strings.TrimSpace(strings.Split(header, ",")[0])
}
