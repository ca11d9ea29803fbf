package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hacksphere/esp32-gateway/internal/archive"
	"github.com/hacksphere/esp32-gateway/internal/constants"
	"github.com/hacksphere/esp32-gateway/internal/gateway"
	"github.com/hacksphere/esp32-gateway/internal/health"
	"github.com/hacksphere/esp32-gateway/internal/service_registry"
	"github.com/hacksphere/esp32-gateway/internal/storage"
	"github.com/hacksphere/esp32-gateway/internal/utils"
	"github.com/hacksphere/esp32-gateway/pkg/file"
	"github.com/hacksphere/esp32-gateway/pkg/jwt"
	"github.com/hacksphere/esp32-gateway/pkg/s3"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	configPath := os.Getenv("GATEWAY_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(config.Logging.Level); err == nil && config.Logging.Level != "" {
		logger = logger.Level(level)
	}
	applyDefaults(config)

	// Credential verifier for client handshakes
	verifier, err := jwt.NewHMACVerifier(config.Auth.JWTSecretFile, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize JWT verifier")
	}

	// Shared gateway state
	promRegistry := prometheus.NewRegistry()
	metrics := gateway.NewMetrics(promRegistry)
	registry := gateway.NewRegistry(logger, metrics)
	store := storage.NewMemoryStore(config.Store.Capacity)

	pipeline := gateway.NewPipeline(registry, store, config.Server.DeviceID, logger)
	relay := gateway.NewRelay(registry, logger)
	router := gateway.NewRouter(registry, pipeline, relay, store, config.Server.DeviceID, config.Store.HistoryLimit, logger)
	auth := gateway.NewAuthenticator(verifier, config.Server.DevicePath, config.Auth.AllowedOrigins, logger)

	server := gateway.NewServer(config.Server.Address, config.Server.DevicePath, config.Server.ClientPath,
		auth, registry, router, logger)
	server.HealthHandler = health.NewHandler(registry, logger)
	server.MetricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	// Create a new service registry to manage service lifecycles
	serviceRegistry := service_registry.NewServiceRegistry(logger)
	serviceRegistry.RegisterService("client-heartbeat",
		gateway.NewClientHeartbeatService(registry, config.Liveness.HeartbeatInterval, logger))
	serviceRegistry.RegisterService("device-staleness",
		gateway.NewDeviceStalenessService(registry, config.Liveness.StalenessInterval, config.Liveness.StalenessTimeout, logger))

	if config.Archive.Enabled {
		secretKey, err := fileClient.ReadFile(config.Archive.SecretKeyFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to read object storage secret key")
		}
		objectStorage := s3.NewObjectStorage()
		if err := objectStorage.Connect(config.Archive.Endpoint, config.Archive.AccessKey, secretKey, config.Archive.UseSSL); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		archiver := archive.NewArchiver(objectStorage, config.Archive.Bucket,
			config.Archive.BatchSize, config.Archive.FlushInterval, logger)
		pipeline.SetSink(archiver)
		serviceRegistry.RegisterService("archiver", archiver)
	}

	serviceRegistry.RegisterService("server", server)

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with errors")
	}
}

// applyDefaults fills configuration gaps with the gateway defaults.
func applyDefaults(config *utils.Config) {
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.DevicePath == "" {
		config.Server.DevicePath = "/esp32-ws"
	}
	if config.Server.ClientPath == "" {
		config.Server.ClientPath = "/ws"
	}
	if config.Server.DeviceID == "" {
		config.Server.DeviceID = constants.DefaultDeviceID
	}
	if config.Liveness.HeartbeatInterval <= 0 {
		config.Liveness.HeartbeatInterval = constants.DefaultHeartbeatInterval
	}
	if config.Liveness.StalenessInterval <= 0 {
		config.Liveness.StalenessInterval = constants.DefaultStalenessInterval
	}
	if config.Liveness.StalenessTimeout <= 0 {
		config.Liveness.StalenessTimeout = constants.DefaultStalenessTimeout
	}
	if config.Store.Capacity <= 0 {
		config.Store.Capacity = constants.DefaultStoreCapacity
	}
	if config.Store.HistoryLimit <= 0 {
		config.Store.HistoryLimit = constants.DefaultHistoryLimit
	}
	if config.Archive.FlushInterval <= 0 {
		config.Archive.FlushInterval = time.Minute
	}
}
