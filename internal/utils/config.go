package utils

import (
	"time"

	"github.com/hacksphere/esp32-gateway/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		Address    string `yaml:"address"`     // Listen address, e.g. ":8080"
		DevicePath string `yaml:"device_path"` // WebSocket upgrade path for the ESP32
		ClientPath string `yaml:"client_path"` // WebSocket upgrade path for web clients
		DeviceID   string `yaml:"device_id"`   // Identifier stamped on persisted readings
	} `yaml:"server"`

	Auth struct {
		JWTSecretFile  string   `yaml:"jwt_secret_file"` // Path to the JWT signing secret
		AllowedOrigins []string `yaml:"allowed_origins"` // Origin allow-list; "*" allows all
	} `yaml:"auth"`

	Liveness struct {
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // Client ping cycle
		StalenessInterval time.Duration `yaml:"staleness_interval"` // Device staleness check cycle
		StalenessTimeout  time.Duration `yaml:"staleness_timeout"`  // Silence tolerated before marking offline
	} `yaml:"liveness"`

	Store struct {
		Capacity     int `yaml:"capacity"`      // Max readings held in memory
		HistoryLimit int `yaml:"history_limit"` // Max readings per history query
	} `yaml:"store"`

	Archive struct {
		Enabled       bool          `yaml:"enabled"`         // Enable/disable object storage export
		Endpoint      string        `yaml:"endpoint"`        // Object storage endpoint
		AccessKey     string        `yaml:"access_key"`      // Object storage access key
		SecretKeyFile string        `yaml:"secret_key_file"` // Path to the object storage secret key
		Bucket        string        `yaml:"bucket"`          // Bucket receiving reading batches
		UseSSL        bool          `yaml:"use_ssl"`         // Use HTTPS for object storage
		BatchSize     int           `yaml:"batch_size"`      // Readings per uploaded object
		FlushInterval time.Duration `yaml:"flush_interval"`  // Max time a batch may wait
	} `yaml:"archive"`

	Logging struct {
		Level string `yaml:"level"` // zerolog level name
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
