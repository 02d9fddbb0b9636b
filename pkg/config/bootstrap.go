package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is looked up inside the directory given to the launcher.
const BootstrapFileName = "cleaner_config.yaml"

// BootstrapConfig holds the process-level settings loaded once at startup.
type BootstrapConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	ZeroMQ     ZeroMQConfig     `yaml:"zeromq"`
	Data       DataConfig       `yaml:"data"`
	Processing ProcessingConfig `yaml:"processing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// ZeroMQConfig holds the socket endpoints of the transport.
type ZeroMQConfig struct {
	// PublishBindAddress carries velocity commands and controller events.
	PublishBindAddress string `yaml:"publish_bind_address"`
	// PoseConnectAddress is the publisher of pose observations.
	PoseConnectAddress  string `yaml:"pose_connect_address"`
	RequestBindAddress  string `yaml:"request_bind_address"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms"`
}

// ProcessingConfig sizes the mission job queue.
type ProcessingConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DataConfig locates the operational mission config.
type DataConfig struct {
	Directory             string `yaml:"directory"`
	MissionConfigFilename string `yaml:"mission_config_file"`
}

// MissionConfigPath joins the data directory and mission config filename.
func (b *BootstrapConfig) MissionConfigPath() string {
	return filepath.Join(b.Data.Directory, b.Data.MissionConfigFilename)
}

// LoadBootstrapConfig loads configDir/cleaner_config.yaml.
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	bootstrapCfg := BootstrapConfig{
		Logging:    LoggingConfig{Level: "info"},
		Server:     ServerConfig{HTTPPort: 8080},
		Processing: ProcessingConfig{QueueSize: 8},
	}
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	required := []struct {
		name  string
		value string
	}{
		{"zeromq.publish_bind_address", bootstrapCfg.ZeroMQ.PublishBindAddress},
		{"zeromq.pose_connect_address", bootstrapCfg.ZeroMQ.PoseConnectAddress},
		{"zeromq.request_bind_address", bootstrapCfg.ZeroMQ.RequestBindAddress},
		{"data.directory", bootstrapCfg.Data.Directory},
		{"data.mission_config_file", bootstrapCfg.Data.MissionConfigFilename},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("missing required field in bootstrap config: %s", r.name)
		}
	}
	if bootstrapCfg.Processing.QueueSize <= 0 {
		bootstrapCfg.Processing.QueueSize = 1
	}

	return &bootstrapCfg, nil
}
