package services

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig marks an update rejected by parsing or validation.
var ErrInvalidConfig = errors.New("invalid mission configuration")

// ConfigPublisher defines the interface for publishing configuration updates.
type ConfigPublisher interface {
	PublishConfigUpdatedNotification(cfg *config.Config) error
}

// MissionConfigService manages the operational mission configuration.
type MissionConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	PersistConfig(yamlData []byte) error
	SetPublisher(p ConfigPublisher)
	OnUpdate(fn func(*config.Config))
}

type missionConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	configPublisher       ConfigPublisher
	listeners             []func(*config.Config)
	currentConfig         *config.Config
	mu                    sync.RWMutex
}

// NewMissionConfigService creates the service and loads the file at
// operationalConfigPath. A missing or invalid file leaves the defaults active.
func NewMissionConfigService(operationalConfigPath string, logger customlog.Logger) (MissionConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger, _ = customlog.NewLogrusLogger("info", "")
		logger.Warnf("No logger provided to MissionConfigService, using default.")
	}

	service := &missionConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
		currentConfig:         config.Default(),
	}

	if err := service.LoadConfig(); err != nil {
		logger.Warnf("Initial load of mission config '%s' failed: %v. Using built-in defaults.", operationalConfigPath, err)
		return service, nil
	}

	logger.Infof("MissionConfigService initialized successfully for path: %s", operationalConfigPath)
	return service, nil
}

// LoadConfig reads the mission config file from disk. On error the active
// config is left unchanged.
func (s *missionConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading mission configuration from: %s", s.operationalConfigPath)
	cfg, err := config.LoadConfig(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error loading mission config file '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error loading mission config file '%s': %w", s.operationalConfigPath, err)
	}

	s.currentConfig = cfg
	s.logger.Infof("Successfully loaded mission configuration ID: %s, Version: %s", cfg.ConfigID, cfg.Version)
	return nil
}

// GetCurrentConfig returns a copy of the active configuration. Jobs keep the
// copy they took when they started.
func (s *missionConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := *s.currentConfig
	return &snapshot
}

// GetCurrentConfigYAML returns the file content, or the active config
// encoded as YAML when no file has been written yet.
func (s *missionConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.operationalConfigPath
	s.mu.RUnlock()

	s.logger.Debugf("Reading raw mission configuration YAML from: %s", path)
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Errorf("Error reading mission config file '%s' for YAML export: %v", path, err)
		return nil, fmt.Errorf("error reading mission config file '%s': %w", path, err)
	}

	data, err = yaml.Marshal(s.GetCurrentConfig())
	if err != nil {
		return nil, fmt.Errorf("error encoding mission config: %w", err)
	}
	return data, nil
}

// UpdateConfig validates, persists and applies new YAML, then notifies the
// publisher and listeners.
func (s *missionConfigService) UpdateConfig(newConfigYAML []byte) error {
	s.mu.Lock()

	s.logger.Infof("Attempting to update mission configuration from provided YAML")

	newCfg, err := config.ParseConfig(newConfigYAML)
	if err != nil {
		s.mu.Unlock()
		s.logger.Errorf("Rejected mission configuration: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := s.persistConfigUnlocked(newConfigYAML); err != nil {
		s.mu.Unlock()
		return err
	}

	oldCfgID := s.currentConfig.ConfigID
	s.currentConfig = newCfg
	publisher := s.configPublisher
	listeners := append([]func(*config.Config){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Infof("Successfully updated and persisted mission configuration. ID %s -> %s, Version: %s", oldCfgID, newCfg.ConfigID, newCfg.Version)

	for _, fn := range listeners {
		snapshot := *newCfg
		fn(&snapshot)
	}

	if publisher != nil {
		snapshot := *newCfg
		go func() {
			if err := publisher.PublishConfigUpdatedNotification(&snapshot); err != nil {
				s.logger.Warnf("Failed to publish config update notification: %v", err)
			} else {
				s.logger.Debugf("Published config update notification.")
			}
		}()
	} else {
		s.logger.Infof("ConfigPublisher not configured, skipping update notification.")
	}
	return nil
}

// PersistConfig writes the given YAML data to the mission config file path.
func (s *missionConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistConfigUnlocked(yamlData)
}

func (s *missionConfigService) persistConfigUnlocked(yamlData []byte) error {
	s.logger.Infof("Persisting mission configuration to: %s", s.operationalConfigPath)
	if err := os.WriteFile(s.operationalConfigPath, yamlData, 0644); err != nil {
		s.logger.Errorf("Error writing mission config file '%s': %v", s.operationalConfigPath, err)
		return fmt.Errorf("error writing mission config file '%s': %w", s.operationalConfigPath, err)
	}
	return nil
}

// SetPublisher allows injecting the ConfigPublisher after initialization.
func (s *missionConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configPublisher = p
	s.logger.Infof("ConfigPublisher injected into MissionConfigService.")
}

// OnUpdate registers fn to run after every successful update.
func (s *missionConfigService) OnUpdate(fn func(*config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
