package zeromq

import (
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/services"
)

// Topics of configuration traffic.
const (
	TopicConfigUpdate       = "configuration.update"
	TopicConfigNotification = "configuration.notification"
)

// JSONPublisher publishes JSON envelopes.
type JSONPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// ConfigPublisher publishes configuration updates to gateways
type ConfigPublisher struct {
	publisher JSONPublisher
	logger    customlog.Logger
}

var _ services.ConfigPublisher = (*ConfigPublisher)(nil)

// NewConfigPublisher creates a new publisher for configuration updates
func NewConfigPublisher(publisher JSONPublisher, logger customlog.Logger) *ConfigPublisher {
	return &ConfigPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishConfigUpdate publishes the full configuration.
func (p *ConfigPublisher) PublishConfigUpdate(cfg *config.Config) error {
	p.logger.Infof("Publishing configuration update (ID: %s)", cfg.ConfigID)
	return p.publisher.PublishJSON(TopicConfigUpdate, MsgTypeConfigResponse, cfg)
}

// PublishConfigUpdatedNotification publishes a notification that the config
// has been updated, followed by the config itself.
func (p *ConfigPublisher) PublishConfigUpdatedNotification(cfg *config.Config) error {
	p.logger.Infof("Publishing configuration update notification")

	notification := map[string]interface{}{
		"config_id":    cfg.ConfigID,
		"version":      cfg.Version,
		"last_updated": cfg.LastUpdated,
	}
	if err := p.publisher.PublishJSON(TopicConfigNotification, MsgTypeConfigUpdated, notification); err != nil {
		return err
	}
	return p.PublishConfigUpdate(cfg)
}

// RegisterConfigHandlers registers the config request handler and returns
// the publisher to inject into the config service.
func RegisterConfigHandlers(service *ZeroMQService, configs services.MissionConfigService, logger customlog.Logger) *ConfigPublisher {
	service.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(configs, logger))

	publisher := NewConfigPublisher(service, logger)
	logger.Infof("Registered configuration handlers and publisher")
	return publisher
}
