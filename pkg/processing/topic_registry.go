package processing

import (
	"sort"
	"sync"

	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
)

// Topic directions as seen from the controller.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// TopicInfo holds metadata for a topic
type TopicInfo struct {
	Topic        string `json:"topic"`
	MessageType  string `json:"message_type"`
	Direction    string `json:"direction"`
	StatCount    int64  `json:"count"`
	LastReceived int64  `json:"last_timestamp_ns"`
}

// TopicRegistry keeps per-topic message counts for the transport.
type TopicRegistry struct {
	logger customlog.Logger
	topics map[string]*TopicInfo
	mu     sync.RWMutex
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// LoadFromConfig registers the topics named in cfg. Counters of topics that
// survive a reload are kept.
func (r *TopicRegistry) LoadFromConfig(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mappings := []TopicInfo{
		{Topic: cfg.Topics.CmdVel, MessageType: "cleaner.message.Twist", Direction: DirectionOutbound},
		{Topic: cfg.Topics.Pose, MessageType: "cleaner.message.Pose", Direction: DirectionInbound},
		{Topic: cfg.Topics.Events, MessageType: "json", Direction: DirectionOutbound},
	}

	topics := make(map[string]*TopicInfo, len(mappings))
	for _, m := range mappings {
		if m.Topic == "" {
			continue
		}
		info := m
		if old, ok := r.topics[m.Topic]; ok {
			info.StatCount = old.StatCount
			info.LastReceived = old.LastReceived
		}
		topics[m.Topic] = &info
	}
	r.topics = topics

	r.logger.Infof("Loaded %d topics into registry", len(r.topics))
}

// GetTopicInfo gets information for a topic
func (r *TopicRegistry) GetTopicInfo(topic string) (TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return TopicInfo{}, false
	}
	return *info, true
}

// UpdateTopicStats counts one message on topic at timestamp (ns).
func (r *TopicRegistry) UpdateTopicStats(topic string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.topics[topic]
	if !exists {
		info = &TopicInfo{Topic: topic}
		r.topics[topic] = info
	}

	info.StatCount++
	info.LastReceived = timestamp
}

// GetAllTopics returns the registered topic names, sorted.
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// GetTopicStats returns a copy of every topic entry.
func (r *TopicRegistry) GetTopicStats() []TopicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]TopicInfo, 0, len(r.topics))
	for _, info := range r.topics {
		stats = append(stats, *info)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Topic < stats[j].Topic })
	return stats
}
