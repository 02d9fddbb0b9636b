package zeromq

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/open-teleop/cleaner/domain/pose"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/metrics"
	"github.com/pebbe/zmq4"
)

// PoseSink receives decoded pose observations.
type PoseSink interface {
	Update(p pose.Pose)
}

// PoseListener subscribes to the pose topic of the robot bridge and merges
// every observation into a PoseSink.
type PoseListener struct {
	socket  *zmq4.Socket
	topic   string
	sink    PoseSink
	stats   TopicStats
	logger  customlog.Logger
	running bool
	mu      sync.Mutex
}

// NewPoseListener connects a SUB socket to the configured pose publisher.
// Start it with Start; the service stops and closes it.
func (s *ZeroMQService) NewPoseListener(topic string, sink PoseSink, stats TopicStats) (*PoseListener, error) {
	socket, err := s.ctx.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	if s.config.ReconnectIntervalMs > 0 {
		if err := socket.SetReconnectIvl(time.Duration(s.config.ReconnectIntervalMs) * time.Millisecond); err != nil {
			socket.Close()
			return nil, fmt.Errorf("failed to set reconnect interval: %w", err)
		}
	}
	if err := socket.SetRcvtimeo(500 * time.Millisecond); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := socket.SetSubscribe(topic); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	if err := socket.Connect(s.config.PoseConnectAddress); err != nil {
		socket.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", s.config.PoseConnectAddress, err)
	}

	l := &PoseListener{
		socket: socket,
		topic:  topic,
		sink:   sink,
		stats:  stats,
		logger: s.logger.WithField("topic", topic),
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return l, nil
}

// StartPoseListener begins the receive loop of l on the service's wait group.
func (s *ZeroMQService) StartPoseListener(l *PoseListener) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		l.receiveLoop()
	}()
	l.logger.Infof("Pose listener started on %s", s.config.PoseConnectAddress)
}

// Stop ends the receive loop after the current receive returns.
func (l *PoseListener) Stop() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// Close releases the socket. Call after the loop has exited.
func (l *PoseListener) Close() {
	if l.socket != nil {
		l.socket.Close()
		l.socket = nil
	}
}

func (l *PoseListener) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *PoseListener) receiveLoop() {
	for l.isRunning() {
		frames, err := l.socket.RecvMessageBytes(0)
		if err != nil {
			// receive timeout, used to poll the running flag
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			if l.isRunning() {
				l.logger.Warnf("Error receiving pose: %v", err)
				time.Sleep(100 * time.Millisecond)
			}
			continue
		}
		if err := l.handleFrames(frames); err != nil {
			l.logger.Warnf("Dropping pose message: %v", err)
		}
	}
}

// handleFrames decodes a [topic, Pose] multipart message.
func (l *PoseListener) handleFrames(frames [][]byte) error {
	if len(frames) != 2 {
		return fmt.Errorf("%w: expected 2 frames, got %d", ErrInvalidMessage, len(frames))
	}
	if string(frames[0]) != l.topic {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidMessage, frames[0])
	}

	p, err := DecodePose(frames[1])
	if err != nil {
		return err
	}
	if p.Stamp.IsZero() {
		p.Stamp = time.Now()
	}

	l.sink.Update(p)
	metrics.PoseUpdates.Inc()
	if l.stats != nil {
		l.stats.UpdateTopicStats(l.topic, p.Stamp.UnixNano())
	}
	return nil
}
