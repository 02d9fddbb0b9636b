package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Odometry estimators selectable for the straight and rotate primitives.
const (
	EstimatorTimeIntegrated = "time_integrated"
	EstimatorPoseFeedback   = "pose_feedback"
)

// Config is the operational mission configuration. It can be replaced at
// runtime through the config service; jobs snapshot it when they start.
type Config struct {
	Version      string       `yaml:"version" json:"version"`
	ConfigID     string       `yaml:"config_id" json:"config_id"`
	LastUpdated  string       `yaml:"lastUpdated" json:"lastUpdated"`
	RobotID      string       `yaml:"robot_id" json:"robot_id"`
	Topics       TopicsConfig `yaml:"topics" json:"topics"`
	Motion       MotionConfig `yaml:"motion" json:"motion"`
	Limits       LimitsConfig `yaml:"limits" json:"limits"`
	Grid         GridConfig   `yaml:"grid" json:"grid"`
	Spiral       SpiralConfig `yaml:"spiral" json:"spiral"`
	Home         HomeConfig   `yaml:"home" json:"home"`
	PauseSeconds float64      `yaml:"pause_seconds" json:"pause_seconds"`
}

// TopicsConfig names the pub/sub topics of the robot.
type TopicsConfig struct {
	CmdVel string `yaml:"cmd_vel" json:"cmd_vel"`
	Pose   string `yaml:"pose" json:"pose"`
	Events string `yaml:"events" json:"events"`
}

// MotionConfig holds loop rates and controller gains.
type MotionConfig struct {
	StraightHz         float64 `yaml:"straight_hz" json:"straight_hz"`
	GoalHz             float64 `yaml:"goal_hz" json:"goal_hz"`
	KpLinear           float64 `yaml:"kp_linear" json:"kp_linear"`
	KpAngular          float64 `yaml:"kp_angular" json:"kp_angular"`
	MaxDurationSeconds float64 `yaml:"max_duration_seconds" json:"max_duration_seconds"`
	Estimator          string  `yaml:"estimator" json:"estimator"`
}

// LimitsConfig caps outgoing velocity magnitudes at the transport. Zero
// disables a cap.
type LimitsConfig struct {
	MaxLinear  float64 `yaml:"max_linear" json:"max_linear"`
	MaxAngular float64 `yaml:"max_angular" json:"max_angular"`
}

// GridConfig parameterizes the boustrophedon sweep.
type GridConfig struct {
	StartX       float64 `yaml:"start_x" json:"start_x"`
	StartY       float64 `yaml:"start_y" json:"start_y"`
	Tolerance    float64 `yaml:"tolerance" json:"tolerance"`
	Lanes        int     `yaml:"lanes" json:"lanes"`
	LaneLength   float64 `yaml:"lane_length" json:"lane_length"`
	LaneOffset   float64 `yaml:"lane_offset" json:"lane_offset"`
	Speed        float64 `yaml:"speed" json:"speed"`
	TurnRateDeg  float64 `yaml:"turn_rate_deg" json:"turn_rate_deg"`
	TurnAngleDeg float64 `yaml:"turn_angle_deg" json:"turn_angle_deg"`
}

// SpiralConfig parameterizes the expanding spiral.
type SpiralConfig struct {
	InitialRadius float64 `yaml:"initial_radius" json:"initial_radius"`
	RadiusStep    float64 `yaml:"radius_step" json:"radius_step"`
	AngularSpeed  float64 `yaml:"angular_speed" json:"angular_speed"`
	Hz            float64 `yaml:"hz" json:"hz"`
	BoundX        float64 `yaml:"bound_x" json:"bound_x"`
	BoundY        float64 `yaml:"bound_y" json:"bound_y"`
}

// HomeConfig parameterizes the homing maneuver.
type HomeConfig struct {
	HeadingDeg float64 `yaml:"heading_deg" json:"heading_deg"`
}

// Default returns the configuration of the stock turtlesim cleaner.
func Default() *Config {
	return &Config{
		Version:  "1.0",
		ConfigID: "default",
		RobotID:  "turtle1",
		Topics: TopicsConfig{
			CmdVel: "/turtle1/cmd_vel",
			Pose:   "/turtle1/pose",
			Events: "cleaner.events",
		},
		Motion: MotionConfig{
			StraightHz: 100,
			GoalHz:     10,
			KpLinear:   1.5,
			KpAngular:  4.0,
			Estimator:  EstimatorTimeIntegrated,
		},
		Grid: GridConfig{
			StartX:       1,
			StartY:       1,
			Tolerance:    0.1,
			Lanes:        4,
			LaneLength:   9,
			LaneOffset:   1,
			Speed:        2,
			TurnRateDeg:  90,
			TurnAngleDeg: 90,
		},
		Spiral: SpiralConfig{
			InitialRadius: 0.5,
			RadiusStep:    0.5,
			AngularSpeed:  4,
			Hz:            1,
			BoundX:        10.5,
			BoundY:        10.5,
		},
		Home:         HomeConfig{HeadingDeg: 90},
		PauseSeconds: 1,
	}
}

// LoadConfig reads a mission config file. Fields missing from the file keep
// their Default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML on top of Default and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loops cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ConfigID == "" || c.Version == "" || c.RobotID == "" {
		errs = append(errs, errors.New("missing required fields (config_id, version, robot_id)"))
	}
	if c.Topics.CmdVel == "" || c.Topics.Pose == "" {
		errs = append(errs, errors.New("topics.cmd_vel and topics.pose must be set"))
	}
	if !positive(c.Motion.StraightHz) || !positive(c.Motion.GoalHz) || !positive(c.Spiral.Hz) {
		errs = append(errs, errors.New("loop rates must be > 0"))
	}
	switch c.Motion.Estimator {
	case "", EstimatorTimeIntegrated, EstimatorPoseFeedback:
	default:
		errs = append(errs, fmt.Errorf("unknown motion.estimator %q", c.Motion.Estimator))
	}
	if c.Motion.MaxDurationSeconds < 0 || c.PauseSeconds < 0 {
		errs = append(errs, errors.New("durations must be >= 0"))
	}
	if c.Grid.Lanes < 1 {
		errs = append(errs, errors.New("grid.lanes must be >= 1"))
	}
	if !positive(c.Grid.Speed) || !positive(c.Grid.TurnRateDeg) {
		errs = append(errs, errors.New("grid.speed and grid.turn_rate_deg must be > 0"))
	}
	if c.Grid.Tolerance < 0 {
		errs = append(errs, errors.New("grid.tolerance must be >= 0"))
	}
	if c.Spiral.RadiusStep <= 0 {
		errs = append(errs, errors.New("spiral.radius_step must be > 0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// MaxDuration is the per-primitive deadline; zero means none.
func (m MotionConfig) MaxDuration() time.Duration {
	return seconds(m.MaxDurationSeconds)
}

// Pause is the pacing delay between maneuver steps.
func (c *Config) Pause() time.Duration {
	return seconds(c.PauseSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
