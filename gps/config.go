package gps

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ScenarioCommand changes the commanded course and speed once the simulated
// run has been going for At.
type ScenarioCommand struct {
	At     time.Duration `yaml:"at" json:"at"`
	Course float64       `yaml:"course" json:"course"`
	Speed  float64       `yaml:"speed" json:"speed"` // knots
}

// Config holds all configuration options for the NMEA emulator
type Config struct {
	Latitude   float64         `yaml:"latitude" json:"latitude"`
	Longitude  float64         `yaml:"longitude" json:"longitude"`
	Altitude   float64         `yaml:"altitude" json:"altitude"` // meters
	Speed      float64         `yaml:"speed" json:"speed"`       // knots
	Course     float64         `yaml:"course" json:"course"`     // degrees true
	Talker     string          `yaml:"talker" json:"talker"`
	Seed       int64           `yaml:"seed" json:"seed"`
	Satellites SatelliteConfig `yaml:"satellites" json:"satellites"`

	PDOP            float64 `yaml:"pdop" json:"pdop"`
	HDOP            float64 `yaml:"hdop" json:"hdop"`
	VDOP            float64 `yaml:"vdop" json:"vdop"`
	GeoidSeparation float64 `yaml:"geoid_separation" json:"geoid_separation"`
	Differential    bool    `yaml:"differential" json:"differential"`

	TimeToLock time.Duration `yaml:"time_to_lock" json:"time_to_lock"`
	OutputRate time.Duration `yaml:"output_rate" json:"output_rate"`
	WallClock  bool          `yaml:"wall_clock" json:"wall_clock"` // take time from the host clock instead of OutputRate steps
	StartTime  time.Time     `yaml:"start_time" json:"start_time"` // simulated clock start, zero means now
	VTG        bool          `yaml:"vtg" json:"vtg"`
	Duration   time.Duration `yaml:"duration" json:"duration"` // 0 runs indefinitely

	GPXEnabled  bool              `yaml:"gpx" json:"gpx_enabled"`
	GPXFile     string            `yaml:"gpx_file" json:"gpx_file"`
	ReplayFile  string            `yaml:"replay_file" json:"replay_file"`
	ReplaySpeed float64           `yaml:"replay_speed" json:"replay_speed"`
	ReplayLoop  bool              `yaml:"replay_loop" json:"replay_loop"`
	Scenario    []ScenarioCommand `yaml:"scenario" json:"scenario"`

	SerialPort    string        `yaml:"serial_port" json:"serial_port"`
	BaudRate      int           `yaml:"baud_rate" json:"baud_rate"`
	TCPListen     string        `yaml:"tcp_listen" json:"tcp_listen"`         // e.g. 0.0.0.0:10110
	StreamNetwork string        `yaml:"stream_network" json:"stream_network"` // tcp or udp
	StreamAddr    string        `yaml:"stream_addr" json:"stream_addr"`
	MQTTBroker    string        `yaml:"mqtt_broker" json:"mqtt_broker"` // e.g. tcp://localhost:1883
	MQTTTopic     string        `yaml:"mqtt_topic" json:"mqtt_topic"`
	MQTTQoS       byte          `yaml:"mqtt_qos" json:"mqtt_qos"`
	SentenceDelay time.Duration `yaml:"sentence_delay" json:"sentence_delay"`
	HTTPListen    string        `yaml:"http_listen" json:"http_listen"`
	Quiet         bool          `yaml:"quiet" json:"quiet"`
}

// DefaultConfig returns a vessel off the Hel peninsula heading east at 10.5 knots
func DefaultConfig() Config {
	return Config{
		Latitude:        54.5,
		Longitude:       19 + 20.0/60,
		Altitude:        15.2,
		Speed:           10.5,
		Course:          90,
		Talker:          DefaultTalker,
		Seed:            1,
		Satellites:      DefaultSatelliteConfig(),
		PDOP:            1.56,
		HDOP:            0.92,
		VDOP:            1.25,
		GeoidSeparation: 32.5,
		TimeToLock:      2 * time.Second,
		OutputRate:      1 * time.Second,
		BaudRate:        9600,
		ReplaySpeed:     1.0,
		StreamNetwork:   "tcp",
		MQTTTopic:       "nmea",
	}
}

// Validate checks if the configuration is valid and returns an error if not
func (c *Config) Validate() error {
	if !finite(c.Latitude) || math.Abs(c.Latitude) > 90 {
		return ErrInvalidLatitude
	}
	if !finite(c.Longitude) || math.Abs(c.Longitude) > 180 {
		return ErrInvalidLongitude
	}
	if !finite(c.Speed) || c.Speed < 0 || c.Speed > maxSpeedKnots {
		return ErrInvalidSpeed
	}
	if !finite(c.Course) || c.Course < 0 || c.Course >= 360 {
		return ErrInvalidCourse
	}
	if c.Talker != "" && !validTalker(c.Talker) {
		return fmt.Errorf("%w: %q", ErrInvalidTalker, c.Talker)
	}
	if err := c.Satellites.Validate(); err != nil {
		return err
	}
	for _, dop := range []float64{c.PDOP, c.HDOP, c.VDOP} {
		if !finite(dop) || dop <= 0 || dop >= 100 {
			return ErrInvalidDOP
		}
	}
	if c.OutputRate <= 0 {
		return ErrInvalidOutputRate
	}
	if c.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	if c.ReplaySpeed <= 0.0 {
		return ErrInvalidReplaySpeed
	}
	if c.MQTTQoS > 2 {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, c.MQTTQoS)
	}
	for i, cmd := range c.Scenario {
		if cmd.At < 0 || !finite(cmd.Course) || cmd.Course < 0 || cmd.Course >= 360 ||
			!finite(cmd.Speed) || cmd.Speed < 0 || cmd.Speed > maxSpeedKnots {
			return fmt.Errorf("%w: #%d %+v", ErrInvalidCommand, i, cmd)
		}
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys missing from
// the file keep their default value.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfigYAML(b)
}

// ParseConfigYAML is LoadConfig for an in-memory document
func ParseConfigYAML(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EmitterConfig derives the sentence engine settings. start is the time
// of the first fix.
func (c *Config) EmitterConfig(start time.Time) EmitterConfig {
	return EmitterConfig{
		Talker: c.Talker,
		Start: Fix{
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Altitude:  c.Altitude,
			Speed:     c.Speed,
			Course:    c.Course,
			Time:      start,
		},
		Interval: c.OutputRate,
		Quality: Quality{
			PDOP:            c.PDOP,
			HDOP:            c.HDOP,
			VDOP:            c.VDOP,
			GeoidSeparation: c.GeoidSeparation,
			Differential:    c.Differential,
			SelectionMode:   "A",
		},
		Satellites: c.Satellites,
		Seed:       c.Seed,
		VTG:        c.VTG,
	}
}

// sortedScenario returns the commands ordered by time, stable for equal At
func (c *Config) sortedScenario() []ScenarioCommand {
	cmds := make([]ScenarioCommand, len(c.Scenario))
	copy(cmds, c.Scenario)
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].At < cmds[j].At })
	return cmds
}
