// Package config loads jointtrack settings from a KEY=VALUE file.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ayusman/jointtrack/internal/calibration"
	"github.com/ayusman/jointtrack/internal/detector"
	"github.com/ayusman/jointtrack/internal/joint"
)

// Bounds for SAMPLES_PER_SECOND.
const (
	MinSamplesPerSecond = 1
	MaxSamplesPerSecond = 30
)

// Config holds all application configuration values.
type Config struct {
	// Capture
	CameraSource string // device index or video file path
	Joint        joint.Joint
	// SamplesPerSecond caps how many frames per second are recorded. Zero
	// records every frame.
	SamplesPerSecond int
	Skeleton         bool

	// Calibration
	Unit     calibration.Unit
	Distance float64 // real-world length between the two picked points; 0 skips calibration

	// Export
	OutputDir string
	FileName  string

	// Storage
	DBPath string

	// HTTP
	HTTPAddr  string
	StaticDir string

	// MQTT; an empty broker disables publishing.
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	// Detector
	PoseScript      string
	ModelComplexity int
	MinConfidence   float64

	Tray bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CameraSource:     "0",
		Joint:            joint.LeftElbow,
		SamplesPerSecond: 10,
		Skeleton:         true,
		Unit:             calibration.UnitCentimeter,
		OutputDir:        ".",
		FileName:         "motion_data",
		DBPath:           "jointtrack.db",
		HTTPAddr:         "127.0.0.1:8080",
		MQTTClientID:     "jointtrack",
		MQTTTopic:        "jointtrack/samples",
		ModelComplexity:  1,
		MinConfidence:    0.5,
	}
}

// Load reads the configuration file at path over the defaults. An empty path
// returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines over the defaults. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.Set(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Set assigns one value by its file key.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "CAMERA_SOURCE":
		c.CameraSource = value
	case "JOINT":
		c.Joint, err = joint.Parse(value)
	case "SAMPLES_PER_SECOND":
		c.SamplesPerSecond, err = parseInt(key, value)
	case "SKELETON":
		c.Skeleton, err = parseBool(key, value)

	case "UNIT":
		c.Unit, err = calibration.ParseUnit(value)
	case "DISTANCE":
		c.Distance, err = parseFloat(key, value)

	case "OUTPUT_DIR":
		c.OutputDir = value
	case "FILE_NAME":
		c.FileName = value

	case "DB_PATH":
		c.DBPath = value

	case "HTTP_ADDR":
		c.HTTPAddr = value
	case "STATIC_DIR":
		c.StaticDir = value

	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_TOPIC":
		c.MQTTTopic = value

	case "POSE_SCRIPT":
		c.PoseScript = value
	case "MODEL_COMPLEXITY":
		c.ModelComplexity, err = parseInt(key, value)
	case "MIN_CONFIDENCE":
		c.MinConfidence, err = parseFloat(key, value)

	case "TRAY":
		c.Tray, err = parseBool(key, value)

	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return err
}

// Override applies one KEY=VALUE pair, as given on the command line.
// Call Validate afterwards.
func (c *Config) Override(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("invalid override %q: want KEY=VALUE", kv)
	}
	return c.Set(strings.TrimSpace(key), strings.TrimSpace(value))
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.CameraSource == "" {
		return fmt.Errorf("CAMERA_SOURCE is required")
	}
	if _, err := c.Joint.Triple(); err != nil {
		return fmt.Errorf("JOINT: %w", err)
	}
	if c.SamplesPerSecond < 0 || c.SamplesPerSecond > 0 &&
		(c.SamplesPerSecond < MinSamplesPerSecond || c.SamplesPerSecond > MaxSamplesPerSecond) {
		return fmt.Errorf("SAMPLES_PER_SECOND must be 0 or between %d and %d, got %d",
			MinSamplesPerSecond, MaxSamplesPerSecond, c.SamplesPerSecond)
	}
	if _, err := calibration.ParseUnit(string(c.Unit)); err != nil {
		return fmt.Errorf("UNIT: %w", err)
	}
	if c.Distance < 0 {
		return fmt.Errorf("DISTANCE must not be negative: %v", c.Distance)
	}
	if c.FileName == "" {
		return fmt.Errorf("FILE_NAME is required")
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return fmt.Errorf("MQTT_TOPIC is required when MQTT_BROKER is set")
	}
	if c.ModelComplexity < 0 || c.ModelComplexity > 2 {
		return fmt.Errorf("MODEL_COMPLEXITY must be 0, 1 or 2, got %d", c.ModelComplexity)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be between 0 and 1, got %v", c.MinConfidence)
	}
	return nil
}

// Calibrate reports whether a real-world distance was configured.
func (c *Config) Calibrate() bool {
	return c.Distance > 0
}

// CalibrationDistance returns the configured distance with its unit.
func (c *Config) CalibrationDistance() calibration.Distance {
	return calibration.Distance{Value: c.Distance, Unit: c.Unit}
}

// DetectorConfig returns the pose detector settings.
func (c *Config) DetectorConfig() detector.Config {
	dc := detector.DefaultConfig()
	dc.ModelComplexity = c.ModelComplexity
	dc.MinConfidence = c.MinConfidence
	dc.ScriptPath = c.PoseScript
	return dc
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
