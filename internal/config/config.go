package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/imu_scalogram/internal/imu"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

// Config holds all application configuration values.
type Config struct {
	// Session
	Channels            []string // session channel order, e.g. ax,ay,az,gx,gy,gz
	WindowCapacity      int      // W
	Scales              wavelet.ScaleSet
	Wavelet             string // ricker or morlet
	MorletW0            float64
	CWTMethod           string // auto, direct, fft
	Trigger             string // samples or seconds
	TriggerEverySamples int
	TriggerEverySeconds float64
	MinFill             int
	ScalogramChannels   []string // up to 3 channel names or indices
	Normalization       string   // per_frame or fixed
	NormalizationMin    float64
	NormalizationMax    float64
	ScalogramDeadlineMs int // soft deadline for one compute pass, 0 disables

	// Source
	Source         string // serial, mqtt, mpu9250, mock, replay
	SerialPort     string
	SerialBaudRate int
	SerialFields   []string // device field order on each line
	PollInterval   int      // milliseconds to wait when no sample is available

	// MQTT
	MQTTBroker     string
	MQTTClientID   string
	TopicIMUSource string
	TopicSignal    string
	TopicScalogram string

	// IMU Hardware (SPI)
	IMUSPIDevice      string
	IMUCSPin          string
	IMUSampleInterval int // milliseconds

	// Mock / replay
	MockRateHz     float64
	ReplayFile     string
	ReplayRealtime bool

	// Sinks
	Sinks         []string // tui, web, mqtt, png, csv
	WebServerPort int
	WebRoot       string
	PNGOutputPath string
	ImageWidth    int
	ImageHeight   int
	CSVOutputDir  string

	// Logging
	LogLevel string
	LogFile  string
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal/Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		Channels:            append([]string(nil), imu.DefaultChannels...),
		WindowCapacity:      250,
		Scales:              wavelet.ScaleSet{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30},
		Wavelet:             "ricker",
		MorletW0:            5,
		CWTMethod:           "auto",
		Trigger:             "samples",
		TriggerEverySamples: 50,
		TriggerEverySeconds: 0.5,
		ScalogramChannels:   []string{"ax", "ay", "az"},
		Normalization:       "per_frame",
		NormalizationMin:    0,
		NormalizationMax:    1,
		ScalogramDeadlineMs: 100,

		Source:         "serial",
		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 115200,
		SerialFields:   append([]string(nil), imu.DefaultChannels...),
		PollInterval:   5,

		MQTTBroker:     "tcp://localhost:1883",
		MQTTClientID:   "inertial-scalogram",
		TopicIMUSource: "inertial/imu/left",
		TopicSignal:    "inertial/scalogram/signal",
		TopicScalogram: "inertial/scalogram/image",

		IMUSPIDevice:      "/dev/spidev0.0",
		IMUCSPin:          "8",
		IMUSampleInterval: 10,

		MockRateHz: 100,

		Sinks:         []string{"web"},
		WebServerPort: 8080,
		WebRoot:       "web",
		PNGOutputPath: "scalogram.png",
		ImageWidth:    500,
		ImageHeight:   240,
		CSVOutputDir:  ".",

		LogLevel: "info",
	}
}

// Load reads the configuration file and returns a Config struct.
// Files ending in .yaml or .yml are decoded as YAML mappings using the same
// keys (case-insensitive); anything else is parsed as KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		return loadYAML(configPath)
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML config: %w", err)
	}

	cfg := Default()
	for key, v := range raw {
		var value string
		switch tv := v.(type) {
		case nil:
			continue
		case []interface{}:
			items := make([]string, len(tv))
			for i, item := range tv {
				items[i] = fmt.Sprint(item)
			}
			value = strings.Join(items, ",")
		default:
			value = fmt.Sprint(tv)
		}
		if err := cfg.setValue(strings.ToUpper(key), value); err != nil {
			return nil, fmt.Errorf("config key %s: %w", key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Session
	case "CHANNELS":
		c.Channels = splitList(value)
	case "WINDOW_CAPACITY":
		return parsePositiveInt(key, value, &c.WindowCapacity)
	case "SCALES":
		scales, err := wavelet.ParseScales(value)
		if err != nil {
			return fmt.Errorf("invalid SCALES %q: %w", value, err)
		}
		c.Scales = scales
	case "WAVELET":
		if _, err := wavelet.ParseKernel(value, 0); err != nil {
			return err
		}
		c.Wavelet = value
	case "MORLET_W0":
		return parsePositiveFloat(key, value, &c.MorletW0)
	case "CWT_METHOD":
		if _, err := wavelet.ParseMethod(value); err != nil {
			return err
		}
		c.CWTMethod = value
	case "TRIGGER":
		v := strings.ToLower(value)
		if v != "samples" && v != "seconds" {
			return fmt.Errorf("TRIGGER must be samples or seconds, got %q", value)
		}
		c.Trigger = v
	case "TRIGGER_EVERY_SAMPLES":
		return parsePositiveInt(key, value, &c.TriggerEverySamples)
	case "TRIGGER_EVERY_SECONDS":
		return parsePositiveFloat(key, value, &c.TriggerEverySeconds)
	case "MIN_FILL":
		return parsePositiveInt(key, value, &c.MinFill)
	case "SCALOGRAM_CHANNELS":
		c.ScalogramChannels = splitList(value)
	case "NORMALIZATION":
		v := strings.ToLower(value)
		if v != "per_frame" && v != "fixed" {
			return fmt.Errorf("NORMALIZATION must be per_frame or fixed, got %q", value)
		}
		c.Normalization = v
	case "NORMALIZATION_MIN":
		return parseFloat(key, value, &c.NormalizationMin)
	case "NORMALIZATION_MAX":
		return parseFloat(key, value, &c.NormalizationMax)
	case "SCALOGRAM_DEADLINE_MS":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid SCALOGRAM_DEADLINE_MS %q", value)
		}
		c.ScalogramDeadlineMs = v

	// Source
	case "SOURCE":
		v := strings.ToLower(value)
		switch v {
		case "serial", "mqtt", "mpu9250", "mock", "replay":
		default:
			return fmt.Errorf("SOURCE must be one of serial, mqtt, mpu9250, mock, replay; got %q", value)
		}
		c.Source = v
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		return parsePositiveInt(key, value, &c.SerialBaudRate)
	case "SERIAL_FIELDS":
		c.SerialFields = splitList(value)
	case "POLL_INTERVAL":
		return parsePositiveInt(key, value, &c.PollInterval)

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_IMU_SOURCE":
		c.TopicIMUSource = value
	case "TOPIC_SIGNAL":
		c.TopicSignal = value
	case "TOPIC_SCALOGRAM":
		c.TopicScalogram = value

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_SAMPLE_INTERVAL":
		return parsePositiveInt(key, value, &c.IMUSampleInterval)

	// Mock / replay
	case "MOCK_RATE_HZ":
		return parsePositiveFloat(key, value, &c.MockRateHz)
	case "REPLAY_FILE":
		c.ReplayFile = value
	case "REPLAY_REALTIME":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid REPLAY_REALTIME %q: %w", value, err)
		}
		c.ReplayRealtime = b

	// Sinks
	case "SINKS":
		sinks := splitList(value)
		for _, s := range sinks {
			switch s {
			case "tui", "web", "mqtt", "png", "csv":
			default:
				return fmt.Errorf("unknown sink %q in SINKS (want tui, web, mqtt, png, csv)", s)
			}
		}
		c.Sinks = sinks
	case "WEB_SERVER_PORT":
		return parsePositiveInt(key, value, &c.WebServerPort)
	case "WEB_ROOT":
		c.WebRoot = value
	case "PNG_OUTPUT_PATH":
		c.PNGOutputPath = value
	case "IMAGE_WIDTH":
		return parsePositiveInt(key, value, &c.ImageWidth)
	case "IMAGE_HEIGHT":
		return parsePositiveInt(key, value, &c.ImageHeight)
	case "CSV_OUTPUT_DIR":
		c.CSVOutputDir = value

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FILE":
		c.LogFile = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks cross-field invariants.
func (c *Config) validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("CHANNELS is required")
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if seen[ch] {
			return fmt.Errorf("CHANNELS lists %q twice", ch)
		}
		seen[ch] = true
	}
	if c.WindowCapacity < 1 {
		return fmt.Errorf("WINDOW_CAPACITY is required")
	}
	if err := c.Scales.Validate(); err != nil {
		return fmt.Errorf("SCALES: %w", err)
	}
	if c.MinFill == 0 {
		c.MinFill = c.WindowCapacity
	}
	if c.MinFill > c.WindowCapacity {
		return fmt.Errorf("MIN_FILL (%d) must not exceed WINDOW_CAPACITY (%d)", c.MinFill, c.WindowCapacity)
	}
	if _, err := c.ScalogramIndices(); err != nil {
		return err
	}
	if c.Normalization == "fixed" && !(c.NormalizationMax > c.NormalizationMin) {
		return fmt.Errorf("NORMALIZATION_MAX must be greater than NORMALIZATION_MIN")
	}
	if c.Source == "serial" {
		if c.SerialPort == "" {
			return fmt.Errorf("SERIAL_PORT is required")
		}
		if _, err := imu.FieldOrder(c.SerialFields, c.Channels); err != nil {
			return fmt.Errorf("SERIAL_FIELDS: %w", err)
		}
	}
	if c.Source == "replay" && c.ReplayFile == "" {
		return fmt.Errorf("REPLAY_FILE is required for SOURCE=replay")
	}
	if (c.Source == "mqtt" || contains(c.Sinks, "mqtt")) && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	return nil
}

// ScalogramIndices resolves SCALOGRAM_CHANNELS (names or 0-based indices)
// against CHANNELS. One to three distinct channels are allowed.
func (c *Config) ScalogramIndices() ([]int, error) {
	if len(c.ScalogramChannels) == 0 || len(c.ScalogramChannels) > 3 {
		return nil, fmt.Errorf("SCALOGRAM_CHANNELS must list 1 to 3 channels, got %d", len(c.ScalogramChannels))
	}
	out := make([]int, 0, len(c.ScalogramChannels))
	used := make(map[int]bool)
	for _, sel := range c.ScalogramChannels {
		idx := -1
		if n, err := strconv.Atoi(sel); err == nil {
			idx = n
		} else {
			for i, ch := range c.Channels {
				if strings.EqualFold(ch, sel) {
					idx = i
					break
				}
			}
		}
		if idx < 0 || idx >= len(c.Channels) {
			return nil, fmt.Errorf("SCALOGRAM_CHANNELS: %q is not one of %v", sel, c.Channels)
		}
		if used[idx] {
			return nil, fmt.Errorf("SCALOGRAM_CHANNELS: %q selected twice", sel)
		}
		used[idx] = true
		out = append(out, idx)
	}
	return out, nil
}

// HasSink reports whether the named sink is enabled.
func (c *Config) HasSink(name string) bool { return contains(c.Sinks, name) }

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func parsePositiveInt(key, value string, dst *int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", key, v)
	}
	*dst = v
	return nil
}

func parseFloat(key, value string, dst *float64) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = v
	return nil
}

func parsePositiveFloat(key, value string, dst *float64) error {
	var v float64
	if err := parseFloat(key, value, &v); err != nil {
		return err
	}
	if !(v > 0) {
		return fmt.Errorf("%s must be positive, got %v", key, v)
	}
	*dst = v
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
