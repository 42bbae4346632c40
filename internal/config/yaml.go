// SPDX-License-Identifier: MIT
package config

import (
	"beatlamp/internal/fft"
	"beatlamp/internal/led"
	"beatlamp/internal/log"
	"beatlamp/pkg/bitint"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, so
// transport.udp_enabled is read from BEATLAMP_TRANSPORT_UDP_ENABLED.
const EnvPrefix = "BEATLAMP"

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`
	Detector  DetectorConfig  `yaml:"detector"`
	Lamp      LampConfig      `yaml:"lamp"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per block; also the transform size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Captured channels, down-mixed to mono.
	GateEnabled     bool    `yaml:"gate_enabled"`      // Silence blocks below GateThreshold.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Peak level 0.0-1.0.
}

// DetectorConfig holds beat detector settings.
type DetectorConfig struct {
	Sensitivity float64 `yaml:"sensitivity"` // Clamped to 0.5-2.0 by the detector.
	Window      string  `yaml:"window"`      // Window function name; empty for none.
	BandStart   int     `yaml:"band_start"`  // First bass bin.
	BandEnd     int     `yaml:"band_end"`    // Last bass bin.
}

// LampConfig describes the strip and where lamp settings persist.
type LampConfig struct {
	Pixels    int    `yaml:"pixels"`     // Strip length.
	Effect    string `yaml:"effect"`     // Effect at startup; see led.ParseEffectType.
	PowerOn   bool   `yaml:"power_on"`   // Turn the strip on at startup.
	StateFile string `yaml:"state_file"` // Persisted brightness and colour.
	Terminal  bool   `yaml:"terminal"`   // Mirror frames to the terminal.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled     bool   `yaml:"enabled"`              // Enable audio recording to file.
	OutputDir   string `yaml:"output_dir"`           // Directory to save recorded audio files.
	Format      string `yaml:"format"`               // File format for recordings; only "wav".
	BitDepth    int    `yaml:"bit_depth"`            // Only 16 is supported.
	MaxDuration int    `yaml:"max_duration_seconds"` // Maximum duration of a single recording file in seconds (0 for unlimited).
}

// TransportConfig holds settings for publishing beats and frames.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send pixel frames over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // host:port of the receiver.
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between frames.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve beat and frame events.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address, e.g. ":8080".
	WebSocketPath    string        `yaml:"websocket_path"`     // Upgrade path, e.g. "/ws".
	LogEvents        bool          `yaml:"log_events"`         // Log every event at debug level.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     -1, // -1 for default device.
			SampleRate:      44100,
			FramesPerBuffer: 1024,
			LowLatency:      false,
			InputChannels:   1,
			GateEnabled:     false,
			GateThreshold:   0.01,
		},
		Detector: DetectorConfig{
			Sensitivity: 1.3,
			Window:      "",
			BandStart:   2,
			BandEnd:     10,
		},
		Lamp: LampConfig{
			Pixels:    12,
			Effect:    "music",
			PowerOn:   true,
			StateFile: "lamp_state.yaml",
			Terminal:  false,
		},
		Recording: RecordingConfig{
			Enabled:     false,
			OutputDir:   "./recordings",
			Format:      "wav",
			BitDepth:    16,
			MaxDuration: 0, // 0 for unlimited.
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // ~30Hz.
			WebSocketEnabled: false,
			WebSocketAddress: ":8080",
			WebSocketPath:    "/ws",
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. Environment overrides are applied last, then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "beatlamp.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("Config: loaded %s", path)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envOverrides lists every key that can be set from the environment and
// how to apply it.
var envOverrides = []struct {
	key   string
	apply func(v *viper.Viper, c *Config)
}{
	{"debug", func(v *viper.Viper, c *Config) { c.Debug = v.GetBool("debug") }},
	{"log_level", func(v *viper.Viper, c *Config) { c.LogLevel = v.GetString("log_level") }},
	{"audio.input_device", func(v *viper.Viper, c *Config) { c.Audio.InputDevice = v.GetInt("audio.input_device") }},
	{"audio.sample_rate", func(v *viper.Viper, c *Config) { c.Audio.SampleRate = v.GetFloat64("audio.sample_rate") }},
	{"audio.frames_per_buffer", func(v *viper.Viper, c *Config) { c.Audio.FramesPerBuffer = v.GetInt("audio.frames_per_buffer") }},
	{"audio.input_channels", func(v *viper.Viper, c *Config) { c.Audio.InputChannels = v.GetInt("audio.input_channels") }},
	{"audio.gate_enabled", func(v *viper.Viper, c *Config) { c.Audio.GateEnabled = v.GetBool("audio.gate_enabled") }},
	{"audio.gate_threshold", func(v *viper.Viper, c *Config) { c.Audio.GateThreshold = v.GetFloat64("audio.gate_threshold") }},
	{"detector.sensitivity", func(v *viper.Viper, c *Config) { c.Detector.Sensitivity = v.GetFloat64("detector.sensitivity") }},
	{"detector.window", func(v *viper.Viper, c *Config) { c.Detector.Window = v.GetString("detector.window") }},
	{"lamp.pixels", func(v *viper.Viper, c *Config) { c.Lamp.Pixels = v.GetInt("lamp.pixels") }},
	{"lamp.effect", func(v *viper.Viper, c *Config) { c.Lamp.Effect = v.GetString("lamp.effect") }},
	{"lamp.state_file", func(v *viper.Viper, c *Config) { c.Lamp.StateFile = v.GetString("lamp.state_file") }},
	{"recording.enabled", func(v *viper.Viper, c *Config) { c.Recording.Enabled = v.GetBool("recording.enabled") }},
	{"recording.output_dir", func(v *viper.Viper, c *Config) { c.Recording.OutputDir = v.GetString("recording.output_dir") }},
	{"transport.udp_enabled", func(v *viper.Viper, c *Config) { c.Transport.UDPEnabled = v.GetBool("transport.udp_enabled") }},
	{"transport.udp_target_address", func(v *viper.Viper, c *Config) {
		c.Transport.UDPTargetAddress = v.GetString("transport.udp_target_address")
	}},
	{"transport.udp_send_interval", func(v *viper.Viper, c *Config) {
		c.Transport.UDPSendInterval = v.GetDuration("transport.udp_send_interval")
	}},
	{"transport.websocket_enabled", func(v *viper.Viper, c *Config) {
		c.Transport.WebSocketEnabled = v.GetBool("transport.websocket_enabled")
	}},
	{"transport.websocket_address", func(v *viper.Viper, c *Config) {
		c.Transport.WebSocketAddress = v.GetString("transport.websocket_address")
	}},
	{"transport.websocket_path", func(v *viper.Viper, c *Config) {
		c.Transport.WebSocketPath = v.GetString("transport.websocket_path")
	}},
	{"transport.log_events", func(v *viper.Viper, c *Config) { c.Transport.LogEvents = v.GetBool("transport.log_events") }},
}

// applyEnvOverrides overwrites fields whose BEATLAMP_* variable is set.
// Values that do not parse as the field's type are reported as errors.
func (c *Config) applyEnvOverrides() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, o := range envOverrides {
		if err := v.BindEnv(o.key); err != nil {
			return fmt.Errorf("bind env %s: %w", o.key, err)
		}
		if !v.IsSet(o.key) {
			continue
		}
		raw := v.GetString(o.key)
		if err := checkEnvValue(o.key, raw); err != nil {
			return err
		}
		o.apply(v, c)
		log.Infof("Config: overriding %s from environment: %s", o.key, raw)
	}
	return nil
}

// checkEnvValue rejects values viper would silently turn into zero.
func checkEnvValue(key, raw string) error {
	var err error
	switch key {
	case "debug", "audio.gate_enabled", "recording.enabled", "transport.udp_enabled", "transport.websocket_enabled",
		"transport.log_events":
		_, err = strconv.ParseBool(raw)
	case "audio.input_device", "audio.frames_per_buffer", "audio.input_channels", "lamp.pixels":
		_, err = strconv.Atoi(raw)
	case "audio.sample_rate", "audio.gate_threshold", "detector.sensitivity":
		_, err = strconv.ParseFloat(raw, 64)
	case "transport.udp_send_interval":
		_, err = time.ParseDuration(raw)
	}
	if err != nil {
		return fmt.Errorf("environment %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), err)
	}
	return nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}

	// Audio
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %g", c.Audio.SampleRate))
	}
	if !bitint.IsPowerOfTwo(c.Audio.FramesPerBuffer) {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be a power of two, got %d (try %d)",
			c.Audio.FramesPerBuffer, bitint.NextPowerOfTwo(c.Audio.FramesPerBuffer)))
	}
	if c.Audio.InputChannels < 1 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be at least 1, got %d", c.Audio.InputChannels))
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be within 0-1, got %g", c.Audio.GateThreshold))
	}

	// Detector
	if c.Detector.Sensitivity <= 0 {
		errs = append(errs, fmt.Errorf("detector.sensitivity must be positive, got %g", c.Detector.Sensitivity))
	}
	if _, err := fft.ParseWindow(c.Detector.Window); err != nil {
		errs = append(errs, fmt.Errorf("detector.window: %w", err))
	}
	if c.Detector.BandStart < 0 || c.Detector.BandEnd < c.Detector.BandStart ||
		c.Detector.BandEnd >= c.Audio.FramesPerBuffer/2 {
		errs = append(errs, fmt.Errorf("detector band [%d,%d] does not fit a %d-point transform",
			c.Detector.BandStart, c.Detector.BandEnd, c.Audio.FramesPerBuffer))
	}

	// Lamp
	if c.Lamp.Pixels < 0 {
		errs = append(errs, fmt.Errorf("lamp.pixels must not be negative, got %d", c.Lamp.Pixels))
	}
	if _, err := led.ParseEffectType(c.Lamp.Effect); err != nil {
		errs = append(errs, fmt.Errorf("lamp.effect: %w", err))
	}

	// Recording
	if c.Recording.Enabled {
		if c.Recording.Format != "wav" {
			errs = append(errs, fmt.Errorf("recording.format %q is not supported", c.Recording.Format))
		}
		if c.Recording.BitDepth != 16 {
			errs = append(errs, fmt.Errorf("recording.bit_depth %d is not supported", c.Recording.BitDepth))
		}
	}

	// Transport
	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q: %w", c.Transport.UDPTargetAddress, err))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddress); err != nil {
			errs = append(errs, fmt.Errorf("transport.websocket_address %q: %w", c.Transport.WebSocketAddress, err))
		}
		if !strings.HasPrefix(c.Transport.WebSocketPath, "/") {
			errs = append(errs, fmt.Errorf("transport.websocket_path %q must start with /", c.Transport.WebSocketPath))
		}
	}

	return errors.Join(errs...)
}

// ParseRGB parses "r,g,b" with each channel in 0-255.
func ParseRGB(s string) (r, g, b int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("colour %q: want r,g,b", s)
	}
	var ch [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("colour %q: %w", s, err)
		}
		if n < 0 || n > 255 {
			return 0, 0, 0, fmt.Errorf("colour %q: channel %d out of range", s, n)
		}
		ch[i] = n
	}
	return ch[0], ch[1], ch[2], nil
}
