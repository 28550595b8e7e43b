package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Capture CaptureConfig `yaml:"capture"`
	Tools   ToolsConfig   `yaml:"tools"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Devices DevicesConfig `yaml:"devices"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
}

type CaptureConfig struct {
	// GracePeriod is how long a process gets between SIGTERM and
	// SIGKILL on stop.
	GracePeriod time.Duration `yaml:"grace_period"`
	// QueueCapacity bounds each stream subscriber's event queue; a
	// subscriber that falls this far behind is dropped.
	QueueCapacity int `yaml:"queue_capacity"`
	// KeepaliveInterval paces SSE keepalives during silent stretches.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// ToolsConfig names the external binaries. Overridable so packaged
// installs (or tests) can point at wrappers.
type ToolsConfig struct {
	Rtl433       string `yaml:"rtl_433"`
	RtlFM        string `yaml:"rtl_fm"`
	MultimonNG   string `yaml:"multimon_ng"`
	AirodumpNG   string `yaml:"airodump_ng"`
	Bluetoothctl string `yaml:"bluetoothctl"`
	Hcitool      string `yaml:"hcitool"`
}

type SensorConfig struct {
	Band         string  `yaml:"band"`
	FrequencyMHz float64 `yaml:"frequency_mhz"`
	Gain         float64 `yaml:"gain"`
	PPM          int     `yaml:"ppm"`
}

type DevicesConfig struct {
	SDRCount      int      `yaml:"sdr_count"`
	WifiAdapters  []string `yaml:"wifi_adapters"`
	BtControllers []string `yaml:"bt_controllers"`
}

type LoggingConfig struct {
	// EventsFile, when set, receives every published event as NDJSON.
	EventsFile string `yaml:"events_file"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Capture: CaptureConfig{
			GracePeriod:       2 * time.Second,
			QueueCapacity:     256,
			KeepaliveInterval: 30 * time.Second,
		},
		Tools: ToolsConfig{
			Rtl433:       "rtl_433",
			RtlFM:        "rtl_fm",
			MultimonNG:   "multimon-ng",
			AirodumpNG:   "airodump-ng",
			Bluetoothctl: "bluetoothctl",
			Hcitool:      "hcitool",
		},
		Sensor: SensorConfig{
			Band: "ism433",
			Gain: 40,
		},
		Devices: DevicesConfig{
			SDRCount: 1,
		},
	}
}

// Load reads a YAML config over the built-in defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
