package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Capture.GracePeriod != 2*time.Second {
		t.Errorf("default grace period = %v, want 2s", cfg.Capture.GracePeriod)
	}
	if cfg.Tools.Rtl433 != "rtl_433" {
		t.Errorf("default rtl_433 tool = %q", cfg.Tools.Rtl433)
	}
	if cfg.Sensor.Band != "ism433" {
		t.Errorf("default sensor band = %q, want ism433", cfg.Sensor.Band)
	}
	if cfg.Devices.SDRCount != 1 {
		t.Errorf("default sdr count = %d, want 1", cfg.Devices.SDRCount)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
  auth_token: sekrit
capture:
  grace_period: 5s
  queue_capacity: 32
tools:
  rtl_433: /opt/sdr/bin/rtl_433
sensor:
  band: eu868
  gain: 28.5
devices:
  sdr_count: 2
  wifi_adapters: [wlan0mon, wlan1]
logging:
  events_file: /var/log/intercept/events.ndjson
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.AuthToken != "sekrit" {
		t.Errorf("server config = %+v", cfg.Server)
	}
	if cfg.Capture.GracePeriod != 5*time.Second {
		t.Errorf("grace period = %v, want 5s", cfg.Capture.GracePeriod)
	}
	if cfg.Capture.QueueCapacity != 32 {
		t.Errorf("queue capacity = %d, want 32", cfg.Capture.QueueCapacity)
	}
	if cfg.Tools.Rtl433 != "/opt/sdr/bin/rtl_433" {
		t.Errorf("rtl_433 = %q", cfg.Tools.Rtl433)
	}
	// Unset tool keeps its default.
	if cfg.Tools.MultimonNG != "multimon-ng" {
		t.Errorf("multimon-ng default lost: %q", cfg.Tools.MultimonNG)
	}
	if cfg.Sensor.Band != "eu868" || cfg.Sensor.Gain != 28.5 {
		t.Errorf("sensor config = %+v", cfg.Sensor)
	}
	if len(cfg.Devices.WifiAdapters) != 2 {
		t.Errorf("wifi adapters = %v", cfg.Devices.WifiAdapters)
	}
	if cfg.Logging.EventsFile == "" {
		t.Error("events file not parsed")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
