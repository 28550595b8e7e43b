package registry

import (
	"fmt"

	"github.com/intercept/backend/internal/capture"
	"github.com/intercept/backend/internal/config"
	"github.com/intercept/backend/internal/hardware"
)

// RTL-SDR tunable range; requests outside it are rejected before any
// process is spawned.
const (
	minFrequencyMHz = 24.0
	maxFrequencyMHz = 1766.0
	maxGain         = 49.6
	maxPPMOffset    = 100
	maxHopChannels  = 4
)

// Params carries the caller-tunable knobs of a start request. Which
// fields apply depends on the capability; irrelevant fields are
// ignored for wifi/bluetooth and rejected where they'd be misleading.
type Params struct {
	// Band selects a sensor frequency preset (see Bands). Ignored when
	// FrequencyMHz is set explicitly.
	Band string `json:"band,omitempty"`
	// FrequencyMHz overrides the band's center frequency.
	FrequencyMHz float64 `json:"frequencyMhz,omitempty"`
	Gain         float64 `json:"gain,omitempty"`
	PPM          int     `json:"ppm,omitempty"`
	// Device is the hardware identifier: SDR index ("0"), wifi
	// interface ("wlan0mon"), or bluetooth controller ("hci0").
	Device string `json:"device,omitempty"`
	// HopEnabled adds the band's hop channels as extra rtl_433 tuning
	// targets (sensor only).
	HopEnabled bool `json:"hopEnabled,omitempty"`
	// ScanMode selects the bluetooth discovery transport: "dual"
	// (default, bluetoothctl) or "le" (hcitool lescan).
	ScanMode string `json:"scanMode,omitempty"`
}

// resolve fills defaults from config, validates ranges, and checks the
// requested device against the lister. Returns the effective params.
func (p Params) resolve(cap capture.Capability, cfg *config.Config, devices hardware.DeviceLister) (Params, error) {
	switch cap {
	case capture.Pager, capture.Sensor:
		return p.resolveSDR(cap, cfg, devices)
	case capture.Wifi:
		return p.resolveDevice(capture.WifiAdapter, devices)
	case capture.Bluetooth:
		return p.resolveBluetooth(devices)
	}
	return p, nil
}

func (p Params) resolveSDR(cap capture.Capability, cfg *config.Config, devices hardware.DeviceLister) (Params, error) {
	if p.Band == "" {
		p.Band = cfg.Sensor.Band
	}
	band, ok := BandByID(p.Band)
	if !ok {
		return p, &ValidationError{Field: "band", Reason: fmt.Sprintf("unknown band %q", p.Band)}
	}

	if p.FrequencyMHz == 0 {
		if cap == capture.Sensor {
			p.FrequencyMHz = band.FrequencyMHz
			if cfg.Sensor.FrequencyMHz != 0 {
				p.FrequencyMHz = cfg.Sensor.FrequencyMHz
			}
		} else {
			// Common public-safety pager allocation as the default.
			p.FrequencyMHz = 153.35
		}
	}
	if p.FrequencyMHz < minFrequencyMHz || p.FrequencyMHz > maxFrequencyMHz {
		return p, &ValidationError{
			Field:  "frequency",
			Reason: fmt.Sprintf("%.4f MHz outside tunable range %.0f-%.0f MHz", p.FrequencyMHz, minFrequencyMHz, maxFrequencyMHz),
		}
	}

	if p.Gain == 0 {
		p.Gain = cfg.Sensor.Gain
	}
	if p.Gain < 0 || p.Gain > maxGain {
		return p, &ValidationError{Field: "gain", Reason: fmt.Sprintf("%.1f outside 0-%.1f dB", p.Gain, maxGain)}
	}

	if p.PPM == 0 {
		p.PPM = cfg.Sensor.PPM
	}
	if p.PPM < -maxPPMOffset || p.PPM > maxPPMOffset {
		return p, &ValidationError{Field: "ppm", Reason: fmt.Sprintf("%d outside ±%d", p.PPM, maxPPMOffset)}
	}

	if p.Device == "" {
		p.Device = "0"
	}
	if !hardware.Has(devices, capture.SDR, p.Device) {
		return p, &ValidationError{Field: "device", Reason: fmt.Sprintf("unknown SDR device %q", p.Device)}
	}

	if p.HopEnabled && cap != capture.Sensor {
		p.HopEnabled = false
	}
	p.ScanMode = ""
	return p, nil
}

func (p Params) resolveDevice(res capture.Resource, devices hardware.DeviceLister) (Params, error) {
	if p.Device == "" {
		ids := devices.Devices(res)
		if len(ids) == 0 {
			return p, &ValidationError{Field: "device", Reason: "no devices available"}
		}
		p.Device = ids[0]
	}
	if !hardware.Has(devices, res, p.Device) {
		return p, &ValidationError{Field: "device", Reason: fmt.Sprintf("unknown device %q", p.Device)}
	}
	// Radio knobs don't apply off the SDR.
	p.Band = ""
	p.FrequencyMHz = 0
	p.Gain = 0
	p.PPM = 0
	p.HopEnabled = false
	p.ScanMode = ""
	return p, nil
}

func (p Params) resolveBluetooth(devices hardware.DeviceLister) (Params, error) {
	mode := p.ScanMode
	p, err := p.resolveDevice(capture.BtController, devices)
	if err != nil {
		return p, err
	}
	switch mode {
	case "":
		p.ScanMode = "dual"
	case "dual", "le":
		p.ScanMode = mode
	default:
		return p, &ValidationError{Field: "scanMode", Reason: fmt.Sprintf("unknown scan mode %q (want dual or le)", mode)}
	}
	return p, nil
}
