package registry

import (
	"fmt"
	"strconv"

	"github.com/intercept/backend/internal/capture"
	"github.com/intercept/backend/internal/config"
	"github.com/intercept/backend/internal/proc"
)

// commandsFor builds the process specs for a capability with resolved
// params. One spec for a single process, two for a piped pipeline
// (first's stdout feeds the second).
func commandsFor(cap capture.Capability, p Params, tools config.ToolsConfig) []proc.Spec {
	switch cap {
	case capture.Pager:
		return pagerCommands(p, tools)
	case capture.Sensor:
		return []proc.Spec{sensorCommand(p, tools)}
	case capture.Wifi:
		return []proc.Spec{wifiCommand(p, tools)}
	case capture.Bluetooth:
		return []proc.Spec{bluetoothCommand(p, tools)}
	}
	return nil
}

func mhz(f float64) string {
	return fmt.Sprintf("%gM", f)
}

// sensorCommand tunes rtl_433 for ISM/LoRa-band monitoring: JSON
// output, UTC timestamps, auto level for weak signals.
func sensorCommand(p Params, tools config.ToolsConfig) proc.Spec {
	args := []string{
		"-d", p.Device,
		"-f", mhz(p.FrequencyMHz),
		"-g", strconv.FormatFloat(p.Gain, 'f', -1, 64),
		"-F", "json",
		"-M", "time:utc",
		"-Y", "autolevel",
	}
	if p.PPM != 0 {
		args = append(args, "-p", strconv.Itoa(p.PPM))
	}
	if p.HopEnabled {
		if band, ok := BandByID(p.Band); ok {
			added := 0
			for _, ch := range band.ChannelsMHz {
				if added >= maxHopChannels {
					break
				}
				if ch == p.FrequencyMHz {
					continue
				}
				args = append(args, "-f", mhz(ch))
				added++
			}
		}
	}
	return proc.Spec{Command: tools.Rtl433, Args: args}
}

// pagerCommands builds the rtl_fm | multimon-ng pipeline: rtl_fm
// demodulates narrowband FM to raw audio on stdout, multimon-ng
// decodes POCSAG and FLEX from it.
func pagerCommands(p Params, tools config.ToolsConfig) []proc.Spec {
	fmArgs := []string{
		"-d", p.Device,
		"-f", mhz(p.FrequencyMHz),
		"-s", "22050",
		"-g", strconv.FormatFloat(p.Gain, 'f', -1, 64),
	}
	if p.PPM != 0 {
		fmArgs = append(fmArgs, "-p", strconv.Itoa(p.PPM))
	}
	fmArgs = append(fmArgs, "-")

	mmArgs := []string{
		"-a", "POCSAG512",
		"-a", "POCSAG1200",
		"-a", "POCSAG2400",
		"-a", "FLEX",
		"-f", "alpha",
		"-t", "raw",
		"-",
	}

	return []proc.Spec{
		{Command: tools.RtlFM, Args: fmArgs},
		{Command: tools.MultimonNG, Args: mmArgs},
	}
}

// wifiCommand runs airodump-ng writing its CSV table to stdout so the
// decoder can follow it line by line.
func wifiCommand(p Params, tools config.ToolsConfig) proc.Spec {
	return proc.Spec{
		Command: tools.AirodumpNG,
		Args: []string{
			"--output-format", "csv",
			"--write-interval", "1",
			"--write", "/dev/stdout",
			p.Device,
		},
	}
}

// bluetoothCommand runs an endless discovery scan. Dual mode goes
// through bluetoothctl ([NEW]/[CHG] lines); LE-only mode runs hcitool
// lescan, whose address/name lines the decoder also understands.
func bluetoothCommand(p Params, tools config.ToolsConfig) proc.Spec {
	if p.ScanMode == "le" {
		return proc.Spec{
			Command: tools.Hcitool,
			Args:    []string{"-i", p.Device, "lescan", "--duplicates"},
		}
	}
	return proc.Spec{Command: tools.Bluetoothctl, Args: []string{"scan", "on"}}
}
