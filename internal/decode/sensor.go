package decode

import (
	"encoding/json"
	"strings"

	"github.com/intercept/backend/internal/capture"
)

// Model/protocol substrings that indicate a LoRa/LPWAN class device
// rather than a plain ISM-band sensor.
var loraDevicePatterns = []string{
	"lora", "dragino", "rak", "heltec", "ttgo", "lopy", "pycom",
	"semtech", "sx127", "rfm95", "rfm96", "murata", "microchip",
	"the things", "ttn", "helium", "chirpstack", "lorawan",
	"smart meter", "sensus", "itron", "landis", "water meter",
	"gas meter", "electric meter", "utility meter",
}

// isLoraDevice checks whether a device model/protocol pair looks like a
// LoRa/LPWAN device.
func isLoraDevice(model, protocol string) bool {
	combined := strings.ToLower(model + " " + protocol)
	for _, p := range loraDevicePatterns {
		if strings.Contains(combined, p) {
			return true
		}
	}
	return false
}

// signalQuality normalizes an RSSI reading to a 0..100 percentage.
// Typical usable range runs from -120 dBm (weak) to -30 dBm (strong).
func signalQuality(rssi float64) int {
	q := (rssi + 120) * 100 / 90
	if q < 0 {
		q = 0
	}
	if q > 100 {
		q = 100
	}
	return int(q + 0.5)
}

// SensorDecoder parses rtl_433 JSON output. Each JSON object becomes a
// DeviceFound event enriched with LoRa classification and signal
// quality. Plain-text informational lines become Status events; a line
// that looks like JSON but doesn't parse is surfaced as an Error event
// and decoding continues.
type SensorDecoder struct {
	decoded  int
	perModel map[string]int
}

func NewSensorDecoder() *SensorDecoder {
	return &SensorDecoder{perModel: make(map[string]int)}
}

func (d *SensorDecoder) Decode(line string) []capture.Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "{") {
		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return []capture.Event{capture.NewEvent(capture.Error, map[string]any{
				"text": "malformed rtl_433 JSON",
				"line": line,
			})}
		}
		return []capture.Event{d.deviceEvent(data)}
	}

	// rtl_433 prints occasional non-JSON info lines; underscore-prefixed
	// lines are internal chatter worth dropping.
	if strings.HasPrefix(line, "_") {
		return nil
	}
	return []capture.Event{capture.StatusEvent(line)}
}

func (d *SensorDecoder) deviceEvent(data map[string]any) capture.Event {
	model, _ := data["model"].(string)
	protocol, _ := data["protocol"].(string)
	if model == "" {
		model = "Unknown"
	}

	d.decoded++
	d.perModel[model]++

	data["isLora"] = isLoraDevice(model, protocol)
	if rssi, ok := data["rssi"].(float64); ok {
		data["signalQuality"] = signalQuality(rssi)
	}
	return capture.NewEvent(capture.DeviceFound, data)
}

// Decoded reports how many sensor records this session has parsed.
func (d *SensorDecoder) Decoded() int { return d.decoded }
