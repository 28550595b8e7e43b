package capture

import "encoding/json"

// Capability identifies one of the supported signal-capture activity
// families. At most one session per capability is active at a time.
type Capability int

const (
	Pager Capability = iota // rtl_fm | multimon-ng POCSAG/FLEX decoding
	Sensor                  // rtl_433 ISM-band sensor decoding
	Wifi                    // airodump-ng monitor-mode scanning
	Bluetooth               // bluetoothctl device discovery
)

var capabilityNames = map[Capability]string{
	Pager:     "pager",
	Sensor:    "sensor",
	Wifi:      "wifi",
	Bluetooth: "bluetooth",
}

var capabilityFromName = map[string]Capability{
	"pager":     Pager,
	"sensor":    Sensor,
	"wifi":      Wifi,
	"bluetooth": Bluetooth,
}

// Capabilities lists every supported capability in a stable order.
func Capabilities() []Capability {
	return []Capability{Pager, Sensor, Wifi, Bluetooth}
}

// ParseCapability maps a lowercase capability name (as used in URLs and
// config) back to its enum value.
func ParseCapability(name string) (Capability, bool) {
	c, ok := capabilityFromName[name]
	return c, ok
}

func (c Capability) String() string {
	if s, ok := capabilityNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Capability) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := capabilityFromName[s]; ok {
		*c = v
	}
	return nil
}

// Resource identifies a piece of shared hardware that only one session
// may use at a time.
type Resource int

const (
	SDR Resource = iota // the RTL-SDR dongle
	WifiAdapter
	BtController
)

var resourceNames = map[Resource]string{
	SDR:          "sdr",
	WifiAdapter:  "wifi_adapter",
	BtController: "bt_controller",
}

func (r Resource) String() string {
	if s, ok := resourceNames[r]; ok {
		return s
	}
	return "unknown"
}

func (r Resource) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// Resource returns the hardware a capability needs exclusive access to.
// Pager and sensor capture both tune the single SDR dongle, so they
// contend for the same resource.
func (c Capability) Resource() Resource {
	switch c {
	case Wifi:
		return WifiAdapter
	case Bluetooth:
		return BtController
	default:
		return SDR
	}
}
