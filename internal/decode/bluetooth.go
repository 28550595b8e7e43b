package decode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/intercept/backend/internal/capture"
)

// bluetoothctl scan output:
//
//	[NEW] Device AA:BB:CC:DD:EE:FF Pixel 8
//	[CHG] Device AA:BB:CC:DD:EE:FF RSSI: -67
//	[DEL] Device AA:BB:CC:DD:EE:FF Pixel 8
var btctlRe = regexp.MustCompile(`^\[(NEW|CHG|DEL)\] Device (([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2})\s*(.*)$`)

// hcitool scan output is tab-separated: "\tAA:BB:CC:DD:EE:FF\tMyPhone"
var hcitoolRe = regexp.MustCompile(`^\s*(([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2})\s+(.+)$`)

// BluetoothDecoder parses bluetoothctl and hcitool scan output into
// DeviceFound events, deduplicating by address so each device is
// announced once per session.
type BluetoothDecoder struct {
	seen map[string]string // address → last known name
}

func NewBluetoothDecoder() *BluetoothDecoder {
	return &BluetoothDecoder{seen: make(map[string]string)}
}

func (d *BluetoothDecoder) Decode(line string) []capture.Event {
	line = stripAnsi(strings.TrimRight(line, "\r"))
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if m := btctlRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
		return d.btctlEvent(m[1], strings.ToUpper(m[2]), strings.TrimSpace(m[4]))
	}
	if m := hcitoolRe.FindStringSubmatch(line); m != nil {
		return d.found(strings.ToUpper(m[1]), strings.TrimSpace(m[3]))
	}
	return nil
}

func (d *BluetoothDecoder) btctlEvent(op, address, rest string) []capture.Event {
	switch op {
	case "NEW":
		return d.found(address, rest)
	case "CHG":
		// Only RSSI changes are interesting; other property chatter
		// (UUIDs, TxPower) is dropped.
		if v, ok := strings.CutPrefix(rest, "RSSI:"); ok {
			if _, known := d.seen[address]; !known {
				return nil
			}
			rssi, err := strconv.Atoi(strings.TrimSpace(stripParenValue(v)))
			if err != nil {
				return nil
			}
			return []capture.Event{capture.NewEvent(capture.Status, map[string]any{
				"address": address,
				"rssi":    rssi,
			})}
		}
		return nil
	case "DEL":
		if _, known := d.seen[address]; known {
			delete(d.seen, address)
			return []capture.Event{capture.NewEvent(capture.Status, map[string]any{
				"address": address,
				"text":    "device lost",
			})}
		}
		return nil
	default:
		return nil
	}
}

func (d *BluetoothDecoder) found(address, name string) []capture.Event {
	if _, known := d.seen[address]; known {
		return nil
	}
	// bluetoothctl repeats the address (dash-separated) for devices
	// with no resolved name yet.
	if name == "" || strings.EqualFold(strings.ReplaceAll(name, "-", ":"), address) {
		name = "Unknown"
	}
	d.seen[address] = name
	return []capture.Event{capture.NewEvent(capture.DeviceFound, map[string]any{
		"address": address,
		"name":    name,
	})}
}

// stripParenValue drops bluetoothctl's hex annotation: "-67 (0xbd)" → "-67".
func stripParenValue(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i]
	}
	return s
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// bluetoothctl colors its output even when not on a tty in some
// versions; strip escapes before matching.
func stripAnsi(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiRe.ReplaceAllString(s, "")
}
