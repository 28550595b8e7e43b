package decode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/intercept/backend/internal/capture"
)

var macRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

type wifiSection int

const (
	sectionNone wifiSection = iota
	sectionNetworks
	sectionStations
)

// WifiDecoder parses airodump-ng CSV output. The CSV interleaves two
// sections, access points then stations, each announced by a header
// row; tracking which section we're in is the decoder state. A network
// or station is emitted once, on first sighting.
type WifiDecoder struct {
	section      wifiSection
	seenNetworks map[string]bool
	seenStations map[string]bool
}

func NewWifiDecoder() *WifiDecoder {
	return &WifiDecoder{
		seenNetworks: make(map[string]bool),
		seenStations: make(map[string]bool),
	}
}

func (d *WifiDecoder) Decode(line string) []capture.Event {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	// Section headers repeat on every write interval.
	if strings.HasPrefix(trimmed, "BSSID,") {
		d.section = sectionNetworks
		return nil
	}
	if strings.HasPrefix(trimmed, "Station MAC,") {
		d.section = sectionStations
		return nil
	}

	fields := splitCSV(line)
	switch d.section {
	case sectionNetworks:
		return d.networkRow(fields, trimmed)
	case sectionStations:
		return d.stationRow(fields)
	default:
		return nil
	}
}

// networkRow handles one access-point row:
// BSSID, First seen, Last seen, channel, Speed, Privacy, Cipher,
// Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key
func (d *WifiDecoder) networkRow(fields []string, raw string) []capture.Event {
	if len(fields) < 14 {
		if macRe.MatchString(firstField(fields)) {
			return []capture.Event{capture.NewEvent(capture.Error, map[string]any{
				"text": "truncated airodump network row",
				"line": raw,
			})}
		}
		return nil
	}
	bssid := fields[0]
	if !macRe.MatchString(bssid) {
		return nil
	}
	if d.seenNetworks[bssid] {
		return nil
	}
	d.seenNetworks[bssid] = true

	channel, _ := strconv.Atoi(fields[3])
	power, _ := strconv.Atoi(fields[8])

	return []capture.Event{capture.NewEvent(capture.NetworkFound, map[string]any{
		"bssid":     bssid,
		"channel":   channel,
		"privacy":   fields[5],
		"cipher":    fields[6],
		"auth":      fields[7],
		"power":     power,
		"essid":     fields[13],
		"firstSeen": fields[1],
	})}
}

// stationRow handles one client row:
// Station MAC, First seen, Last seen, Power, # packets, BSSID, Probed ESSIDs
func (d *WifiDecoder) stationRow(fields []string) []capture.Event {
	if len(fields) < 6 {
		return nil
	}
	mac := fields[0]
	if !macRe.MatchString(mac) {
		return nil
	}
	if d.seenStations[mac] {
		return nil
	}
	d.seenStations[mac] = true

	power, _ := strconv.Atoi(fields[3])
	packets, _ := strconv.Atoi(fields[4])

	payload := map[string]any{
		"station": mac,
		"power":   power,
		"packets": packets,
	}
	// "(not associated)" means the client has no current AP.
	if bssid := fields[5]; macRe.MatchString(bssid) {
		payload["bssid"] = bssid
	}
	if len(fields) >= 7 && fields[6] != "" {
		payload["probed"] = fields[6]
	}
	return []capture.Event{capture.NewEvent(capture.DeviceFound, payload)}
}

func splitCSV(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func firstField(fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
