package decode

import (
	"testing"

	"github.com/intercept/backend/internal/capture"
)

const apHeader = "BSSID, First time seen, Last time seen, channel, Speed, Privacy, Cipher, Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key"
const stationHeader = "Station MAC, First time seen, Last time seen, Power, # packets, BSSID, Probed ESSIDs"

func TestWifiDecodeNetwork(t *testing.T) {
	d := NewWifiDecoder()
	if events := d.Decode(apHeader); len(events) != 0 {
		t.Fatalf("header row produced events: %v", events)
	}

	ev := single(t, d, "AA:BB:CC:DD:EE:FF, 2024-03-01 12:30:00, 2024-03-01 12:31:10,  6,  130, WPA2, CCMP, PSK, -48,  120,  0,  0.0.0.0,  8, HomeLab,")
	if ev.Kind != capture.NetworkFound {
		t.Fatalf("kind = %v, want network_found", ev.Kind)
	}
	want := map[string]any{
		"bssid":   "AA:BB:CC:DD:EE:FF",
		"channel": 6,
		"privacy": "WPA2",
		"power":   -48,
		"essid":   "HomeLab",
	}
	for k, v := range want {
		if ev.Payload[k] != v {
			t.Errorf("payload[%q] = %v, want %v", k, ev.Payload[k], v)
		}
	}
}

func TestWifiDecodeStation(t *testing.T) {
	d := NewWifiDecoder()
	d.Decode(stationHeader)

	ev := single(t, d, "11:22:33:44:55:66, 2024-03-01 12:30:05, 2024-03-01 12:31:00, -62,  45, AA:BB:CC:DD:EE:FF, HomeLab")
	if ev.Kind != capture.DeviceFound {
		t.Fatalf("kind = %v, want device_found", ev.Kind)
	}
	if ev.Payload["station"] != "11:22:33:44:55:66" {
		t.Errorf("station = %v", ev.Payload["station"])
	}
	if ev.Payload["bssid"] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("bssid = %v", ev.Payload["bssid"])
	}
	if ev.Payload["packets"] != 45 {
		t.Errorf("packets = %v, want 45", ev.Payload["packets"])
	}
}

func TestWifiDecodeUnassociatedStation(t *testing.T) {
	d := NewWifiDecoder()
	d.Decode(stationHeader)

	ev := single(t, d, "11:22:33:44:55:66, 2024-03-01 12:30:05, 2024-03-01 12:31:00, -80,  3, (not associated), ")
	if _, ok := ev.Payload["bssid"]; ok {
		t.Error("unassociated station must not carry a bssid")
	}
}

func TestWifiDedupAcrossWriteIntervals(t *testing.T) {
	d := NewWifiDecoder()
	row := "AA:BB:CC:DD:EE:FF, 2024-03-01 12:30:00, 2024-03-01 12:31:10,  6,  130, WPA2, CCMP, PSK, -48,  120,  0,  0.0.0.0,  8, HomeLab,"

	d.Decode(apHeader)
	first := d.Decode(row)
	// airodump rewrites the whole table every interval; headers and
	// rows repeat.
	d.Decode(apHeader)
	second := d.Decode(row)

	if len(first) != 1 || len(second) != 0 {
		t.Errorf("dedup failed: first=%d second=%d events", len(first), len(second))
	}
}

func TestWifiSectionSwitching(t *testing.T) {
	d := NewWifiDecoder()
	d.Decode(apHeader)
	d.Decode(stationHeader)

	// A MAC-led row after the station header is a station, not an AP.
	ev := single(t, d, "11:22:33:44:55:66, 2024-03-01 12:30:05, 2024-03-01 12:31:00, -62,  45, AA:BB:CC:DD:EE:FF, ")
	if ev.Kind != capture.DeviceFound {
		t.Errorf("kind = %v, want device_found", ev.Kind)
	}
}

func TestWifiRowsBeforeAnyHeaderIgnored(t *testing.T) {
	d := NewWifiDecoder()
	if events := d.Decode("AA:BB:CC:DD:EE:FF, x, y, 6"); len(events) != 0 {
		t.Errorf("row before header produced %v", events)
	}
}

func TestWifiTruncatedNetworkRow(t *testing.T) {
	d := NewWifiDecoder()
	d.Decode(apHeader)

	ev := single(t, d, "AA:BB:CC:DD:EE:FF, 2024-03-01 12:30:00, 2024-03-01 12:31:10,  6")
	if ev.Kind != capture.Error {
		t.Errorf("kind = %v, want error for truncated row", ev.Kind)
	}
}
