package capture

import (
	"encoding/json"
	"testing"
)

func TestParseCapability(t *testing.T) {
	tests := []struct {
		name string
		want Capability
		ok   bool
	}{
		{"pager", Pager, true},
		{"sensor", Sensor, true},
		{"wifi", Wifi, true},
		{"bluetooth", Bluetooth, true},
		{"zigbee", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseCapability(tt.name)
		if ok != tt.ok {
			t.Errorf("ParseCapability(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseCapability(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCapabilityResource(t *testing.T) {
	// Pager and sensor both tune the single SDR dongle and therefore
	// contend for the same lock.
	if Pager.Resource() != SDR || Sensor.Resource() != SDR {
		t.Error("pager and sensor must both map to the SDR resource")
	}
	if Wifi.Resource() != WifiAdapter {
		t.Errorf("wifi resource = %v, want %v", Wifi.Resource(), WifiAdapter)
	}
	if Bluetooth.Resource() != BtController {
		t.Errorf("bluetooth resource = %v, want %v", Bluetooth.Resource(), BtController)
	}
}

func TestKindJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(DeviceFound)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"device_found"` {
		t.Errorf("marshal = %s, want %q", data, "device_found")
	}

	var k Kind
	if err := json.Unmarshal([]byte(`"network_found"`), &k); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if k != NetworkFound {
		t.Errorf("unmarshal = %v, want %v", k, NetworkFound)
	}
}
