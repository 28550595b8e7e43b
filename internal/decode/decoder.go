// Package decode turns raw tool output lines into structured capture
// events. Each capability has its own decoder; decoders are stateful
// across lines within one session but do no I/O and never block.
package decode

import "github.com/intercept/backend/internal/capture"

// Decoder maps one raw output line to zero or more events. A decoder
// instance belongs to a single session and is only called from that
// session's reader goroutine, so implementations need no locking.
type Decoder interface {
	Decode(line string) []capture.Event
}

// ForCapability returns a fresh decoder for the given capability.
func ForCapability(c capture.Capability) Decoder {
	switch c {
	case capture.Pager:
		return NewPagerDecoder()
	case capture.Sensor:
		return NewSensorDecoder()
	case capture.Wifi:
		return NewWifiDecoder()
	case capture.Bluetooth:
		return NewBluetoothDecoder()
	default:
		return nopDecoder{}
	}
}

type nopDecoder struct{}

func (nopDecoder) Decode(string) []capture.Event { return nil }
