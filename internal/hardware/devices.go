package hardware

import (
	"strconv"

	"github.com/intercept/backend/internal/capture"
)

// DeviceLister enumerates the device identifiers available for a
// resource: SDR dongle indexes ("0", "1"), wifi interface names
// ("wlan0mon"), bluetooth controllers ("hci0"). The registry consults
// it only to validate a requested device at session start; actually
// probing USB/netlink topology is the collaborator's problem.
type DeviceLister interface {
	Devices(res capture.Resource) []string
}

// StaticLister serves a fixed device inventory from configuration.
type StaticLister struct {
	sdrCount      int
	wifiAdapters  []string
	btControllers []string
}

// NewStaticLister builds a lister for sdrCount dongles plus the named
// wifi and bluetooth devices. Zero/empty values fall back to a single
// default device, matching a typical one-dongle deployment.
func NewStaticLister(sdrCount int, wifiAdapters, btControllers []string) *StaticLister {
	if sdrCount <= 0 {
		sdrCount = 1
	}
	if len(wifiAdapters) == 0 {
		wifiAdapters = []string{"wlan0"}
	}
	if len(btControllers) == 0 {
		btControllers = []string{"hci0"}
	}
	return &StaticLister{
		sdrCount:      sdrCount,
		wifiAdapters:  wifiAdapters,
		btControllers: btControllers,
	}
}

func (l *StaticLister) Devices(res capture.Resource) []string {
	switch res {
	case capture.SDR:
		ids := make([]string, l.sdrCount)
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}
		return ids
	case capture.WifiAdapter:
		return append([]string(nil), l.wifiAdapters...)
	case capture.BtController:
		return append([]string(nil), l.btControllers...)
	default:
		return nil
	}
}

// Has reports whether id is a known device for res.
func Has(l DeviceLister, res capture.Resource, id string) bool {
	for _, d := range l.Devices(res) {
		if d == id {
			return true
		}
	}
	return false
}
