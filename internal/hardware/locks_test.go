package hardware

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/intercept/backend/internal/capture"
)

func TestAcquireExclusive(t *testing.T) {
	m := NewLockManager()

	if !m.Acquire(capture.SDR, "s1") {
		t.Fatal("first acquire failed")
	}
	if m.Acquire(capture.SDR, "s2") {
		t.Fatal("second acquire succeeded on a held resource")
	}

	// Independent resources don't contend.
	if !m.Acquire(capture.WifiAdapter, "s3") {
		t.Error("acquire on a different resource failed")
	}

	holder, held := m.Holder(capture.SDR)
	if !held || holder != "s1" {
		t.Errorf("holder = %q (held=%v), want s1", holder, held)
	}
}

func TestConcurrentAcquireExactlyOneWins(t *testing.T) {
	for i := 0; i < 100; i++ {
		m := NewLockManager()
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for _, id := range []string{"a", "b"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				<-start
				if m.Acquire(capture.SDR, id) {
					wins.Add(1)
				}
			}(id)
		}
		close(start)
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("iteration %d: %d winners, want exactly 1", i, wins.Load())
		}
	}
}

func TestReleaseIdempotentAndHolderChecked(t *testing.T) {
	m := NewLockManager()
	m.Acquire(capture.SDR, "s1")

	// Stale release by a non-holder must not free the lock.
	m.Release(capture.SDR, "s2")
	if _, held := m.Holder(capture.SDR); !held {
		t.Fatal("non-holder release freed the lock")
	}

	m.Release(capture.SDR, "s1")
	if _, held := m.Holder(capture.SDR); held {
		t.Fatal("holder release did not free the lock")
	}

	// Double release is a no-op.
	m.Release(capture.SDR, "s1")

	if !m.Acquire(capture.SDR, "s3") {
		t.Error("acquire after release failed")
	}
}

func TestReleaseAll(t *testing.T) {
	m := NewLockManager()
	m.Acquire(capture.SDR, "s1")
	m.Acquire(capture.WifiAdapter, "s1")
	m.Acquire(capture.BtController, "other")

	m.ReleaseAll("s1")

	if m.HeldCount() != 1 {
		t.Errorf("held count = %d, want 1", m.HeldCount())
	}
	if holder, held := m.Holder(capture.BtController); !held || holder != "other" {
		t.Error("unrelated hold did not survive ReleaseAll")
	}
	if !m.Acquire(capture.SDR, "s2") {
		t.Error("SDR not reacquirable after ReleaseAll")
	}
}

func TestStaticListerDevices(t *testing.T) {
	l := NewStaticLister(2, []string{"wlan0mon"}, nil)

	sdr := l.Devices(capture.SDR)
	if len(sdr) != 2 || sdr[0] != "0" || sdr[1] != "1" {
		t.Errorf("sdr devices = %v, want [0 1]", sdr)
	}
	if !Has(l, capture.WifiAdapter, "wlan0mon") {
		t.Error("wlan0mon missing from wifi adapters")
	}
	if !Has(l, capture.BtController, "hci0") {
		t.Error("default bt controller hci0 missing")
	}
	if Has(l, capture.SDR, "5") {
		t.Error("device index 5 should not exist with 2 dongles")
	}
}
