// Package hardware enforces exclusive access to the shared radios and
// answers which device identifiers exist for each of them.
package hardware

import (
	"sync"

	"github.com/intercept/backend/internal/capture"
)

// LockManager hands out exclusive claims on shared hardware. The SDR
// dongle, the wifi adapter, and the bluetooth controller can each serve
// only one capture session at a time; double-use surfaces as cryptic
// tool-level errors, so exclusivity is enforced here instead.
type LockManager struct {
	mu      sync.Mutex
	holders map[capture.Resource]string
}

func NewLockManager() *LockManager {
	return &LockManager{holders: make(map[capture.Resource]string)}
}

// Acquire attempts an atomic test-and-set claim on res for sessionID.
// It never blocks and never queues: a held resource means false.
func (m *LockManager) Acquire(res capture.Resource, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.holders[res]; held {
		return false
	}
	m.holders[res] = sessionID
	return true
}

// Release frees res if sessionID is the current holder. Releasing a
// resource you don't hold is a no-op; this guards against stale
// releases racing a forced teardown that already reassigned the lock.
func (m *LockManager) Release(res capture.Resource, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[res] == sessionID {
		delete(m.holders, res)
	}
}

// Holder reports the session currently holding res, if any.
func (m *LockManager) Holder(res capture.Resource) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, held := m.holders[res]
	return id, held
}

// ReleaseAll frees every resource held by sessionID. Used when a
// session is torn down without knowing which claims survived a partial
// start.
func (m *LockManager) ReleaseAll(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for res, holder := range m.holders {
		if holder == sessionID {
			delete(m.holders, res)
		}
	}
}

// HeldCount reports how many resources are currently claimed.
func (m *LockManager) HeldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holders)
}
