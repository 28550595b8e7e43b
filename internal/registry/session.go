package registry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/intercept/backend/internal/capture"
	"github.com/intercept/backend/internal/decode"
	"github.com/intercept/backend/internal/proc"
)

// Session binds one active capability to its subprocess(es), decoder,
// and event bus. At most one exists per capability; the registry owns
// creation and teardown.
type Session struct {
	id         string
	capability capture.Capability
	params     Params
	command    string
	procs      []proc.Process
	bus        *capture.Bus
	decoder    decode.Decoder
	createdAt  time.Time

	// stopping marks a requested teardown so the death watcher can
	// tell an expected exit from a crash.
	stopping atomic.Bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) Bus() *capture.Bus { return s.bus }

var sessionSeq atomic.Uint64

func newSessionID(cap capture.Capability) string {
	return fmt.Sprintf("%s-%d-%x", cap, sessionSeq.Add(1), time.Now().Unix())
}

// Spawner abstracts process creation so the registry can run against
// real tools or mock mode's synthetic processes.
type Spawner interface {
	Spawn(spec proc.Spec) (proc.Process, error)
	// SpawnPipeline starts two commands with the first's stdout piped
	// into the second's stdin.
	SpawnPipeline(first, second proc.Spec) ([]proc.Process, error)
}

// ExecSpawner is the real thing: fork/exec via the proc package.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(spec proc.Spec) (proc.Process, error) {
	h, err := proc.Spawn(spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (ExecSpawner) SpawnPipeline(first, second proc.Spec) ([]proc.Process, error) {
	handles, err := proc.SpawnPipeline(first, second)
	if err != nil {
		return nil, err
	}
	procs := make([]proc.Process, len(handles))
	for i, h := range handles {
		procs[i] = h
	}
	return procs, nil
}
