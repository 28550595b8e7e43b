package mock

import (
	"testing"
	"time"

	"github.com/intercept/backend/internal/proc"
)

func TestSpawnerReplaysScript(t *testing.T) {
	s := NewSpawner(5 * time.Millisecond)
	p, err := s.Spawn(proc.Spec{Command: "rtl_433", Args: []string{"-F", "json"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	select {
	case line := <-p.Lines():
		if line == "" {
			t.Error("empty scripted line")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no scripted output")
	}

	if err := p.Terminate(time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if code, ok := p.ExitCode(); !ok || code != 0 {
		t.Errorf("exit code = %d (ok=%v), want 0", code, ok)
	}
}

func TestSpawnerPipelineUpstreamSilent(t *testing.T) {
	s := NewSpawner(5 * time.Millisecond)
	procs, err := s.SpawnPipeline(
		proc.Spec{Command: "rtl_fm"},
		proc.Spec{Command: "multimon-ng"},
	)
	if err != nil {
		t.Fatalf("spawn pipeline: %v", err)
	}

	select {
	case line, ok := <-procs[0].Lines():
		if ok {
			t.Errorf("upstream produced line %q", line)
		}
	case <-time.After(100 * time.Millisecond):
		// Upstream keeps its channel open but never sends; both
		// behaviors are acceptable as long as nothing arrives.
	}

	select {
	case <-procs[1].Lines():
	case <-time.After(2 * time.Second):
		t.Fatal("downstream produced no output")
	}

	for _, p := range procs {
		p.Terminate(time.Second)
	}
}

func TestForceExit(t *testing.T) {
	s := NewSpawner(5 * time.Millisecond)
	p, _ := s.Spawn(proc.Spec{Command: "bluetoothctl"})

	mp := s.Processes()[0]
	mp.ForceExit(9)

	if code, ok := p.ExitCode(); !ok || code != 9 {
		t.Errorf("exit code = %d (ok=%v), want 9", code, ok)
	}
	if err := p.Terminate(time.Second); err != proc.ErrAlreadyExited {
		t.Errorf("terminate after crash = %v, want ErrAlreadyExited", err)
	}
}
