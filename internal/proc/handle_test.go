package proc

import (
	"errors"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var lines []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return lines
			}
			lines = append(lines, line)
		case <-timeout:
			t.Fatalf("timed out collecting lines, got %v", lines)
		}
	}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestSpawnCapturesStdout(t *testing.T) {
	h, err := Spawn(Spec{Command: "sh", Args: []string{"-c", "echo one; echo two"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	lines := collect(t, h.Lines())
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("stdout lines = %v, want [one two]", lines)
	}

	waitDone(t, h)
	code, ok := h.ExitCode()
	if !ok || code != 0 {
		t.Errorf("exit code = %d (ok=%v), want 0", code, ok)
	}
	if h.State() != Exited {
		t.Errorf("state = %v, want exited", h.State())
	}
}

func TestSpawnCapturesStderr(t *testing.T) {
	h, err := Spawn(Spec{Command: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	errs := collect(t, h.Stderr())
	if len(errs) != 1 || errs[0] != "oops" {
		t.Errorf("stderr lines = %v, want [oops]", errs)
	}

	waitDone(t, h)
	if code, _ := h.ExitCode(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := Spawn(Spec{Command: "definitely-not-a-real-binary-zzz"})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error type = %T, want *SpawnError", err)
	}
	if spawnErr.Command != "definitely-not-a-real-binary-zzz" {
		t.Errorf("SpawnError.Command = %q", spawnErr.Command)
	}
}

func TestTerminateGraceful(t *testing.T) {
	h, err := Spawn(Spec{Command: "sleep", Args: []string{"60"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	start := time.Now()
	if err := h.Terminate(2 * time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("graceful terminate took %v, SIGTERM apparently ignored", elapsed)
	}
	if h.State() != Exited {
		t.Errorf("state = %v, want exited", h.State())
	}

	if err := h.Terminate(time.Second); !errors.Is(err, ErrAlreadyExited) {
		t.Errorf("second terminate = %v, want ErrAlreadyExited", err)
	}
}

func TestTerminateForceKill(t *testing.T) {
	// The shell ignores SIGTERM and respawns its sleep, so only the
	// SIGKILL escalation can end it.
	h, err := Spawn(Spec{Command: "sh", Args: []string{"-c", `trap "" TERM; while true; do sleep 1; done`}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// Give the shell a moment to install the trap.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := h.Terminate(300 * time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("force kill took %v, escalation is not bounded by the grace period", elapsed)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Terminate returned before the process was reaped")
	}
}

func TestTerminateKillsForkedChildren(t *testing.T) {
	// The forked sleep inherits the stdout/stderr write ends; if it
	// survived the shell, the line scanners would never reach EOF and
	// Terminate could not return.
	h, err := Spawn(Spec{Command: "sh", Args: []string{"-c", "sleep 30 & wait"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// Give the shell a moment to fork.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := h.Terminate(200 * time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("terminate took %v with a forked child holding the pipes", elapsed)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Terminate returned before the process was reaped")
	}
	if h.State() != Exited {
		t.Errorf("state = %v, want exited", h.State())
	}
}

func TestTerminateAfterNaturalExit(t *testing.T) {
	h, err := Spawn(Spec{Command: "true"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitDone(t, h)

	if err := h.Terminate(time.Second); !errors.Is(err, ErrAlreadyExited) {
		t.Errorf("terminate after exit = %v, want ErrAlreadyExited", err)
	}
}

func TestSpawnPipeline(t *testing.T) {
	handles, err := SpawnPipeline(
		Spec{Command: "sh", Args: []string{"-c", "printf 'alpha\\nbeta\\n'"}},
		Spec{Command: "cat"},
	)
	if err != nil {
		t.Fatalf("spawn pipeline: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("got %d handles, want 2", len(handles))
	}

	// Upstream stdout feeds the downstream; its own Lines stream is
	// closed immediately.
	if lines := collect(t, handles[0].Lines()); len(lines) != 0 {
		t.Errorf("upstream lines = %v, want none", lines)
	}

	lines := collect(t, handles[1].Lines())
	if len(lines) != 2 || lines[0] != "alpha" || lines[1] != "beta" {
		t.Errorf("downstream lines = %v, want [alpha beta]", lines)
	}

	waitDone(t, handles[0])
	waitDone(t, handles[1])
}

func TestSpawnPipelineDownstreamMissing(t *testing.T) {
	_, err := SpawnPipeline(
		Spec{Command: "sleep", Args: []string{"60"}},
		Spec{Command: "definitely-not-a-real-binary-zzz"},
	)
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want *SpawnError for downstream", err)
	}
}
