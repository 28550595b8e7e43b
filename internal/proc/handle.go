// Package proc wraps the external capture tools as supervised
// subprocesses with line-stream output and bounded-grace termination.
package proc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State tracks a handle through its lifecycle.
type State int32

const (
	Starting State = iota
	Running
	Stopping
	Exited
)

var stateNames = map[State]string{
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Exited:   "exited",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Spec names one external command to run.
type Spec struct {
	Command string
	Args    []string
}

// CommandLine renders the spec for logging and status responses.
func (s Spec) CommandLine() string {
	line := s.Command
	for _, a := range s.Args {
		line += " " + a
	}
	return line
}

// SpawnError reports a command that could not be started (binary
// missing, permission denied). The session is never created when a
// spawn fails.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawning %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ErrAlreadyExited is returned by Terminate when the process is
// already gone.
var ErrAlreadyExited = errors.New("process already exited")

// Process is the supervision contract the registry works against. The
// real implementation is *Handle; mock mode supplies a synthetic one.
type Process interface {
	PID() int
	Spec() Spec
	State() State
	// Lines streams stdout line by line; closed at EOF. For the
	// upstream half of a pipeline the channel is closed immediately
	// because its stdout feeds the downstream process instead.
	Lines() <-chan string
	// Stderr streams stderr line by line; closed at EOF.
	Stderr() <-chan string
	// Done is closed once the process has been reaped.
	Done() <-chan struct{}
	// ExitCode reports the exit status; ok is false until Done.
	ExitCode() (code int, ok bool)
	// Terminate sends SIGTERM, waits up to grace, then SIGKILLs.
	// Returns ErrAlreadyExited if the process is already gone.
	Terminate(grace time.Duration) error
}

// Handle owns one running external process and its output pipes.
type Handle struct {
	spec  Spec
	cmd   *exec.Cmd
	state atomic.Int32

	lines  chan string
	stderr chan string
	done   chan struct{}

	exitCode atomic.Int32
}

// Spawn starts the command with both stdout and stderr exposed as line
// streams. The returned handle is already Running; a reaper goroutine
// collects the exit status so no zombie is left on any exit path.
func Spawn(spec Spec) (*Handle, error) {
	return spawn(spec, nil, true)
}

// SpawnPipeline starts two commands with the first's stdout piped into
// the second's stdin (rtl_fm | multimon-ng). If the second fails to
// start, the first is killed before returning. Decoded output comes
// from the second handle's Lines stream; both handles surface stderr.
func SpawnPipeline(first, second Spec) ([]*Handle, error) {
	upstream := exec.Command(first.Command, first.Args...)
	pipe, err := upstream.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: first.Command, Err: err}
	}

	h1, err := start(first, upstream, nil)
	if err != nil {
		return nil, err
	}

	h2, err := spawn(second, pipe, true)
	if err != nil {
		h1.Terminate(0)
		return nil, err
	}
	return []*Handle{h1, h2}, nil
}

func spawn(spec Spec, stdin io.Reader, wantStdout bool) (*Handle, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var stdout io.ReadCloser
	if wantStdout {
		var err error
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return nil, &SpawnError{Command: spec.Command, Err: err}
		}
	}
	return start(spec, cmd, stdout)
}

// start wires pipes, launches cmd, and kicks off the scanner and
// reaper goroutines. stdout may be nil when the command's stdout is
// piped elsewhere (pipeline upstream).
func start(spec Spec, cmd *exec.Cmd, stdout io.ReadCloser) (*Handle, error) {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}

	// Own process group, so Terminate can signal the tool and anything
	// it forked. A forked child inherits the pipe write ends; if it
	// outlived the tool the scanners would never see EOF and the reaper
	// would never finish.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	h := &Handle{
		spec:   spec,
		cmd:    cmd,
		lines:  make(chan string, 128),
		stderr: make(chan string, 128),
		done:   make(chan struct{}),
	}
	h.state.Store(int32(Starting))
	h.exitCode.Store(-1)

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}
	h.state.Store(int32(Running))

	var readers sync.WaitGroup
	if stdout != nil {
		readers.Add(1)
		go func() {
			defer readers.Done()
			scanLines(stdout, h.lines)
		}()
	} else {
		close(h.lines)
	}
	readers.Add(1)
	go func() {
		defer readers.Done()
		scanLines(stderr, h.stderr)
	}()

	// Reaper: single convergence point for natural exit and teardown.
	// Wait must not run until the pipe readers have drained.
	go func() {
		readers.Wait()
		err := cmd.Wait()
		code := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else if err != nil {
			code = -1
		}
		h.exitCode.Store(int32(code))
		h.state.Store(int32(Exited))
		close(h.done)
	}()

	return h, nil
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

func (h *Handle) Spec() Spec { return h.spec }

func (h *Handle) State() State {
	return State(h.state.Load())
}

func (h *Handle) Lines() <-chan string { return h.lines }

func (h *Handle) Stderr() <-chan string { return h.stderr }

func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) ExitCode() (int, bool) {
	select {
	case <-h.done:
		return int(h.exitCode.Load()), true
	default:
		return 0, false
	}
}

// Terminate asks the process to stop and waits for the reaper. SIGTERM
// first; if the process is still alive after grace it gets SIGKILL and
// we wait for the reaper unconditionally, so callers never return with
// the process half-dead.
func (h *Handle) Terminate(grace time.Duration) error {
	if h.State() == Exited {
		return ErrAlreadyExited
	}
	h.state.CompareAndSwap(int32(Running), int32(Stopping))

	// Signal can race a natural exit; a kill error just means the
	// reaper already won.
	if err := h.signalGroup(syscall.SIGTERM); err != nil {
		<-h.done
		return nil
	}

	if grace > 0 {
		select {
		case <-h.done:
			return nil
		case <-time.After(grace):
		}
	}

	h.signalGroup(syscall.SIGKILL)
	<-h.done
	return nil
}

// signalGroup delivers sig to the whole process group. Forked children
// die with the tool, which also closes their copies of the pipe write
// ends so the scanners reach EOF.
func (h *Handle) signalGroup(sig syscall.Signal) error {
	return syscall.Kill(-h.cmd.Process.Pid, sig)
}
