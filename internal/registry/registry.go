// Package registry owns the capability slots: it starts and stops
// capture sessions, enforces hardware exclusivity, wires process
// output through the decoders onto each session's event bus, and
// recovers from unexpected process death.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/intercept/backend/internal/capture"
	"github.com/intercept/backend/internal/config"
	"github.com/intercept/backend/internal/decode"
	"github.com/intercept/backend/internal/hardware"
	"github.com/intercept/backend/internal/proc"
)

// State is a capability slot's position in its lifecycle.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

var stateNames = map[State]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EventSink receives a copy of every published event. Used to forward
// events to an external log writer; the registry itself never formats
// or persists anything.
type EventSink func(capture.Event)

// slot is the per-capability mutation unit. Its mutex serializes
// start/stop/restart so two concurrent starts can't double-spawn or
// race on the hardware lock; different capabilities proceed in
// parallel.
type slot struct {
	capability capture.Capability
	mu         sync.Mutex

	// state and session are additionally guarded by Registry.stateMu
	// so status reads never wait behind a slow start or stop.
	state   State
	session *Session
}

// StartResult reports what a successful start launched.
type StartResult struct {
	SessionID  string             `json:"sessionId"`
	Capability capture.Capability `json:"capability"`
	Params     Params             `json:"params"`
	Command    string             `json:"command"`
}

// ProcessStatus is one supervised process's slice of a status report.
type ProcessStatus struct {
	PID        int     `json:"pid"`
	Command    string  `json:"command"`
	State      string  `json:"state"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
	MemoryRSS  uint64  `json:"memoryRss,omitempty"`
}

// StatusInfo is the status surface for one capability.
type StatusInfo struct {
	Capability  capture.Capability `json:"capability"`
	State       State              `json:"state"`
	SessionID   string             `json:"sessionId,omitempty"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	Command     string             `json:"command,omitempty"`
	Params      *Params            `json:"params,omitempty"`
	Processes   []ProcessStatus    `json:"processes,omitempty"`
	Subscribers int                `json:"subscribers"`
}

// Registry is the process-wide table of capability slots.
type Registry struct {
	cfg     *config.Config
	locks   *hardware.LockManager
	devices hardware.DeviceLister
	spawner Spawner
	sink    EventSink

	stateMu sync.RWMutex
	slots   map[capture.Capability]*slot
}

func New(cfg *config.Config, locks *hardware.LockManager, devices hardware.DeviceLister, spawner Spawner) *Registry {
	slots := make(map[capture.Capability]*slot)
	for _, c := range capture.Capabilities() {
		slots[c] = &slot{capability: c}
	}
	return &Registry{
		cfg:     cfg,
		locks:   locks,
		devices: devices,
		spawner: spawner,
		slots:   slots,
	}
}

// SetEventSink installs an optional event forwarder. Must be called
// before the first Start.
func (r *Registry) SetEventSink(sink EventSink) {
	r.sink = sink
}

func (r *Registry) setState(sl *slot, state State, sess *Session) {
	r.stateMu.Lock()
	sl.state = state
	sl.session = sess
	r.stateMu.Unlock()
}

func (r *Registry) snapshot(sl *slot) (State, *Session) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return sl.state, sl.session
}

// Start launches a capture session for cap. Fails with
// ErrAlreadyRunning if the slot is busy, ErrResourceBusy if another
// session holds the hardware, a *ValidationError for bad params, or a
// *proc.SpawnError if the tool can't be launched (the session is never
// created in that case).
func (r *Registry) Start(cap capture.Capability, params Params) (StartResult, error) {
	sl := r.slots[cap]
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return r.startLocked(sl, params)
}

func (r *Registry) startLocked(sl *slot, params Params) (StartResult, error) {
	cap := sl.capability
	if state, _ := r.snapshot(sl); state != Idle {
		return StartResult{}, ErrAlreadyRunning
	}

	resolved, err := params.resolve(cap, r.cfg, r.devices)
	if err != nil {
		return StartResult{}, err
	}

	id := newSessionID(cap)
	res := cap.Resource()
	if !r.locks.Acquire(res, id) {
		holder, _ := r.locks.Holder(res)
		log.Printf("[%s] start denied, %s held by %s", cap, res, holder)
		return StartResult{}, ErrResourceBusy
	}
	r.setState(sl, Starting, nil)

	specs := commandsFor(cap, resolved, r.cfg.Tools)
	procs, command, err := r.spawnAll(specs)
	if err != nil {
		r.locks.Release(res, id)
		r.setState(sl, Idle, nil)
		return StartResult{}, err
	}

	sess := &Session{
		id:         id,
		capability: cap,
		params:     resolved,
		command:    command,
		procs:      procs,
		bus:        capture.NewBus(r.cfg.Capture.QueueCapacity),
		decoder:    decode.ForCapability(cap),
		createdAt:  time.Now(),
	}
	r.setState(sl, Running, sess)

	// Decoded output comes from the last process in the pipeline; all
	// processes surface stderr.
	go r.readLines(sess, procs[len(procs)-1])
	for _, p := range procs {
		go r.readStderr(sess, p)
	}
	go r.watch(sl, sess)

	log.Printf("[%s] session %s started: %s", cap, id, command)
	r.publish(sess, capture.StatusEvent("started"))
	if resolved.FrequencyMHz != 0 {
		r.publish(sess, capture.StatusEvent(
			fmt.Sprintf("monitoring %.4g MHz on device %s", resolved.FrequencyMHz, resolved.Device)))
	}

	return StartResult{
		SessionID:  id,
		Capability: cap,
		Params:     resolved,
		Command:    command,
	}, nil
}

func (r *Registry) spawnAll(specs []proc.Spec) ([]proc.Process, string, error) {
	switch len(specs) {
	case 1:
		p, err := r.spawner.Spawn(specs[0])
		if err != nil {
			return nil, "", err
		}
		return []proc.Process{p}, specs[0].CommandLine(), nil
	case 2:
		procs, err := r.spawner.SpawnPipeline(specs[0], specs[1])
		if err != nil {
			return nil, "", err
		}
		return procs, specs[0].CommandLine() + " | " + specs[1].CommandLine(), nil
	default:
		return nil, "", fmt.Errorf("no commands for capability")
	}
}

// Stop tears the capability's session down: terminates the processes,
// closes the bus (ending all subscriber streams), and releases the
// hardware lock.
func (r *Registry) Stop(cap capture.Capability) error {
	sl := r.slots[cap]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	state, sess := r.snapshot(sl)
	if state != Running || sess == nil {
		return ErrNotRunning
	}
	sess.stopping.Store(true)
	r.finalizeLocked(sl, sess)
	return nil
}

// finalizeLocked is the single teardown path; callers hold sl.mu and
// have verified sess is the slot's current session. Terminations run
// in parallel, each with a bounded grace, so teardown can't hang.
func (r *Registry) finalizeLocked(sl *slot, sess *Session) {
	r.setState(sl, Stopping, sess)

	grace := r.cfg.Capture.GracePeriod
	var wg sync.WaitGroup
	for _, p := range sess.procs {
		wg.Add(1)
		go func(p proc.Process) {
			defer wg.Done()
			if err := p.Terminate(grace); err != nil && !errors.Is(err, proc.ErrAlreadyExited) {
				log.Printf("[%s] terminate pid %d: %v", sess.capability, p.PID(), err)
			}
		}(p)
	}
	wg.Wait()

	r.publish(sess, capture.StatusEvent("stopped"))
	sess.bus.Close()
	r.locks.Release(sess.capability.Resource(), sess.id)
	r.setState(sl, Idle, nil)
	log.Printf("[%s] session %s stopped", sess.capability, sess.id)
}

// SetFrequency retunes a running SDR capability. The wrapped tools
// can't retune live, so this is a stop-then-restart with the new
// frequency; the slot lock makes it atomic against concurrent
// start/stop.
func (r *Registry) SetFrequency(cap capture.Capability, frequencyMHz float64) (StartResult, error) {
	if cap != capture.Pager && cap != capture.Sensor {
		return StartResult{}, &ValidationError{Field: "frequency", Reason: "capability is not tunable"}
	}
	if frequencyMHz < minFrequencyMHz || frequencyMHz > maxFrequencyMHz {
		return StartResult{}, &ValidationError{
			Field:  "frequency",
			Reason: fmt.Sprintf("%.4f MHz outside tunable range %.0f-%.0f MHz", frequencyMHz, minFrequencyMHz, maxFrequencyMHz),
		}
	}

	sl := r.slots[cap]
	sl.mu.Lock()
	defer sl.mu.Unlock()

	state, sess := r.snapshot(sl)
	if state != Running || sess == nil {
		return StartResult{}, ErrNotRunning
	}

	params := sess.params
	params.FrequencyMHz = frequencyMHz
	params.Band = ""
	if _, ok := BandByID(sess.params.Band); ok {
		// Keep the band association when the new frequency still fits
		// its range, so hop channels stay meaningful.
		if b, _ := BandByID(sess.params.Band); frequencyMHz >= b.RangeMHz[0] && frequencyMHz <= b.RangeMHz[1] {
			params.Band = sess.params.Band
		}
	}

	sess.stopping.Store(true)
	r.finalizeLocked(sl, sess)
	return r.startLocked(sl, params)
}

// Status reports a capability's current state without blocking behind
// in-flight mutations.
func (r *Registry) Status(cap capture.Capability) StatusInfo {
	sl := r.slots[cap]
	state, sess := r.snapshot(sl)

	info := StatusInfo{Capability: cap, State: state}
	if sess == nil {
		return info
	}

	info.SessionID = sess.id
	started := sess.createdAt
	info.StartedAt = &started
	info.Command = sess.command
	params := sess.params
	info.Params = &params
	info.Subscribers = sess.bus.SubscriberCount()

	for _, p := range sess.procs {
		ps := ProcessStatus{
			PID:     p.PID(),
			Command: p.Spec().Command,
			State:   p.State().String(),
		}
		if gp, err := process.NewProcess(int32(p.PID())); err == nil {
			if cpu, err := gp.CPUPercent(); err == nil {
				ps.CPUPercent = cpu
			}
			if mi, err := gp.MemoryInfo(); err == nil && mi != nil {
				ps.MemoryRSS = mi.RSS
			}
		}
		info.Processes = append(info.Processes, ps)
	}
	return info
}

// Attach subscribes a new observer to the capability's event stream.
func (r *Registry) Attach(cap capture.Capability) (*capture.Subscriber, error) {
	sl := r.slots[cap]
	state, sess := r.snapshot(sl)
	if state != Running || sess == nil {
		return nil, ErrNotRunning
	}
	return sess.bus.Subscribe(), nil
}

// Shutdown sweeps every active session in parallel. Each terminate is
// individually bounded, so the sweep can't hang on one stuck tool.
func (r *Registry) Shutdown() {
	var wg sync.WaitGroup
	for _, cap := range capture.Capabilities() {
		wg.Add(1)
		go func(c capture.Capability) {
			defer wg.Done()
			if err := r.Stop(c); err != nil && !errors.Is(err, ErrNotRunning) {
				log.Printf("[%s] shutdown stop: %v", c, err)
			}
		}(cap)
	}
	wg.Wait()
}

// publish stamps and fans an event out to the session's subscribers
// and the optional sink.
func (r *Registry) publish(sess *Session, ev capture.Event) {
	ev.SessionID = sess.id
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	sess.bus.Publish(ev)
	if r.sink != nil {
		r.sink(ev)
	}
}

// readLines drains the decode path: every stdout line through the
// session's decoder, every resulting event onto the bus. Runs until
// the process closes stdout.
func (r *Registry) readLines(sess *Session, p proc.Process) {
	for line := range p.Lines() {
		for _, ev := range sess.decoder.Decode(line) {
			r.publish(sess, ev)
		}
	}
}

// readStderr surfaces tool diagnostics as Error events rather than
// dropping them.
func (r *Registry) readStderr(sess *Session, p proc.Process) {
	for line := range p.Stderr() {
		if line == "" {
			continue
		}
		r.publish(sess, capture.NewEvent(capture.Error, map[string]any{
			"text":   line,
			"stream": "stderr",
			"tool":   p.Spec().Command,
		}))
	}
}

// watch waits for any of the session's processes to exit. A requested
// stop is the finalizer's business; an unexpected death publishes one
// Error event and then converges on the same teardown path, leaving
// the slot idle and the lock released so a retry can succeed.
func (r *Registry) watch(sl *slot, sess *Session) {
	var dead proc.Process
	if len(sess.procs) == 1 {
		<-sess.procs[0].Done()
		dead = sess.procs[0]
	} else {
		select {
		case <-sess.procs[0].Done():
			dead = sess.procs[0]
		case <-sess.procs[1].Done():
			dead = sess.procs[1]
		}
	}

	if sess.stopping.Load() {
		return
	}

	code, _ := dead.ExitCode()
	log.Printf("[%s] process %s exited unexpectedly (code %d)", sess.capability, dead.Spec().Command, code)
	r.publish(sess, capture.NewEvent(capture.Error, map[string]any{
		"text":     "process exited unexpectedly",
		"tool":     dead.Spec().Command,
		"exitCode": code,
	}))

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if _, current := r.snapshot(sl); current != sess {
		// A concurrent stop already tore this session down.
		return
	}
	sess.stopping.Store(true)
	r.finalizeLocked(sl, sess)
}
