// Package mock supplies a synthetic process spawner so the full
// control plane can run, and be demoed, without any radio hardware
// attached.
package mock

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intercept/backend/internal/proc"
)

var sensorScript = []string{
	`{"time":"2024-03-01 12:30:45","model":"Acurite-Tower","id":11627,"channel":"A","temperature_C":21.4,"humidity":38,"rssi":-52.3}`,
	`{"time":"2024-03-01 12:30:52","model":"Nexus-TH","id":7,"temperature_C":18.9,"humidity":55,"rssi":-71.0}`,
	`{"time":"2024-03-01 12:31:03","model":"Dragino-LHT65","id":3,"battery_ok":1,"rssi":-104.5,"protocol":"LoRaWAN"}`,
	`{"time":"2024-03-01 12:31:10","model":"Itron-ERT","id":40112233,"consumption":52214,"rssi":-88.2}`,
}

var pagerScript = []string{
	`POCSAG1200: Address: 1234567  Function: 0  Alpha:   CALL DISPATCH 42 MAIN ST`,
	`POCSAG512: Address: 196613  Function: 2  Numeric: 555-0100`,
	`FLEX|2024-03-01 12:30:45|1600/2/C/A|11.103|001122334|ALN|Water leak on level 3`,
	`POCSAG1200: Address: 88  Function: 3`,
}

var wifiScript = []string{
	`BSSID, First time seen, Last time seen, channel, Speed, Privacy, Cipher, Authentication, Power, # beacons, # IV, LAN IP, ID-length, ESSID, Key`,
	`AA:BB:CC:DD:EE:FF, 2024-03-01 12:30:00, 2024-03-01 12:31:10,  6,  130, WPA2, CCMP, PSK, -48,  120,  0,  0.0.0.0,  8, HomeLab,`,
	`12:34:56:78:9A:BC, 2024-03-01 12:30:02, 2024-03-01 12:31:09, 11,  270, WPA2, CCMP, PSK, -71,   88,  0,  0.0.0.0,  10, CoffeeShop,`,
	`Station MAC, First time seen, Last time seen, Power, # packets, BSSID, Probed ESSIDs`,
	`11:22:33:44:55:66, 2024-03-01 12:30:05, 2024-03-01 12:31:00, -62,  45, AA:BB:CC:DD:EE:FF, HomeLab`,
}

var hcitoolScript = []string{
	`LE Scan ...`,
	`5C:F3:70:6B:57:5A (unknown)`,
	`D0:03:4B:6A:96:10 Tile`,
}

var bluetoothScript = []string{
	`[NEW] Device AA:BB:CC:DD:EE:FF Pixel 8`,
	`[NEW] Device 11:22:33:44:55:66 JBL Flip 6`,
	`[CHG] Device AA:BB:CC:DD:EE:FF RSSI: -67 (0xffffffbd)`,
	`[CHG] Device 11:22:33:44:55:66 RSSI: -54 (0xffffffca)`,
}

// scriptFor picks canned output lines by tool name so the mock stays
// agnostic to how commands were built.
func scriptFor(command string) []string {
	name := filepath.Base(command)
	switch {
	case strings.Contains(name, "rtl_433"):
		return sensorScript
	case strings.Contains(name, "multimon"):
		return pagerScript
	case strings.Contains(name, "airodump"):
		return wifiScript
	case strings.Contains(name, "bluetoothctl"):
		return bluetoothScript
	case strings.Contains(name, "hcitool"):
		return hcitoolScript
	default:
		return nil
	}
}

// Spawner implements the registry's Spawner contract with synthetic
// processes that replay canned tool output on a ticker.
type Spawner struct {
	interval time.Duration

	mu    sync.Mutex
	procs []*Process
}

// NewSpawner emits one scripted line per interval per process.
func NewSpawner(interval time.Duration) *Spawner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Spawner{interval: interval}
}

func (s *Spawner) Spawn(spec proc.Spec) (proc.Process, error) {
	p := newProcess(spec, scriptFor(spec.Command), s.interval)
	s.track(p)
	return p, nil
}

func (s *Spawner) SpawnPipeline(first, second proc.Spec) ([]proc.Process, error) {
	// The upstream half only feeds the downstream; it stays silent.
	up := newProcess(first, nil, s.interval)
	down := newProcess(second, scriptFor(second.Command), s.interval)
	s.track(up)
	s.track(down)
	return []proc.Process{up, down}, nil
}

func (s *Spawner) track(p *Process) {
	s.mu.Lock()
	s.procs = append(s.procs, p)
	s.mu.Unlock()
}

// Processes returns every process spawned so far, in spawn order.
func (s *Spawner) Processes() []*Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Process(nil), s.procs...)
}

var pidSeq atomic.Int64

// Process is a fake proc.Process. It loops its script until terminated
// or forced to exit.
type Process struct {
	spec  proc.Spec
	pid   int
	state atomic.Int32

	lines  chan string
	stderr chan string
	done   chan struct{}
	stop   chan struct{}

	exitCode atomic.Int32
	stopOnce sync.Once
}

func newProcess(spec proc.Spec, script []string, interval time.Duration) *Process {
	p := &Process{
		spec:   spec,
		pid:    int(900000 + pidSeq.Add(1)),
		lines:  make(chan string, 128),
		stderr: make(chan string, 8),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	p.state.Store(int32(proc.Running))
	go p.feed(script, interval)
	return p
}

func (p *Process) feed(script []string, interval time.Duration) {
	defer func() {
		close(p.lines)
		close(p.stderr)
		p.state.Store(int32(proc.Exited))
		close(p.done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if len(script) == 0 {
				continue
			}
			select {
			case p.lines <- script[i%len(script)]:
			default:
				// Consumer gone; keep ticking until stopped.
			}
		}
	}
}

func (p *Process) PID() int        { return p.pid }
func (p *Process) Spec() proc.Spec { return p.spec }

func (p *Process) State() proc.State {
	return proc.State(p.state.Load())
}

func (p *Process) Lines() <-chan string  { return p.lines }
func (p *Process) Stderr() <-chan string { return p.stderr }
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) ExitCode() (int, bool) {
	select {
	case <-p.done:
		return int(p.exitCode.Load()), true
	default:
		return 0, false
	}
}

func (p *Process) Terminate(grace time.Duration) error {
	if p.State() == proc.Exited {
		return proc.ErrAlreadyExited
	}
	p.exit(0)
	<-p.done
	return nil
}

// ForceExit simulates a crash: the process dies with the given code
// without being asked to stop.
func (p *Process) ForceExit(code int) {
	p.exit(code)
	<-p.done
}

func (p *Process) exit(code int) {
	p.stopOnce.Do(func() {
		p.exitCode.Store(int32(code))
		p.state.Store(int32(proc.Stopping))
		close(p.stop)
	})
}
