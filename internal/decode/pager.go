package decode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/intercept/backend/internal/capture"
)

// multimon-ng POCSAG output:
//
//	POCSAG1200: Address: 1234567  Function: 0  Alpha:   CALL DISPATCH 42
//	POCSAG512: Address: 196613  Function: 2  Numeric: 555-0100
//	POCSAG2400: Address: 88  Function: 3
var pocsagRe = regexp.MustCompile(`^POCSAG(\d+): Address:\s*(\d+)\s+Function:\s*(\d)(?:\s+(Alpha|Numeric):\s*(.*))?$`)

// multimon-ng FLEX output (pipe-delimited):
//
//	FLEX|2024-03-01 12:30:45|1600/2/C/A|11.103|001122334|ALN|Water leak on level 3
var flexRe = regexp.MustCompile(`^FLEX[|:]\s*(.*)$`)

// PagerDecoder parses POCSAG and FLEX lines from multimon-ng into
// Message events, keeping per-address counters across the session.
type PagerDecoder struct {
	decoded    int
	perAddress map[string]int
}

func NewPagerDecoder() *PagerDecoder {
	return &PagerDecoder{perAddress: make(map[string]int)}
}

func (d *PagerDecoder) Decode(line string) []capture.Event {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}

	if m := pocsagRe.FindStringSubmatch(line); m != nil {
		return []capture.Event{d.pocsagEvent(m)}
	}
	if m := flexRe.FindStringSubmatch(line); m != nil {
		if ev, ok := d.flexEvent(m[1]); ok {
			return []capture.Event{ev}
		}
		return []capture.Event{capture.NewEvent(capture.Error, map[string]any{
			"text": "unparseable FLEX line",
			"line": line,
		})}
	}

	// multimon-ng banners and demodulator chatter are informational.
	return nil
}

func (d *PagerDecoder) pocsagEvent(m []string) capture.Event {
	baud, _ := strconv.Atoi(m[1])
	address := m[2]
	function, _ := strconv.Atoi(m[3])

	d.decoded++
	d.perAddress[address]++

	payload := map[string]any{
		"protocol": "POCSAG" + m[1],
		"baud":     baud,
		"address":  address,
		"function": function,
		"count":    d.perAddress[address],
	}
	switch m[4] {
	case "Alpha":
		payload["messageType"] = "alpha"
		payload["message"] = strings.TrimSpace(m[5])
	case "Numeric":
		payload["messageType"] = "numeric"
		payload["message"] = strings.TrimSpace(m[5])
	default:
		payload["messageType"] = "tone"
	}
	return capture.NewEvent(capture.Message, payload)
}

// flexEvent parses the pipe-delimited FLEX body:
// timestamp|mode|frame|capcode|type|message (message optional).
func (d *PagerDecoder) flexEvent(body string) (capture.Event, bool) {
	parts := strings.Split(body, "|")
	if len(parts) < 4 {
		return capture.Event{}, false
	}

	capcode := strings.TrimSpace(parts[3])
	d.decoded++
	d.perAddress[capcode]++

	payload := map[string]any{
		"protocol": "FLEX",
		"time":     strings.TrimSpace(parts[0]),
		"mode":     strings.TrimSpace(parts[1]),
		"frame":    strings.TrimSpace(parts[2]),
		"address":  capcode,
		"count":    d.perAddress[capcode],
	}
	if len(parts) >= 5 {
		payload["messageType"] = strings.ToLower(strings.TrimSpace(parts[4]))
	}
	if len(parts) >= 6 {
		payload["message"] = strings.TrimSpace(strings.Join(parts[5:], "|"))
	}
	return capture.NewEvent(capture.Message, payload), true
}

// Decoded reports how many pager messages this session has parsed.
func (d *PagerDecoder) Decoded() int { return d.decoded }
