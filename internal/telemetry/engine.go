package telemetry

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"diagview/internal/catalog"
	"diagview/internal/events"
	"diagview/internal/faults"
	"diagview/internal/layout"
	"diagview/internal/power"
	"diagview/internal/sink"
)

// Recorder receives device events
type Recorder interface {
	Add(eventType events.EventType, source, attribute, details string) int64
}

// Report summarises one tick
type Report struct {
	Time      time.Time `json:"time"`
	Healthy   bool      `json:"healthy"`
	FaultMask uint32    `json:"faultMask"`
	Written   int       `json:"written"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors,omitempty"`
	// Unknown lists devices whose FAULTS bitmask could not be read this tick.
	// They are left out of FaultMask and Healthy.
	Unknown []string `json:"unknown,omitempty"`
}

// reader produces the sink value for one attribute of one device
type reader func(e *Engine, d Device, kind catalog.AttributeKind) (catalog.Value, error)

var dispatch = map[catalog.AttributeKind]reader{
	catalog.Faults:       readFaults,
	catalog.StickyFaults: readFaults,
	catalog.Temperature:  readNumber,
	catalog.Velocity:     readNumber,
	catalog.Position:     readPosition,
	catalog.Inverted:     readInverted,
}

type maskRead struct {
	mask uint32
	err  error
}

// Engine pushes device readings into a sink registry.
// Tick must be called from a single goroutine; LastReport is safe for concurrent use.
type Engine struct {
	registry *sink.Registry
	flags    []faults.Flag
	logger   *log.Logger
	recorder Recorder

	panel  *power.Panel
	source power.Source

	// per-tick FAULTS readings shared by the health aggregate and the FAULTS cells
	masks map[string]maskRead

	lastText    map[string]string
	lastHealthy *bool

	mu   sync.RWMutex
	last Report
	now  func() time.Time
}

// NewEngine creates an engine writing to reg, decoding faults with SparkMaxFlags
func NewEngine(reg *sink.Registry, logger *log.Logger) *Engine {
	return &Engine{
		registry: reg,
		flags:    faults.SparkMaxFlags,
		logger:   logger,
		masks:    make(map[string]maskRead),
		lastText: make(map[string]string),
		now:      time.Now,
	}
}

// SetFlags replaces the fault enumeration used for decoding
func (e *Engine) SetFlags(flags []faults.Flag) {
	e.flags = flags
}

// SetRecorder sets the event recorder for fault transitions and read errors
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// AttachPower syncs panel from src at the end of every tick
func (e *Engine) AttachPower(panel *power.Panel, src power.Source) {
	e.panel = panel
	e.source = src
}

// LastReport returns the report of the most recent tick
func (e *Engine) LastReport() Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r := e.last
	r.Errors = append([]string(nil), e.last.Errors...)
	r.Unknown = append([]string(nil), e.last.Unknown...)
	return r
}

// Tick reads every (device, attribute) pair and writes it to its sink.
// Failures are isolated per cell and never abort the tick.
func (e *Engine) Tick(devices []Device, attrs []catalog.AttributeKind) Report {
	report := Report{Time: e.now()}
	clear(e.masks)

	// Aggregate health is the OR of every device's FAULTS bitmask. A device
	// whose bitmask cannot be read does not contribute.
	var total uint32
	for _, d := range devices {
		mask, err := d.ReadBitmask(catalog.Faults)
		e.masks[d.Name()] = maskRead{mask: mask, err: err}
		if err != nil {
			e.fail(&report, d.Name(), catalog.Faults, fmt.Errorf("read %s fault bitmask: %w", d.Name(), err))
			report.Unknown = append(report.Unknown, d.Name())
			continue
		}
		total |= mask
	}
	report.FaultMask = total
	report.Healthy = total == 0

	if h := e.registry.Health(); h != nil {
		if err := h.Write(catalog.BoolValue(report.Healthy)); err != nil {
			e.fail(&report, "", catalog.Faults, fmt.Errorf("write health: %w", err))
		} else {
			report.Written++
		}
	}
	e.recordHealth(report.Healthy)

	for _, d := range devices {
		for _, kind := range attrs {
			e.syncCell(&report, d, kind)
		}
	}

	if e.panel != nil && e.source != nil {
		for _, err := range e.panel.Sync(e.source) {
			report.Failed++
			report.Errors = append(report.Errors, err.Error())
			if e.logger != nil {
				e.logger.Printf("[telemetry] Power panel: %v", err)
			}
			if e.recorder != nil {
				typ := events.EventReadError
				if errors.Is(err, power.ErrChannelOutOfRange) {
					typ = events.EventChannelRange
				}
				e.recorder.Add(typ, power.Surface, "", err.Error())
			}
		}
	}

	e.mu.Lock()
	e.last = report
	e.mu.Unlock()

	return report
}

func (e *Engine) syncCell(report *Report, d Device, kind catalog.AttributeKind) {
	h, err := e.registry.Lookup(d.Name(), kind)
	if err != nil {
		report.Skipped++
		return
	}

	read, ok := dispatch[kind]
	if !ok {
		report.Skipped++
		return
	}

	// a failed FAULTS read was already counted by the health aggregate
	if kind == catalog.Faults && e.masks[d.Name()].err != nil {
		return
	}

	v, err := read(e, d, kind)
	if err != nil {
		e.fail(report, d.Name(), kind, fmt.Errorf("read %s/%s: %w", d.Name(), kind, err))
		return
	}
	if err := h.Write(v); err != nil {
		e.fail(report, d.Name(), kind, fmt.Errorf("write %s/%s: %w", d.Name(), kind, err))
		return
	}
	report.Written++

	if kind == catalog.Faults || kind == catalog.StickyFaults {
		e.recordFaults(d.Name(), kind, v.Text)
	}
}

func (e *Engine) fail(report *Report, device string, kind catalog.AttributeKind, err error) {
	report.Failed++
	report.Errors = append(report.Errors, err.Error())
	if e.logger != nil {
		e.logger.Printf("[telemetry] %v", err)
	}
	if e.recorder != nil && device != "" {
		e.recorder.Add(events.EventReadError, device, kind.String(), err.Error())
	}
}

// recordFaults emits an event when the decoded fault text of a device changes
func (e *Engine) recordFaults(device string, kind catalog.AttributeKind, text string) {
	key := device + "/" + kind.String()
	prev, seen := e.lastText[key]
	e.lastText[key] = text
	if !seen {
		prev = faults.NoFault
	}
	if prev == text || e.recorder == nil {
		return
	}

	if kind == catalog.StickyFaults {
		if text != faults.NoFault {
			e.recorder.Add(events.EventStickyFault, device, kind.String(), text)
		}
		return
	}

	switch {
	case text == faults.NoFault:
		e.recorder.Add(events.EventFaultCleared, device, kind.String(), prev)
	default:
		e.recorder.Add(events.EventFaultRaised, device, kind.String(), text)
	}
}

func (e *Engine) recordHealth(healthy bool) {
	changed := e.lastHealthy != nil && *e.lastHealthy != healthy
	e.lastHealthy = &healthy
	if !changed {
		return
	}
	if e.logger != nil {
		e.logger.Printf("[telemetry] Aggregate health changed: healthy=%t", healthy)
	}
	if e.recorder != nil {
		e.recorder.Add(events.EventHealthChanged, layout.SummarySurface, "", strconv.FormatBool(healthy))
	}
}

func readFaults(e *Engine, d Device, kind catalog.AttributeKind) (catalog.Value, error) {
	var mask uint32
	if kind == catalog.Faults {
		mask = e.masks[d.Name()].mask
	} else {
		m, err := d.ReadBitmask(kind)
		if err != nil {
			return catalog.Value{}, err
		}
		mask = m
	}
	return catalog.TextValue(faults.Decode(mask, e.flags)), nil
}

func readNumber(_ *Engine, d Device, kind catalog.AttributeKind) (catalog.Value, error) {
	v, err := d.ReadNumeric(kind)
	if err != nil {
		return catalog.Value{}, err
	}
	return catalog.NumberValue(v), nil
}

// readPosition surfaces the position as text, matching the catalog's text widget
func readPosition(_ *Engine, d Device, kind catalog.AttributeKind) (catalog.Value, error) {
	v, err := d.ReadNumeric(kind)
	if err != nil {
		return catalog.Value{}, err
	}
	return catalog.TextValue(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

func readInverted(_ *Engine, d Device, kind catalog.AttributeKind) (catalog.Value, error) {
	inv, err := d.ReadBool(kind)
	if err != nil {
		return catalog.Value{}, err
	}
	if inv {
		return catalog.TextValue("inverted"), nil
	}
	return catalog.TextValue(""), nil
}
