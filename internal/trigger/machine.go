package trigger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event describes one trigger.
type Event struct {
	ID          string    `json:"id"`
	ClassName   string    `json:"className"`
	Probability float64   `json:"probability"`
	Epoch       uint64    `json:"epoch"`
	At          time.Time `json:"at"`
}

// Result reports what a single observation did.
type Result struct {
	ClassName string
	Average   float64
	Holding   bool
	Triggered bool
	Event     *Event
}

// ClassState is a read-only snapshot of one class's detection state.
type ClassState struct {
	ClassName  string
	Samples    []float64
	Average    float64
	HoldStart  *time.Time
	LastPlayed *time.Time
}

// classState is the mutable per-class record owned by a Machine.
type classState struct {
	buffer     *Buffer
	holdStart  *time.Time
	lastPlayed *time.Time
}

// Machine is the detection state machine. It is not safe for concurrent use:
// Observe and Advance must be called from the same goroutine.
type Machine struct {
	config    Config
	sink      Sink
	classes   map[string]*classState
	current   string
	epoch     uint64
	schedule  schedule
	onTrigger func(Event)
}

// NewMachine creates a Machine that reports side effects to sink.
// A nil sink discards them.
func NewMachine(config Config, sink Sink) *Machine {
	if sink == nil {
		sink = nopSink{}
	}
	if config.BufferSize < 1 {
		config.BufferSize = DefaultBufferSize
	}
	return &Machine{
		config:  config,
		sink:    sink,
		classes: make(map[string]*classState),
	}
}

// OnTrigger registers fn to be called after every trigger.
func (m *Machine) OnTrigger(fn func(Event)) {
	m.onTrigger = fn
}

// Config returns the machine's detection parameters.
func (m *Machine) Config() Config {
	return m.config
}

// Observe feeds one frame's predictions into the machine at time now.
// Deferred display updates due at or before now run first.
func (m *Machine) Observe(now time.Time, predictions []Prediction) Result {
	m.Advance(now)

	best, ok := Highest(predictions)
	if !ok {
		m.ClearHolds()
		m.sink.SetStatus(StatusNoPredictions)
		return Result{}
	}

	className := strings.TrimSpace(best.ClassName)
	st := m.state(className)
	st.buffer.Push(best.Probability)
	avg := st.buffer.Average()

	// Only the top class can be holding; any other hold was interrupted.
	for name, other := range m.classes {
		if name != className {
			other.holdStart = nil
		}
	}

	res := Result{ClassName: className, Average: avg}

	if avg >= m.config.Threshold {
		if st.holdStart == nil {
			start := now
			st.holdStart = &start
		}
		res.Holding = true

		if now.Sub(*st.holdStart) >= m.config.HoldTime {
			if st.lastPlayed == nil || now.Sub(*st.lastPlayed) > m.config.Cooldown {
				ev := m.fire(now, className, avg, st)
				res.Triggered = true
				res.Event = &ev
			}
			st.holdStart = nil
			res.Holding = false
		}
	} else {
		st.holdStart = nil
		if m.current == "" {
			m.sink.ShowImage(ImageNeutral)
		}
	}

	if avg >= m.config.Threshold {
		m.sink.SetStatus(DetectedStatus(className, avg))
	} else {
		m.sink.SetStatus(StatusNoDetection)
	}

	return res
}

// fire performs a trigger for className and opens a new display epoch.
func (m *Machine) fire(now time.Time, className string, avg float64, st *classState) Event {
	played := now
	st.lastPlayed = &played

	m.epoch++
	epoch := m.epoch
	m.schedule.cancelBefore(epoch)

	m.sink.PlaySound(className)
	m.sink.ShowImage(className)
	m.current = className

	m.schedule.add(now.Add(m.config.CompletedDelay), epoch, ImageCompleted, func() {
		m.sink.ShowImage(ImageCompleted)
	})
	m.schedule.add(now.Add(m.config.DisplayHold), epoch, ImageNeutral, func() {
		m.sink.ShowImage(ImageNeutral)
		m.current = ""
	})

	ev := Event{
		ID:          uuid.NewString(),
		ClassName:   className,
		Probability: avg,
		Epoch:       epoch,
		At:          now,
	}
	if m.onTrigger != nil {
		m.onTrigger(ev)
	}
	return ev
}

// Advance runs every deferred task due at or before now.
// It returns the number of tasks run.
func (m *Machine) Advance(now time.Time) int {
	due := m.schedule.popDue(now)
	for _, t := range due {
		if t.epoch != m.epoch {
			continue
		}
		t.fn()
	}
	return len(due)
}

// Pending returns the number of pending display updates.
func (m *Machine) Pending() int {
	return m.schedule.len()
}

// Current returns the class occupying the display, if any.
func (m *Machine) Current() (string, bool) {
	return m.current, m.current != ""
}

// Epoch returns the number of display epochs opened so far.
func (m *Machine) Epoch() uint64 {
	return m.epoch
}

// State returns a snapshot of the named class.
func (m *Machine) State(className string) (ClassState, bool) {
	st, ok := m.classes[className]
	if !ok {
		return ClassState{}, false
	}
	return ClassState{
		ClassName:  className,
		Samples:    st.buffer.Values(),
		Average:    st.buffer.Average(),
		HoldStart:  copyTime(st.holdStart),
		LastPlayed: copyTime(st.lastPlayed),
	}, true
}

// ClearHolds interrupts every hold and empties the sample windows, for frames
// that could not be observed. Cooldowns, the displayed class and pending
// display updates are kept.
func (m *Machine) ClearHolds() {
	for _, st := range m.classes {
		st.holdStart = nil
		st.buffer.Clear()
	}
}

func (m *Machine) state(className string) *classState {
	st, ok := m.classes[className]
	if !ok {
		st = &classState{buffer: NewBuffer(m.config.BufferSize)}
		m.classes[className] = st
	}
	return st
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
