package models

import (
	"strconv"
	"strings"
	"time"
)

// EventsKey is the key-value store key the event collection is persisted under.
const EventsKey = "threeWEvents"

// Event is a user-defined scheduled automation: when to fire, which
// application to activate and what keystrokes to send.
type Event struct {
	ID    string   // Immutable, unique, never reused
	Name  string   // Unique among events (case-sensitive)
	When  TimeSpec // Trigger time
	Which Target   // Application to activate
	What  What     // Keystrokes to send
}

// What is the ordered list of actions of an event.
type What struct {
	Actions []Action
}

// DefaultEvent returns the event a freshly created entry starts with.
func DefaultEvent(id string) Event {
	return Event{
		ID:    id,
		When:  NextTime{Hour: 9, Minute: 41, Second: 0},
		Which: NoTarget{},
		What:  What{Actions: []Action{}},
	}
}

// Clone returns a copy of e that shares no mutable state with it.
func (e Event) Clone() Event {
	out := e
	out.What.Actions = make([]Action, len(e.What.Actions))
	for i, a := range e.What.Actions {
		if kc, ok := a.(Keycode); ok {
			kc.Codes = append([]int(nil), kc.Codes...)
			a = kc
		}
		out.What.Actions[i] = a
	}
	return out
}

// TimeSpec describes when an event fires. Implementations: NextTime, TimeAfter, Specific.
type TimeSpec interface {
	timeSpec()
}

// NextTime fires at the next future occurrence of the wall-clock time.
type NextTime struct {
	Hour, Minute, Second int
}

// TimeAfter fires once the duration has elapsed from the moment of scheduling.
type TimeAfter struct {
	Hour, Minute, Second int
}

// Specific fires at an absolute instant.
type Specific struct {
	Date time.Time
}

func (NextTime) timeSpec()  {}
func (TimeAfter) timeSpec() {}
func (Specific) timeSpec()  {}

// Target selects the application to activate. Implementations: App, NoTarget.
type Target interface {
	target()
}

// App is a concrete application, identified by its bundle id.
type App struct {
	Name     string
	BundleID string
}

// NoTarget means no application was selected yet. Scheduling requires an App.
type NoTarget struct{}

func (App) target()      {}
func (NoTarget) target() {}

// Action is one unit of synthetic input. Implementations: Keycode.
type Action interface {
	action()
}

// Keycode presses the key codes in order, holding the active modifiers.
type Keycode struct {
	Codes     []int
	Modifiers Modifiers
}

func (Keycode) action() {}

// Modifiers are the modifier keys held while a Keycode action is sent.
type Modifiers struct {
	Command bool
	Option  bool
	Shift   bool
	Control bool
}

// Active returns the names of the held modifiers in the canonical order
// command, option, control, shift.
func (m Modifiers) Active() []string {
	var names []string
	if m.Command {
		names = append(names, "command")
	}
	if m.Option {
		names = append(names, "option")
	}
	if m.Control {
		names = append(names, "control")
	}
	if m.Shift {
		names = append(names, "shift")
	}
	return names
}

// One sample of every variant. Tests walk these to make sure each consumer
// handles every case; add new variants here first.
var (
	TimeSpecKinds = []TimeSpec{NextTime{}, TimeAfter{}, Specific{}}
	TargetKinds   = []Target{App{}, NoTarget{}}
	ActionKinds   = []Action{Keycode{}}
)

// ParseKeycodes reads a comma separated list of key codes. Characters other
// than digits and commas are ignored, as are empty pieces.
func ParseKeycodes(text string) []int {
	filtered := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' {
			return r
		}
		return -1
	}, text)

	codes := []int{}
	for _, part := range strings.Split(filtered, ",") {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		codes = append(codes, n)
	}
	return codes
}

// FormatKeycodes is the inverse of ParseKeycodes.
func FormatKeycodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
