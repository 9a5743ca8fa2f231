package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire tags of the persisted format.
const (
	tagNext      = "next"
	tagTimeAfter = "timeAfter"
	tagSpecific  = "specific"
	tagApp       = "app"
	tagNone      = "none"
	tagKeycode   = "keycode"
)

type eventJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	When  json.RawMessage `json:"when"`
	Which json.RawMessage `json:"which"`
	What  whatJSON        `json:"what"`
}

type whatJSON struct {
	Actions []json.RawMessage `json:"actions"`
}

type whenJSON struct {
	Type   string     `json:"type"`
	Hour   int        `json:"hour,omitempty"`
	Minute int        `json:"minute,omitempty"`
	Second int        `json:"second,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
}

type whichJSON struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

type keycodeJSON struct {
	Type     string       `json:"type"`
	Keycodes []int        `json:"keycodes"`
	Modifier modifierJSON `json:"modifier"`
}

type modifierJSON struct {
	Command bool `json:"command"`
	Option  bool `json:"option"`
	Shift   bool `json:"shift"`
	Control bool `json:"control"`
}

// EncodeEvents serializes the ordered collection in the persisted format.
func EncodeEvents(events []Event) ([]byte, error) {
	if events == nil {
		events = []Event{}
	}
	return json.Marshal(events)
}

// DecodeEvents parses data produced by EncodeEvents.
func DecodeEvents(data []byte) ([]Event, error) {
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	when, err := marshalWhen(e.When)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	which, err := marshalWhich(e.Which)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	actions := make([]json.RawMessage, 0, len(e.What.Actions))
	for i, a := range e.What.Actions {
		raw, err := marshalAction(a)
		if err != nil {
			return nil, fmt.Errorf("event %s action %d: %w", e.ID, i, err)
		}
		actions = append(actions, raw)
	}
	return json.Marshal(eventJSON{
		ID:    e.ID,
		Name:  e.Name,
		When:  when,
		Which: which,
		What:  whatJSON{Actions: actions},
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	when, err := unmarshalWhen(raw.When)
	if err != nil {
		return fmt.Errorf("event %s: when: %w", raw.ID, err)
	}
	which, err := unmarshalWhich(raw.Which)
	if err != nil {
		return fmt.Errorf("event %s: which: %w", raw.ID, err)
	}
	actions := make([]Action, 0, len(raw.What.Actions))
	for i, ra := range raw.What.Actions {
		a, err := unmarshalAction(ra)
		if err != nil {
			return fmt.Errorf("event %s: action %d: %w", raw.ID, i, err)
		}
		actions = append(actions, a)
	}
	*e = Event{
		ID:    raw.ID,
		Name:  raw.Name,
		When:  when,
		Which: which,
		What:  What{Actions: actions},
	}
	return nil
}

func marshalWhen(spec TimeSpec) (json.RawMessage, error) {
	var w whenJSON
	switch s := spec.(type) {
	case NextTime:
		w = whenJSON{Type: tagNext, Hour: s.Hour, Minute: s.Minute, Second: s.Second}
	case TimeAfter:
		w = whenJSON{Type: tagTimeAfter, Hour: s.Hour, Minute: s.Minute, Second: s.Second}
	case Specific:
		d := s.Date
		w = whenJSON{Type: tagSpecific, Date: &d}
	default:
		return nil, fmt.Errorf("time spec %T: %w", spec, ErrUnknownVariant)
	}
	return json.Marshal(w)
}

func unmarshalWhen(data json.RawMessage) (TimeSpec, error) {
	var w whenJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case tagNext:
		return NextTime{Hour: w.Hour, Minute: w.Minute, Second: w.Second}, nil
	case tagTimeAfter:
		return TimeAfter{Hour: w.Hour, Minute: w.Minute, Second: w.Second}, nil
	case tagSpecific:
		if w.Date == nil {
			return nil, fmt.Errorf("specific time without date")
		}
		return Specific{Date: *w.Date}, nil
	default:
		return nil, fmt.Errorf("time spec tag %q: %w", w.Type, ErrUnknownVariant)
	}
}

func marshalWhich(target Target) (json.RawMessage, error) {
	switch t := target.(type) {
	case App:
		return json.Marshal(whichJSON{Type: tagApp, Name: t.Name, ID: t.BundleID})
	case NoTarget:
		return json.Marshal(whichJSON{Type: tagNone})
	default:
		return nil, fmt.Errorf("target %T: %w", target, ErrUnknownVariant)
	}
}

func unmarshalWhich(data json.RawMessage) (Target, error) {
	var w whichJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case tagApp:
		return App{Name: w.Name, BundleID: w.ID}, nil
	case tagNone:
		return NoTarget{}, nil
	default:
		return nil, fmt.Errorf("target tag %q: %w", w.Type, ErrUnknownVariant)
	}
}

func marshalAction(a Action) (json.RawMessage, error) {
	switch act := a.(type) {
	case Keycode:
		codes := act.Codes
		if codes == nil {
			codes = []int{}
		}
		return json.Marshal(keycodeJSON{
			Type:     tagKeycode,
			Keycodes: codes,
			Modifier: modifierJSON(act.Modifiers),
		})
	default:
		return nil, fmt.Errorf("action %T: %w", a, ErrUnknownVariant)
	}
}

func unmarshalAction(data json.RawMessage) (Action, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case tagKeycode:
		var k keycodeJSON
		if err := json.Unmarshal(data, &k); err != nil {
			return nil, err
		}
		codes := k.Keycodes
		if codes == nil {
			codes = []int{}
		}
		return Keycode{Codes: codes, Modifiers: Modifiers(k.Modifier)}, nil
	default:
		return nil, fmt.Errorf("action tag %q: %w", head.Type, ErrUnknownVariant)
	}
}
