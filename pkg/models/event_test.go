package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeycodes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{name: "Single code", input: "36", want: []int{36}},
		{name: "Comma separated", input: "36,1,2", want: []int{36, 1, 2}},
		{name: "Spaces ignored", input: " 36, 1 ,2 ", want: []int{36, 1, 2}},
		{name: "Letters ignored", input: "a3b6,x1", want: []int{36, 1}},
		{name: "Empty pieces dropped", input: ",,36,,", want: []int{36}},
		{name: "Duplicates kept", input: "1,1,1", want: []int{1, 1, 1}},
		{name: "Minus sign dropped", input: "-5", want: []int{5}},
		{name: "Empty input", input: "", want: []int{}},
		{name: "Overflow dropped", input: "99999999999999999999999,4", want: []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKeycodes(tt.input))
		})
	}
}

func TestFormatKeycodes(t *testing.T) {
	assert.Equal(t, "36,1,2", FormatKeycodes([]int{36, 1, 2}))
	assert.Equal(t, "", FormatKeycodes(nil))
	assert.Equal(t, []int{12, 0, 7}, ParseKeycodes(FormatKeycodes([]int{12, 0, 7})))
}

func TestModifiers_Active(t *testing.T) {
	tests := []struct {
		name string
		mods Modifiers
		want []string
	}{
		{name: "None", mods: Modifiers{}, want: nil},
		{name: "Command only", mods: Modifiers{Command: true}, want: []string{"command"}},
		{
			name: "All in canonical order",
			mods: Modifiers{Shift: true, Control: true, Option: true, Command: true},
			want: []string{"command", "option", "control", "shift"},
		},
		{name: "Control before shift", mods: Modifiers{Shift: true, Control: true}, want: []string{"control", "shift"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mods.Active())
		})
	}
}

func TestDefaultEvent(t *testing.T) {
	e := DefaultEvent("abc")

	assert.Equal(t, "abc", e.ID)
	assert.Empty(t, e.Name)
	assert.Equal(t, NextTime{Hour: 9, Minute: 41, Second: 0}, e.When)
	assert.Equal(t, NoTarget{}, e.Which)
	require.NotNil(t, e.What.Actions)
	assert.Empty(t, e.What.Actions)
}

func TestEvent_Clone(t *testing.T) {
	orig := Event{
		ID:    "id-1",
		Name:  "Save",
		When:  TimeAfter{Minute: 5},
		Which: App{Name: "Notes", BundleID: "com.apple.Notes"},
		What:  What{Actions: []Action{Keycode{Codes: []int{1, 2}, Modifiers: Modifiers{Command: true}}}},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	kc := clone.What.Actions[0].(Keycode)
	kc.Codes[0] = 99
	clone.What.Actions = append(clone.What.Actions, Keycode{Codes: []int{3}})

	assert.Equal(t, 1, orig.What.Actions[0].(Keycode).Codes[0], "clone must not share code slices")
	assert.Len(t, orig.What.Actions, 1)
}
