// Package script renders an event's target and actions as AppleScript source.
package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

const (
	indent = "    "
	// Pause between two consecutive instructions, in seconds.
	stepDelay = "delay 0.1"
)

// Generate builds the script that activates which and then performs the
// actions of what in order. It is pure: the same input always produces the
// same text.
func Generate(which models.Target, what models.What) (string, error) {
	activate, err := activateLine(which)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, 1+len(what.Actions))
	lines = append(lines, activate)
	for i, a := range what.Actions {
		line, err := actionLine(a)
		if err != nil {
			return "", fmt.Errorf("action %d: %w", i, err)
		}
		lines = append(lines, line)
	}

	var b strings.Builder
	b.WriteString(`tell application "System Events"`)
	b.WriteByte('\n')
	for i, line := range lines {
		if i > 0 {
			b.WriteString(indent + stepDelay + "\n")
		}
		b.WriteString(indent + line + "\n")
	}
	b.WriteString("end tell")
	return b.String(), nil
}

func activateLine(which models.Target) (string, error) {
	switch t := which.(type) {
	case models.App:
		if t.BundleID == "" {
			return "", models.ErrInvalidApp
		}
		return fmt.Sprintf("tell application id %s to activate", Quote(t.BundleID)), nil
	case models.NoTarget:
		return "", models.ErrInvalidApp
	default:
		return "", fmt.Errorf("target %T: %w", which, models.ErrUnknownVariant)
	}
}

func actionLine(a models.Action) (string, error) {
	switch act := a.(type) {
	case models.Keycode:
		return keycodeLine(act)
	default:
		return "", fmt.Errorf("action %T: %w", a, models.ErrUnknownVariant)
	}
}

func keycodeLine(k models.Keycode) (string, error) {
	if len(k.Codes) == 0 {
		return "", fmt.Errorf("no key codes: %w", models.ErrInvalidAction)
	}
	codes := make([]string, len(k.Codes))
	for i, c := range k.Codes {
		if c < 0 {
			return "", fmt.Errorf("key code %d: %w", c, models.ErrInvalidAction)
		}
		codes[i] = strconv.Itoa(c)
	}

	line := "key code {" + strings.Join(codes, ", ") + "}"
	if mods := k.Modifiers.Active(); len(mods) > 0 {
		downs := make([]string, len(mods))
		for i, m := range mods {
			downs[i] = m + " down"
		}
		line += " using {" + strings.Join(downs, ", ") + "}"
	}
	return line, nil
}

// Quote returns s as an AppleScript string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
