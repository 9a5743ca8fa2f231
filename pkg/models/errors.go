package models

import (
	"errors"
	"fmt"
)

// Input and store errors. All of them are recoverable at the call site.
var (
	ErrInvalidDate    = errors.New("input date is not valid")
	ErrInvalidApp     = errors.New("please select an app")
	ErrInvalidAction  = errors.New("action has no valid key codes")
	ErrRenameConflict = errors.New("rename failed, name exists")
	ErrEventNotFound  = errors.New("event not found")
	ErrUnknownVariant = errors.New("unknown variant")
)

// ScriptPhase tells at which step a script failed.
type ScriptPhase string

const (
	PhaseCompile ScriptPhase = "compile"
	PhaseExecute ScriptPhase = "execute"
)

// ScriptError carries the runner's human-readable message verbatim.
type ScriptError struct {
	Phase   ScriptPhase
	Message string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s error: %s", e.Phase, e.Message)
}

// IsCompile reports whether err is a ScriptError raised while compiling.
func IsCompile(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Phase == PhaseCompile
}

// IsExecute reports whether err is a ScriptError raised while executing.
func IsExecute(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Phase == PhaseExecute
}
