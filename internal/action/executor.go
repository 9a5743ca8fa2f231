// Package action runs generated AppleScript through the osascript tool chain.
package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

const (
	defaultOsascript  = "osascript"
	defaultOsacompile = "osacompile"
)

// Executor compiles and executes AppleScript source by shelling out to
// osascript and osacompile.
type Executor struct {
	osascript  string
	osacompile string
}

// NewExecutor creates an executor from the runner settings. Empty paths are
// looked up on PATH.
func NewExecutor(settings models.RunnerSettings) *Executor {
	e := &Executor{osascript: settings.Osascript, osacompile: settings.Osacompile}
	if e.osascript == "" {
		e.osascript = defaultOsascript
	}
	if e.osacompile == "" {
		e.osacompile = defaultOsacompile
	}
	return e
}

// Execute runs script. A failure is reported as a *models.ScriptError in
// the execute phase carrying the interpreter's message.
func (e *Executor) Execute(ctx context.Context, script string) error {
	_, err := e.Output(ctx, script)
	return err
}

// Output runs script and returns what it printed to stdout, trimmed of the
// trailing newline.
func (e *Executor) Output(ctx context.Context, script string) (string, error) {
	stdout, err := e.run(ctx, models.PhaseExecute, script, func(src string) []string {
		return []string{e.osascript, src}
	})
	return strings.TrimRight(stdout, "\n"), err
}

// Compile checks that script compiles without running it. A failure is
// reported as a *models.ScriptError in the compile phase.
func (e *Executor) Compile(ctx context.Context, script string) error {
	outDir, err := os.MkdirTemp("", "threew_compile_*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	_, err = e.run(ctx, models.PhaseCompile, script, func(src string) []string {
		return []string{e.osacompile, "-o", filepath.Join(outDir, "compiled.scpt"), src}
	})
	return err
}

// run writes script to a temporary file and invokes the command built by
// argv on it.
func (e *Executor) run(ctx context.Context, phase models.ScriptPhase, script string, argv func(src string) []string) (string, error) {
	l := logger.L().With("phase", string(phase))

	// 1. Write the source to a temp file
	tmpFile, err := os.CreateTemp("", "threew_*.applescript")
	if err != nil {
		return "", fmt.Errorf("failed to create temp script file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(script); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write temp script: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp script: %w", err)
	}

	// 2. Run the tool, killed if ctx is cancelled
	args := argv(tmpFile.Name())
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	stdout := stdoutBuf.String()

	// 3. Map failures to a ScriptError carrying stderr
	if runErr != nil {
		exitCode := -1 // not started, or killed by a signal
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			msg = runErr.Error()
		}
		l.Error("Script failed", "error", runErr, "exit_code", exitCode, "duration", duration.String(), "stderr", msg)
		return stdout, &models.ScriptError{Phase: phase, Message: msg}
	}

	l.Debug("Script finished", "duration", duration.String(), "stdout_len", len(stdout))
	return stdout, nil
}
