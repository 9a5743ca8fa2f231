package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaelzs/ThreeW/internal/kv"
	"github.com/Kaelzs/ThreeW/internal/store"
	"github.com/Kaelzs/ThreeW/internal/testutil"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

type fakeRunner struct {
	mu      sync.Mutex
	scripts []string
	output  string
	execErr error
}

func (f *fakeRunner) Execute(ctx context.Context, script string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, script)
	return f.execErr
}

func (f *fakeRunner) Output(ctx context.Context, script string) (string, error) {
	return f.output, nil
}

func (f *fakeRunner) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scripts...)
}

type harness struct {
	t       *testing.T
	backend *kv.Memory
	runner  *fakeRunner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testutil.InitLogger(t)
	return &harness{t: t, backend: kv.NewMemory(), runner: &fakeRunner{}}
}

// exec runs one threew invocation against the shared backend.
func (h *harness) exec(args ...string) (string, string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	cfg := &models.Config{Application: models.ApplicationSettings{LogLevel: "error", LogFormat: "text"}}
	cmd := NewRootCommand(
		WithOutput(&stdout, &stderr),
		WithConfig(cfg),
		WithBackend(h.backend),
		WithRunner(h.runner),
	)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(testutil.TestContext(h.t))
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustExec(args ...string) string {
	h.t.Helper()
	out, stderr, err := h.exec(args...)
	require.NoError(h.t, err, "threew %s\nstderr: %s", strings.Join(args, " "), stderr)
	return out
}

func (h *harness) events() []models.Event {
	h.t.Helper()
	s, err := store.Open(context.Background(), h.backend)
	require.NoError(h.t, err)
	return s.List()
}

func (h *harness) event(name string) models.Event {
	h.t.Helper()
	s, err := store.Open(context.Background(), h.backend)
	require.NoError(h.t, err)
	ev, ok := s.FindByName(name)
	require.True(h.t, ok, "event %q not found", name)
	return ev
}

func TestNew_DefaultNames(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("new")
	assert.Contains(t, out, `Created event "Action"`)
	h.mustExec("new")

	events := h.events()
	require.Len(t, events, 2)
	assert.Equal(t, "Action", events[0].Name)
	assert.Equal(t, "Action 2", events[1].Name)
	assert.Equal(t, models.NextTime{Hour: 9, Minute: 41}, events[0].When)
	assert.Equal(t, models.NoTarget{}, events[0].Which)
}

func TestNew_WithName(t *testing.T) {
	h := newHarness(t)

	h.mustExec("new", "Standup")
	_, _, err := h.exec("new", "Standup")

	require.ErrorIs(t, err, models.ErrRenameConflict)
	events := h.events()
	require.Len(t, events, 1, "failed create leaves nothing behind")
	assert.Equal(t, "Standup", events[0].Name)
}

func TestList(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("list")
	assert.Equal(t, "No events defined.\n", out)

	h.mustExec("new", "Standup")
	h.mustExec("target", "Standup", "--bundle", "com.apple.Safari", "Safari")
	out = h.mustExec("list")

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "next 09:41:00")
	assert.Contains(t, out, "Safari (com.apple.Safari)")
	assert.Contains(t, out, "0 action(s)")
}

func TestShow(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "Standup")
	h.mustExec("keys", "add", "Standup", "36", "--command")

	out := h.mustExec("show", "Standup")

	assert.Contains(t, out, "Name:   Standup")
	assert.Contains(t, out, "When:   next 09:41:00 -> ")
	assert.Contains(t, out, "Which:  (none)")
	assert.Contains(t, out, "1. keys 36 +command")
}

func TestLookup_ByIDAndPrefix(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "Standup")
	id := h.event("Standup").ID

	out := h.mustExec("show", id)
	assert.Contains(t, out, "Name:   Standup")

	out = h.mustExec("show", id[:6])
	assert.Contains(t, out, "Name:   Standup")

	_, _, err := h.exec("show", "nope")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestRename(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "A")
	h.mustExec("new", "B")

	out := h.mustExec("rename", "A", "C")
	assert.Contains(t, out, `Renamed "A" to "C"`)

	_, _, err := h.exec("rename", "C", "B")
	assert.ErrorIs(t, err, models.ErrRenameConflict)

	names := []string{}
	for _, ev := range h.events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"C", "B"}, names)
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "A")

	h.mustExec("delete", "A")
	assert.Empty(t, h.events())

	_, _, err := h.exec("delete", "A")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func TestWhen(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "E")

	h.mustExec("when", "E", "next", "10:30")
	assert.Equal(t, models.NextTime{Hour: 10, Minute: 30}, h.event("E").When)

	h.mustExec("when", "E", "after", "1h30m15s")
	assert.Equal(t, models.TimeAfter{Hour: 1, Minute: 30, Second: 15}, h.event("E").When)

	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	h.mustExec("when", "E", "at", "2026-03-01T09:30:00Z")
	spec, ok := h.event("E").When.(models.Specific)
	require.True(t, ok)
	assert.True(t, want.Equal(spec.Date))

	_, _, err := h.exec("when", "E", "next", "25:00")
	assert.ErrorIs(t, err, models.ErrInvalidDate)
	assert.IsType(t, models.Specific{}, h.event("E").When, "failed edit keeps the trigger")
}

func TestTarget(t *testing.T) {
	h := newHarness(t)
	h.runner.output = "Safari\tcom.apple.Safari\nFinder\tcom.apple.finder\n"
	h.mustExec("new", "E")

	h.mustExec("target", "E", "safari")
	assert.Equal(t, models.App{Name: "Safari", BundleID: "com.apple.Safari"}, h.event("E").Which)

	h.mustExec("target", "E", "--bundle", "com.apple.Notes")
	assert.Equal(t, models.App{Name: "com.apple.Notes", BundleID: "com.apple.Notes"}, h.event("E").Which)

	_, _, err := h.exec("target", "E", "Mail")
	assert.ErrorIs(t, err, models.ErrInvalidApp)

	h.mustExec("target", "E", "--none")
	assert.Equal(t, models.NoTarget{}, h.event("E").Which)

	_, _, err = h.exec("target", "E")
	assert.ErrorIs(t, err, models.ErrInvalidApp)
}

func TestKeys(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "E")

	h.mustExec("keys", "add", "E", "36, 1", "--command", "--option")
	h.mustExec("keys", "add", "E", "48")

	acts := h.event("E").What.Actions
	require.Len(t, acts, 2)
	assert.Equal(t, models.Keycode{Codes: []int{36, 1}, Modifiers: models.Modifiers{Command: true, Option: true}}, acts[0])
	assert.Equal(t, models.Keycode{Codes: []int{48}}, acts[1])

	_, _, err := h.exec("keys", "add", "E", "abc")
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	h.mustExec("keys", "clear", "E")
	assert.Empty(t, h.event("E").What.Actions)
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "E")

	_, _, err := h.exec("preview", "E")
	assert.ErrorIs(t, err, models.ErrInvalidApp)

	h.mustExec("target", "E", "--bundle", "com.apple.Safari", "Safari")
	h.mustExec("keys", "add", "E", "36", "--command")
	out := h.mustExec("preview", "E")

	assert.Contains(t, out, "E fires next 09:41:00 -> ")
	assert.Contains(t, out, `tell application "System Events"`)
	assert.Contains(t, out, `key code {36} using {command down}`)
	assert.Empty(t, h.runner.executed(), "preview never runs the script")
}

func TestApps(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("apps")
	assert.Equal(t, "No applications running.\n", out)

	h.runner.output = "Safari\tcom.apple.Safari\nFinder\tcom.apple.finder\n"
	out = h.mustExec("apps")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Finder")
	assert.Contains(t, lines[2], "com.apple.Safari")
}

func TestRun_FiresPastEvent(t *testing.T) {
	h := newHarness(t)
	h.mustExec("new", "E")
	h.mustExec("when", "E", "at", "2000-01-01 00:00")
	h.mustExec("target", "E", "--bundle", "com.apple.Safari", "Safari")
	h.mustExec("keys", "add", "E", "36")

	out := h.mustExec("run", "E", "--exit-when-done")

	assert.Contains(t, out, `Scheduled "E" at 2000-01-01 00:00:00`)
	assert.Contains(t, out, `"E" ran at`)
	scripts := h.runner.executed()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `key code {36}`)
}

func TestRun_ReportsFailures(t *testing.T) {
	h := newHarness(t)
	h.runner.execErr = &models.ScriptError{Phase: models.PhaseExecute, Message: "not allowed to send keystrokes"}
	h.mustExec("new", "Good")
	h.mustExec("when", "Good", "at", "2000-01-01 00:00")
	h.mustExec("target", "Good", "--bundle", "com.apple.Safari")
	h.mustExec("keys", "add", "Good", "36")
	h.mustExec("new", "NoTarget")

	out, stderr, err := h.exec("run", "--exit-when-done")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Error: NoTarget: please select an app")
	assert.Contains(t, out, `"Good" failed at`)
	assert.Contains(t, out, "not allowed to send keystrokes")
}

func TestRun_NothingToSchedule(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.exec("run")
	assert.ErrorIs(t, err, errNoEvents)

	h.mustExec("new", "E")
	_, _, err = h.exec("run", "E")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events could be scheduled")
}

func TestRoot_LoadsConfigFile(t *testing.T) {
	testutil.InitLogger(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(cfgPath, []byte("application:\n  log_level: error\nstorage:\n  backend: file\n  path: "+dataDir+"\n"), 0644))

	run := func(args ...string) string {
		var stdout, stderr bytes.Buffer
		cmd := NewRootCommand(WithOutput(&stdout, &stderr), WithRunner(&fakeRunner{}))
		cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
		require.NoError(t, cmd.Execute(), stderr.String())
		return stdout.String()
	}

	run("new", "Persisted")
	out := run("list")

	assert.Contains(t, out, "Persisted")
	_, err := os.Stat(filepath.Join(dataDir, models.EventsKey+".json"))
	assert.NoError(t, err)
}

func TestRoot_BadConfig(t *testing.T) {
	testutil.InitLogger(t)
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(WithOutput(&stdout, &stderr))
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "list"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading configuration")
}

func TestParseTimeSpec(t *testing.T) {
	loc := time.FixedZone("X", 2*3600)
	tests := []struct {
		kind, value string
		want        models.TimeSpec
		wantErr     bool
	}{
		{"next", "09:41", models.NextTime{Hour: 9, Minute: 41}, false},
		{"next", "23:59:59", models.NextTime{Hour: 23, Minute: 59, Second: 59}, false},
		{"NEXT", "00:00", models.NextTime{}, false},
		{"next", "24:00", nil, true},
		{"next", "9", nil, true},
		{"next", "09:60", nil, true},
		{"after", "90s", models.TimeAfter{Minute: 1, Second: 30}, false},
		{"after", "02:00:05", models.TimeAfter{Hour: 2, Second: 5}, false},
		{"after", "0s", models.TimeAfter{}, false},
		{"after", "24h", nil, true},
		{"after", "-1m", nil, true},
		{"after", "soon", nil, true},
		{"at", "2026-03-01 09:30", models.Specific{Date: time.Date(2026, 3, 1, 9, 30, 0, 0, loc)}, false},
		{"at", "2026-03-01T09:30:15", models.Specific{Date: time.Date(2026, 3, 1, 9, 30, 15, 0, loc)}, false},
		{"at", "tomorrow", nil, true},
		{"every", "1h", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind+" "+tt.value, func(t *testing.T) {
			got, err := parseTimeSpec(tt.kind, tt.value, loc)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if s, ok := tt.want.(models.Specific); ok {
				require.IsType(t, models.Specific{}, got)
				assert.True(t, s.Date.Equal(got.(models.Specific).Date))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabels_CoverEveryVariant(t *testing.T) {
	for _, k := range models.TargetKinds {
		assert.NotContains(t, targetLabel(k), "unknown")
	}
	for _, k := range models.ActionKinds {
		assert.NotContains(t, actionLabel(k), "unknown")
	}
}

func TestAddModifierFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want models.Modifiers
	}{
		{name: "None", args: nil, want: models.Modifiers{}},
		{name: "Command", args: []string{"--command"}, want: models.Modifiers{Command: true}},
		{name: "All", args: []string{"--command", "--option", "--shift", "--control"}, want: models.Modifiers{Command: true, Option: true, Shift: true, Control: true}},
		{name: "Explicit false", args: []string{"--option=false", "--shift"}, want: models.Modifiers{Shift: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mods models.Modifiers
			fs := pflag.NewFlagSet("keys", pflag.ContinueOnError)
			addModifierFlags(fs, &mods)
			require.NoError(t, fs.Parse(tt.args))
			assert.Equal(t, tt.want, mods)
		})
	}
}
