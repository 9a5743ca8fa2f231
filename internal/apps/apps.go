// Package apps lists the foreground applications a keystroke event can target.
package apps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

// App is one running application.
type App struct {
	DisplayName string `json:"display_name"`
	BundleID    string `json:"bundle_id"`
}

// Target returns the event target for a.
func (a App) Target() models.App {
	return models.App{Name: a.DisplayName, BundleID: a.BundleID}
}

// Provider returns the applications currently running.
type Provider interface {
	RunningApps(ctx context.Context) ([]App, error)
}

// ScriptOutputter runs a script and returns its stdout.
type ScriptOutputter interface {
	Output(ctx context.Context, script string) (string, error)
}

// listScript prints one "name<TAB>bundle id" line per foreground process.
const listScript = `set out to ""
tell application "System Events"
    repeat with p in (every process whose background only is false)
        set b to ""
        try
            set b to bundle identifier of p
        end try
        if b is missing value then set b to ""
        set out to out & (name of p) & tab & b & linefeed
    end repeat
end tell
return out`

// SystemEventsProvider asks System Events for the foreground processes.
type SystemEventsProvider struct {
	runner ScriptOutputter
}

// NewSystemEventsProvider creates a provider that runs its query through runner.
func NewSystemEventsProvider(runner ScriptOutputter) *SystemEventsProvider {
	return &SystemEventsProvider{runner: runner}
}

// RunningApps returns the normalized list of foreground applications.
func (p *SystemEventsProvider) RunningApps(ctx context.Context) ([]App, error) {
	out, err := p.runner.Output(ctx, listScript)
	if err != nil {
		return nil, fmt.Errorf("list running applications: %w", err)
	}
	apps := Normalize(Parse(out))
	logger.L().Debug("Listed running applications", "count", len(apps))
	return apps, nil
}

// Parse reads the tab-separated lines produced by the listing script.
// Lines without a tab are skipped.
func Parse(out string) []App {
	var apps []App
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		name, bundle, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		apps = append(apps, App{DisplayName: strings.TrimSpace(name), BundleID: strings.TrimSpace(bundle)})
	}
	return apps
}

// Normalize drops entries missing a name or bundle id, keeps the first entry
// per bundle id and sorts by case-insensitive name, then bundle id.
func Normalize(in []App) []App {
	seen := make(map[string]struct{}, len(in))
	out := make([]App, 0, len(in))
	for _, a := range in {
		if a.DisplayName == "" || a.BundleID == "" {
			continue
		}
		if _, dup := seen[a.BundleID]; dup {
			continue
		}
		seen[a.BundleID] = struct{}{}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if li != lj {
			return li < lj
		}
		return out[i].BundleID < out[j].BundleID
	})
	return out
}

// Find returns the app whose display name or bundle id equals query,
// ignoring case.
func Find(apps []App, query string) (App, bool) {
	for _, a := range apps {
		if strings.EqualFold(a.BundleID, query) || strings.EqualFold(a.DisplayName, query) {
			return a, true
		}
	}
	return App{}, false
}
