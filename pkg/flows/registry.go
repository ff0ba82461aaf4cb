// Package flows holds the concrete wizard configurations of the matching platform.
package flows

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/api"
	"github.com/zdunecki/matchfund/pkg/campaign"
	"github.com/zdunecki/matchfund/pkg/logging"
	"github.com/zdunecki/matchfund/pkg/wizard"
)

// ErrUnknownFlow is returned for names nothing registered.
var ErrUnknownFlow = errors.New("unknown flow")

// Deps are the collaborators a flow's submit action uses.
type Deps struct {
	API      *api.Client
	Launcher *campaign.Launcher
	Logger   *zap.Logger
	Now      func() time.Time
}

func (d Deps) logger() *zap.Logger {
	return logging.OrNop(d.Logger)
}

// Clock returns Now(), or the wall clock when Now is unset.
func (d Deps) Clock() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) launcher() *campaign.Launcher {
	if d.Launcher != nil {
		return d.Launcher
	}
	return campaign.NewLauncher(d.API, d.Logger)
}

// Builder creates a fresh flow bound to deps.
type Builder func(Deps) *wizard.Flow

// Info describes a registered flow.
type Info struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Steps int    `json:"steps"`
}

type entry struct {
	title   string
	builder Builder
}

var (
	mu       sync.RWMutex
	registry = make(map[string]entry)
)

// Register adds a flow under name, replacing any earlier one.
func Register(name, title string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = entry{title: title, builder: b}
}

// Get returns the builder registered under name.
func Get(name string) (Builder, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	return e.builder, nil
}

// Names lists registered flows in name order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List describes every registered flow.
func List() []Info {
	var out []Info
	for _, name := range Names() {
		mu.RLock()
		e := registry[name]
		mu.RUnlock()
		out = append(out, Info{Name: name, Title: e.title, Steps: e.builder(Deps{}).TotalSteps()})
	}
	return out
}

// Build creates the named flow and checks its configuration.
func Build(name string, deps Deps) (*wizard.Flow, error) {
	b, err := Get(name)
	if err != nil {
		return nil, err
	}
	fl := b(deps)
	if err := fl.Check(); err != nil {
		return nil, err
	}
	return fl, nil
}
