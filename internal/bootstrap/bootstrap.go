// Package bootstrap implements the agent's startup/shutdown sequence:
// load schema, build the model, register with the bus, materialize the
// ancestor rows and seed values a schema implies, prime subscribers
// with defaults, then idle until a termination signal. Seed SETs apply
// in input-file order, and every state change lands before the
// corresponding outbound publish.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/ledgerwatch/log/v3"

	"github.com/stepherg/rbus-elements/internal/bus"
	"github.com/stepherg/rbus-elements/internal/dispatch"
	"github.com/stepherg/rbus-elements/internal/metrics"
	"github.com/stepherg/rbus-elements/internal/nametree"
	"github.com/stepherg/rbus-elements/internal/platform"
	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/schema"
	"github.com/stepherg/rbus-elements/internal/tableengine"
	"github.com/stepherg/rbus-elements/internal/value"
)

// idlePoll is the coarse termination-flag check interval.
const idlePoll = 1 * time.Second

// Agent owns the full startup-to-shutdown lifecycle.
type Agent struct {
	ComponentName string
	Provider      bus.Provider
	Platform      platform.Platform
	Logger        log.Logger

	reg    *registry.Registry
	engine *tableengine.Engine
	disp   *dispatch.Dispatcher
}

// NewAgent returns an Agent ready for Run. logger defaults to
// log.Root() if nil.
func NewAgent(componentName string, provider bus.Provider, plat platform.Platform, logger log.Logger) *Agent {
	if logger == nil {
		logger = log.Root()
	}
	return &Agent{ComponentName: componentName, Provider: provider, Platform: plat, Logger: logger}
}

// Run executes the bootstrap sequence, then blocks in the idle loop
// until ctx is cancelled, and finally runs shutdown. entries is the
// already-parsed schema file content; the file read itself stays with
// the caller so Run can be driven from an in-memory schema in tests.
func (a *Agent) Run(ctx context.Context, entries []schema.Entry) error {
	loader := schema.NewLoader(a.Platform)
	reg, seeds, err := loader.Load(entries)
	if err != nil {
		return fmt.Errorf("bootstrap: schema load: %w", err)
	}
	a.reg = reg
	a.engine = tableengine.New(reg)

	pub := &busEventPublisher{provider: a.Provider}
	a.disp = dispatch.New(a.reg, a.engine, dispatch.WithPublisher(pub), dispatch.WithLogger(a.Logger))

	if err := a.Provider.Open(a.ComponentName, a.disp); err != nil {
		return fmt.Errorf("bootstrap: open bus: %w", err)
	}

	descriptors := make([]bus.ElementDescriptor, 0, a.reg.Len())
	for _, el := range a.reg.Iter() {
		descriptors = append(descriptors, bus.ElementDescriptor{Name: el.Name, Kind: el.Kind})
	}
	if err := a.Provider.RegisterElements(descriptors); err != nil {
		return fmt.Errorf("bootstrap: register elements: %w", err)
	}
	metrics.RegisteredElements.Set(float64(len(descriptors)))
	a.Logger.Info("registered elements with bus", "count", len(descriptors), "component_name", a.ComponentName)

	if err := a.materializeAncestorRows(seeds); err != nil {
		return fmt.Errorf("bootstrap: materialize ancestor rows: %w", err)
	}

	for _, seed := range seeds {
		if err := a.disp.Set(seed.Name, seed.Value); err != nil {
			return fmt.Errorf("bootstrap: seed %s: %w", seed.Name, err)
		}
		if err := a.Provider.Set(seed.Name, seed.Value); err != nil {
			a.Logger.Warn("commit seed value failed", "name", seed.Name, "err", err)
		}
	}

	for _, el := range a.reg.Iter() {
		if el.Kind != registry.KindProperty || nametree.IsTemplate(el.Name) {
			continue
		}
		// Priming commits the declared default, never a probe result;
		// probe-backed properties report live values on the first GET.
		if err := a.Provider.Set(el.Name, el.Default); err != nil {
			a.Logger.Warn("commit initial value failed", "name", el.Name, "err", err)
		}
	}

	a.idleLoop(ctx)
	return a.shutdown(descriptors)
}

// tableNeed is a concrete table prefix and the highest instance number
// any seed implies it must contain.
type tableNeed struct {
	prefix      string
	maxInstance uint32
}

// materializeAncestorRows derives every concrete ancestor table a
// seed's row coordinate implies, sorted outermost table first, and
// adds rows up to the highest instance each needs so later instance
// allocation lines up with what the seeds expect.
func (a *Agent) materializeAncestorRows(seeds []schema.Seed) error {
	needs := map[string]uint32{}
	for _, seed := range seeds {
		collectAncestorNeeds(seed.Name, needs)
	}

	ordered := make([]tableNeed, 0, len(needs))
	for prefix, max := range needs {
		ordered = append(ordered, tableNeed{prefix: prefix, maxInstance: max})
	}
	sort.Slice(ordered, func(i, j int) bool {
		ci := nametree.CountInstances(strings.TrimSuffix(ordered[i].prefix, "."))
		cj := nametree.CountInstances(strings.TrimSuffix(ordered[j].prefix, "."))
		if ci != cj {
			return ci < cj
		}
		return ordered[i].prefix < ordered[j].prefix
	})

	for _, need := range ordered {
		for n := uint32(0); n < need.maxInstance; n++ {
			if _, err := a.engine.AddRow(need.prefix, ""); err != nil {
				return fmt.Errorf("table %s: %w", need.prefix, err)
			}
		}
	}
	return nil
}

// collectAncestorNeeds walks every instance segment implied by a
// concrete leaf name, innermost table first, recording the highest
// instance number seen per concrete table prefix.
func collectAncestorNeeds(concreteName string, needs map[string]uint32) {
	current := concreteName
	for {
		row, ok, err := nametree.SplitRow(current)
		if err != nil || !ok {
			return
		}
		if row.Instance > needs[row.TablePrefix] {
			needs[row.TablePrefix] = row.Instance
		}
		current = strings.TrimSuffix(row.TablePrefix, ".")
	}
}

func (a *Agent) idleLoop(ctx context.Context) {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) shutdown(descriptors []bus.ElementDescriptor) error {
	names := make([]string, len(descriptors))
	for i, d := range descriptors {
		names[i] = d.Name
	}
	if err := a.Provider.UnregisterElements(names); err != nil {
		a.Logger.Warn("unregister elements failed", "err", err)
	}
	metrics.RegisteredElements.Set(0)
	return a.Provider.Close()
}

// busEventPublisher adapts bus.Provider to dispatch.EventPublisher.
type busEventPublisher struct {
	provider bus.Provider
}

func (p *busEventPublisher) PublishEvent(name string, kind dispatch.EventKind, payload map[string]value.Value) error {
	return p.provider.PublishEvent(name, kind, payload)
}
