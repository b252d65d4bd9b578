package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Constructor builds a strategy from its services.
type Constructor func(svc Services) (*Strategy, error)

// registry holds the strategies available by name.
var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		"MaCross": newMaCross,
	}
)

// Register adds a strategy under name. It panics when name is taken.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("strategy: Register called twice for " + name)
	}
	registry[name] = ctor
}

// New instantiates the strategy registered under name.
func New(name string, svc Services) (*Strategy, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return ctor(svc)
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newMaCross combines the moving average cross signal with a trailing stop.
func newMaCross(svc Services) (*Strategy, error) {
	signal := NewMaCrossSignal(svc)
	actor := NewActorState(NewTrailingStop(svc), signal, svc.Log)
	return &Strategy{
		Name:   "MaCross",
		Signal: signal,
		Actor:  actor,
	}, nil
}
