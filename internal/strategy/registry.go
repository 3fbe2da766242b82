package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dilemma/internal/game"
)

var (
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrStrategyNotFound = errors.New("strategy not found")
)

// Factory builds a fresh strategy instance from constructor parameters.
type Factory func(params map[string]float64) (game.Strategy, error)

type registeredStrategy struct {
	factory Factory
	params  []string
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]registeredStrategy
}{
	m: make(map[string]registeredStrategy),
}

func init() {
	registerBuiltins()
}

// Register adds a factory under name. params lists the accepted parameter
// keys; anything else is rejected by New.
func Register(name string, factory Factory, params ...string) error {
	name = normalizeName(name)
	if name == "" {
		return errors.New("strategy name is required")
	}
	if factory == nil {
		return errors.New("strategy factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	registry.m[name] = registeredStrategy{factory: factory, params: append([]string(nil), params...)}
	return nil
}

// New builds one instance of the named strategy.
func New(name string, params map[string]float64) (game.Strategy, error) {
	key := normalizeName(name)

	registry.mu.RLock()
	entry, ok := registry.m[key]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}

	for param := range params {
		if !containsString(entry.params, param) {
			return nil, game.ConfigErrorf("strategy %s does not accept parameter %q", key, param)
		}
	}
	strategy, err := entry.factory(params)
	if err != nil {
		return nil, fmt.Errorf("build strategy %s: %w", key, err)
	}
	return strategy, nil
}

// Constructor validates name and params once and returns a function that
// builds independent instances, one per match side.
func Constructor(name string, params map[string]float64) (func() (game.Strategy, error), error) {
	if _, err := New(name, params); err != nil {
		return nil, err
	}
	copied := make(map[string]float64, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return func() (game.Strategy, error) {
		return New(name, copied)
	}, nil
}

// Names lists the registered catalog in sorted order.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	out := make([]string, 0, len(registry.m))
	for name := range registry.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Params lists the parameter keys the named strategy accepts.
func Params(name string) ([]string, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	entry, ok := registry.m[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	out := append([]string(nil), entry.params...)
	sort.Strings(out)
	return out, nil
}

func registerBuiltins() {
	builtins := []struct {
		name    string
		factory Factory
		params  []string
	}{
		{"ALLC", func(map[string]float64) (game.Strategy, error) { return &AllCooperate{}, nil }, nil},
		{"ALLD", func(map[string]float64) (game.Strategy, error) { return &AllDefect{}, nil }, nil},
		{"TFT", func(map[string]float64) (game.Strategy, error) { return NewTitForTat(), nil }, nil},
		{"STFT", func(map[string]float64) (game.Strategy, error) { return NewSuspiciousTitForTat(), nil }, nil},
		{"TF2T", func(map[string]float64) (game.Strategy, error) { return &TitForTwoTats{}, nil }, nil},
		{"GRIM", func(map[string]float64) (game.Strategy, error) { return &GrimTrigger{}, nil }, nil},
		{"WSLS", func(map[string]float64) (game.Strategy, error) { return &WinStayLoseShift{}, nil }, nil},
		{"PAVLOV", func(map[string]float64) (game.Strategy, error) { return &WinStayLoseShift{}, nil }, nil},
		{"CTFT", func(map[string]float64) (game.Strategy, error) { return &ContriteTitForTat{}, nil }, nil},
		{"RAND", func(p map[string]float64) (game.Strategy, error) {
			return NewRandom(param(p, "p", 0.5))
		}, []string{"p"}},
		{"GTFT", func(p map[string]float64) (game.Strategy, error) {
			return NewGenerousTitForTat(param(p, "forgive_p", 0.1))
		}, []string{"forgive_p"}},
		{"MEM1", func(p map[string]float64) (game.Strategy, error) {
			return NewMemoryOne(param(p, "p0", 1), [4]float64{
				param(p, "p_cc", 1),
				param(p, "p_cd", 0),
				param(p, "p_dc", 1),
				param(p, "p_dd", 0),
			})
		}, []string{"p0", "p_cc", "p_cd", "p_dc", "p_dd"}},
		{"ZDX", func(p map[string]float64) (game.Strategy, error) {
			def := game.DefaultPayoffMatrix()
			payoffs := game.PayoffMatrix{
				Reward:     param(p, "reward", def.Reward),
				Sucker:     param(p, "sucker", def.Sucker),
				Temptation: param(p, "temptation", def.Temptation),
				Punishment: param(p, "punishment", def.Punishment),
			}
			return NewZDExtortion(param(p, "chi", 3), param(p, "phi", 0.5), payoffs)
		}, []string{"chi", "phi", "reward", "sucker", "temptation", "punishment"}},
	}
	for _, b := range builtins {
		if err := Register(b.name, b.factory, b.params...); err != nil {
			panic(err)
		}
	}
}

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
