package network

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry maps chain IDs to network configuration. It is immutable after
// construction.
type Registry struct {
	byID  map[ChainID]Config
	order []ChainID
}

// NewRegistry validates cfgs and builds a registry. Later entries with the
// same chain ID replace earlier ones.
func NewRegistry(cfgs ...Config) (*Registry, error) {
	r := &Registry{byID: make(map[ChainID]Config, len(cfgs))}
	for _, c := range cfgs {
		c.applyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.byID[c.ChainID]; !exists {
			r.order = append(r.order, c.ChainID)
		}
		r.byID[c.ChainID] = c
	}
	return r, nil
}

// Default returns the registry of built-in networks.
func Default() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(fmt.Sprintf("network: invalid built-in table: %v", err))
	}
	return r
}

// Load returns the built-in networks overlaid with the YAML file at path.
// A missing file is not an error.
func Load(path string) (*Registry, error) {
	cfgs := Builtin()
	if path == "" {
		return NewRegistry(cfgs...)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewRegistry(cfgs...)
	}
	if err != nil {
		return nil, fmt.Errorf("reading networks file: %w", err)
	}
	merged, err := overlay(cfgs, data)
	if err != nil {
		return nil, fmt.Errorf("parsing networks file %s: %w", path, err)
	}
	return NewRegistry(merged...)
}

// overlay applies YAML entries onto base. An entry whose chain_id matches a
// base entry only overrides the fields it sets.
func overlay(base []Config, data []byte) ([]Config, error) {
	var file struct {
		Networks []yaml.Node `yaml:"networks"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	index := make(map[ChainID]int, len(base))
	out := append([]Config(nil), base...)
	for i, c := range out {
		index[c.ChainID] = i
	}

	for i := range file.Networks {
		node := &file.Networks[i]
		var head struct {
			ChainID ChainID `yaml:"chain_id"`
		}
		if err := node.Decode(&head); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if head.ChainID == 0 {
			return nil, fmt.Errorf("entry %d: missing chain_id", i)
		}

		if pos, ok := index[head.ChainID]; ok {
			cfg := out[pos]
			if err := node.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			out[pos] = cfg
			continue
		}

		var cfg Config
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		index[cfg.ChainID] = len(out)
		out = append(out, cfg)
	}
	return out, nil
}

// Lookup returns the configuration for id.
func (r *Registry) Lookup(id ChainID) (Config, error) {
	c, ok := r.byID[id]
	if !ok {
		return Config{}, &UnsupportedNetworkError{ChainID: id}
	}
	return c, nil
}

// Supported reports whether id has an entry.
func (r *Registry) Supported(id ChainID) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns every entry in registration order.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
