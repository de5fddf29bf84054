package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"rangeKeeper/internal/model"
)

type poolsFile struct {
	Pools []model.PoolConfig `yaml:"pools"`
}

// LoadPools reads a pool registry YAML file and validates every entry.
func LoadPools(path string) ([]model.PoolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pools file: %w", err)
	}
	return ParsePools(data)
}

// ParsePools decodes and validates a pool registry document.
func ParsePools(data []byte) ([]model.PoolConfig, error) {
	var doc poolsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pools: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Pools))
	for i, pool := range doc.Pools {
		if err := validatePool(pool); err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, pool.Name, err)
		}
		if _, dup := seen[pool.Key()]; dup {
			return nil, model.NewConfigurationError("pools", fmt.Sprintf("duplicate pool address %s", pool.Address))
		}
		seen[pool.Key()] = struct{}{}
	}
	return doc.Pools, nil
}

func validatePool(pool model.PoolConfig) error {
	if pool.Address == "" || pool.Token0.Address == "" || pool.Token1.Address == "" {
		return model.NewConfigurationError("pools", "pool and token addresses are required")
	}
	if _, err := ParseAddresses([]string{pool.Address, pool.Token0.Address, pool.Token1.Address}); err != nil {
		return model.NewConfigurationError("pools", err.Error())
	}
	if pool.Token0.Decimals == 0 || pool.Token1.Decimals == 0 {
		return model.NewConfigurationError("pools", "token decimals are required")
	}
	if pool.FeeTier == 0 {
		return model.NewConfigurationError("pools", "fee_tier is required")
	}
	return nil
}

// Registry indexes configured pools by address and name.
type Registry struct {
	byKey map[string]model.PoolConfig
	order []string
}

// NewRegistry builds a registry from pool entries.
func NewRegistry(pools []model.PoolConfig) *Registry {
	r := &Registry{byKey: make(map[string]model.PoolConfig, len(pools))}
	for _, pool := range pools {
		if _, ok := r.byKey[pool.Key()]; !ok {
			r.order = append(r.order, pool.Key())
		}
		r.byKey[pool.Key()] = pool
	}
	return r
}

// Lookup resolves a pool by address or case-insensitive name.
func (r *Registry) Lookup(ref string) (model.PoolConfig, bool) {
	ref = strings.TrimSpace(ref)
	if pool, ok := r.byKey[strings.ToLower(ref)]; ok {
		return pool, true
	}
	for _, key := range r.order {
		pool := r.byKey[key]
		if strings.EqualFold(pool.Name, ref) {
			return pool, true
		}
	}
	return model.PoolConfig{}, false
}

// Resolve returns the pool address for ref. Unregistered hex addresses pass through.
func (r *Registry) Resolve(ref string) (string, error) {
	if pool, ok := r.Lookup(ref); ok {
		return pool.Address, nil
	}
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref).Hex(), nil
	}
	return "", model.NewConfigurationError("pool", fmt.Sprintf("pool %q not found", ref))
}

// Enabled returns enabled pools in file order.
func (r *Registry) Enabled() []model.PoolConfig {
	out := make([]model.PoolConfig, 0, len(r.order))
	for _, key := range r.order {
		if pool := r.byKey[key]; pool.Enabled {
			out = append(out, pool)
		}
	}
	return out
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
