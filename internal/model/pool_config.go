package model

import "strings"

// TokenConfig describes one side of a configured pool.
type TokenConfig struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Address  string `yaml:"address" json:"address"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// PoolConfig is a pool registry entry.
type PoolConfig struct {
	Name    string      `yaml:"name" json:"name"`
	Address string      `yaml:"address" json:"address"`
	Token0  TokenConfig `yaml:"token0" json:"token0"`
	Token1  TokenConfig `yaml:"token1" json:"token1"`
	FeeTier uint32      `yaml:"fee_tier" json:"fee_tier"`
	Enabled bool        `yaml:"enabled" json:"enabled"`
}

// Key returns the lowercase pool address used for lookups.
func (p PoolConfig) Key() string {
	return strings.ToLower(p.Address)
}
