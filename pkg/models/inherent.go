package models

import (
	"time"
)

// InherentData is the per-invocation data every operation receives.
type InherentData struct {
	Seed      uint64 `json:"seed"`
	Timestamp uint64 `json:"timestamp"`
}

// NewInherentData creates inherent data for seed, stamped with the current time.
func NewInherentData(seed uint64) InherentData {
	return InherentData{Seed: seed, Timestamp: uint64(time.Now().UnixMilli())}
}

// RuntimeConfig is the free-form configuration passed to an operation.
type RuntimeConfig map[string]any

// Get returns the value stored under key.
func (c RuntimeConfig) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}

	v, ok := c[key]

	return v, ok
}
