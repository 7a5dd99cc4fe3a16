package handlers

import (
	"sync"

	"github.com/ethpandaops/ephemeris/pkg/query"
)

// Results keeps the most recent result set
type Results struct {
	mu     sync.RWMutex
	latest *query.ResultSet
}

// NewResults creates an empty holder
func NewResults() *Results {
	return &Results{}
}

// Store replaces the latest result set
func (r *Results) Store(rs *query.ResultSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.latest = rs
}

// Latest returns the latest result set, or nil
func (r *Results) Latest() *query.ResultSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.latest
}
