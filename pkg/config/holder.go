package config

import "sync"

// Holder is the process-wide configuration slot the presentation layer edits.
// Callers take a Snapshot per operation; an Update never affects an operation in flight.
type Holder struct {
	mu  sync.RWMutex
	cfg Config
}

func NewHolder(cfg Config) *Holder {
	return &Holder{cfg: cfg}
}

// Snapshot returns a copy of the current configuration.
func (h *Holder) Snapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Update applies fn to a copy and installs it if the result validates.
func (h *Holder) Update(fn func(*Config)) (Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.cfg
	fn(&next)
	next, err := next.Normalize()
	if err != nil {
		return h.cfg, err
	}
	h.cfg = next
	return next, nil
}
