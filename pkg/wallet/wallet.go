// Package wallet adapts wallet capabilities to the transaction builder.
//
// Handle mirrors the CIP-30 method set: addresses and UTXOs come back as hex
// CBOR, signing returns a hex witness set.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnavailable = errors.New("wallet: not available")
	ErrNoAddress   = errors.New("wallet: no address")
	ErrRejected    = errors.New("wallet: request rejected")
)

// Handle is a connected wallet. It is held for one operation and never stored.
type Handle interface {
	Utxos(ctx context.Context) ([]string, error)
	ChangeAddress(ctx context.Context) (string, error)
	UsedAddresses(ctx context.Context) ([]string, error)
	UnusedAddresses(ctx context.Context) ([]string, error)
	RewardAddresses(ctx context.Context) ([]string, error)
	// SignTx returns the witness set for txHex. partial=false asks for every required key.
	SignTx(ctx context.Context, txHex string, partial bool) (string, error)
	SubmitTx(ctx context.Context, txHex string) (string, error)
}

// Provider is one wallet implementation that can be enabled by name.
type Provider interface {
	Name() string
	Enable(ctx context.Context) (Handle, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ID   string
	Open func(ctx context.Context) (Handle, error)
}

func (p ProviderFunc) Name() string { return p.ID }

func (p ProviderFunc) Enable(ctx context.Context) (Handle, error) { return p.Open(ctx) }

// Registry enumerates the providers installed in this process.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p. Names are unique.
func (r *Registry) Register(p Provider) error {
	if p == nil || p.Name() == "" {
		return errors.New("wallet: provider needs a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.providers[p.Name()]; dup {
		return fmt.Errorf("wallet: provider %q already registered", p.Name())
	}
	r.providers[p.Name()] = p
	return nil
}

// Available lists provider names in sorted order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Enable connects the named provider. An empty name picks the only provider
// when exactly one is installed.
func (r *Registry) Enable(ctx context.Context, name string) (Handle, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	if name == "" && len(r.providers) == 1 {
		for _, only := range r.providers {
			p, ok = only, true
		}
	}
	r.mu.RUnlock()
	if !ok {
		if name == "" {
			return nil, fmt.Errorf("%w: no wallet selected", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %q is not installed", ErrUnavailable, name)
	}
	h, err := p.Enable(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enable %s: %v", ErrUnavailable, name, err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s returned no handle", ErrUnavailable, name)
	}
	return h, nil
}
