package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MaxHistory bounds the rolling dialogue kept by Chat, per provider.
const MaxHistory = 20

// Registry maps logical provider names to adapters and tracks one default.
// A non-empty registry always has exactly one default.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	history     map[string][]Message
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		history:   make(map[string][]Message),
	}
}

// Register inserts or replaces name. It becomes the default when isDefault is
// set or no default exists yet. Replacing an adapter drops its chat history.
func (r *Registry) Register(name string, p Provider, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		delete(r.history, name)
	}
	r.providers[name] = p
	if isDefault || r.defaultName == "" {
		r.defaultName = name
	}
}

// Remove deletes name. Removing the default promotes the lexicographically
// first remaining provider, or leaves the registry without a default.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return
	}
	delete(r.providers, name)
	delete(r.history, name)

	if r.defaultName != name {
		return
	}
	r.defaultName = ""
	if names := r.sortedNames(); len(names) > 0 {
		r.defaultName = names[0]
	}
}

// Get resolves name, or the default when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, _, err := r.resolve(name)
	return p, err
}

func (r *Registry) resolve(name string) (Provider, string, error) {
	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return nil, "", ErrNoProvider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrNoProvider, name)
	}
	return p, name, nil
}

// Default returns the default provider name, empty when the registry is empty.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Complete forwards msgs to the named or default provider.
func (r *Registry) Complete(ctx context.Context, msgs []Message, name string) (*Result, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Complete(ctx, msgs)
}

// Chat sends userText with the provider's rolling history and records the
// reply. History persists across calls until ClearHistory.
func (r *Registry) Chat(ctx context.Context, userText, systemPrompt, name string) (*Result, error) {
	r.mu.RLock()
	p, resolved, err := r.resolve(name)
	var hist []Message
	if err == nil {
		hist = append(hist, r.history[resolved]...)
	}
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	hist = append(hist, NewMessage(RoleUser, userText))

	msgs := make([]Message, 0, len(hist)+1)
	if systemPrompt != "" {
		msgs = append(msgs, NewMessage(RoleSystem, systemPrompt))
	}
	msgs = append(msgs, hist...)

	res, err := p.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	hist = append(hist, NewMessage(RoleAssistant, res.Content))
	if len(hist) > MaxHistory {
		hist = hist[len(hist)-MaxHistory:]
	}

	r.mu.Lock()
	if _, ok := r.providers[resolved]; ok {
		r.history[resolved] = hist
	}
	r.mu.Unlock()
	return res, nil
}

// History returns a copy of the rolling dialogue for name (or the default).
func (r *Registry) History(name string) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defaultName
	}
	return append([]Message(nil), r.history[name]...)
}

// ClearHistory resets the rolling dialogue for name (or the default).
func (r *Registry) ClearHistory(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		name = r.defaultName
	}
	delete(r.history, name)
}
