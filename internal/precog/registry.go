// Package precog defines the pluggable task processors the worker runtime
// dispatches to, keyed by precog tag.
package precog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Emit forwards an event to the job registry's append-only log. Processors
// receive it as their only channel back to subscribers.
type Emit func(ctx context.Context, eventType string, data any) error

// Job is the processor's view of a claimed job.
type Job struct {
	ID      string
	Precog  string
	Task    string
	Context json.RawMessage
}

// Processor handles one precog tag (or a tag namespace).
type Processor interface {
	// Process runs the task, emitting intermediate events as it goes. A nil
	// return marks the job done; an error routes it through retry and DLQ.
	Process(ctx context.Context, job Job, emit Emit) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job Job, emit Emit) error

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, job Job, emit Emit) error {
	return f(ctx, job, emit)
}

// Registration binds a precog tag to its processor. Tags ending in ".*"
// claim a namespace: "home.*" matches "home.safety", "home.value", and any
// deeper suffix.
type Registration struct {
	Tag         string
	DefaultTask string
	Processor   Processor
}

// Registry resolves precog tags to processors. Exact matches win over
// namespace matches; among namespaces the longest prefix wins.
type Registry struct {
	mu       sync.RWMutex
	exact    map[string]Registration
	prefixes []Registration // sorted by descending prefix length
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{exact: make(map[string]Registration)}
}

// Register adds a processor registration. Duplicate tags are an error.
func (r *Registry) Register(reg Registration) error {
	if reg.Tag == "" {
		return fmt.Errorf("registration requires a tag")
	}
	if reg.Processor == nil {
		return fmt.Errorf("registration for %q requires a processor", reg.Tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.HasSuffix(reg.Tag, ".*") {
		for _, existing := range r.prefixes {
			if existing.Tag == reg.Tag {
				return fmt.Errorf("duplicate registration for %q", reg.Tag)
			}
		}
		r.prefixes = append(r.prefixes, reg)
		sort.SliceStable(r.prefixes, func(i, j int) bool {
			return len(r.prefixes[i].Tag) > len(r.prefixes[j].Tag)
		})
		return nil
	}

	if _, ok := r.exact[reg.Tag]; ok {
		return fmt.Errorf("duplicate registration for %q", reg.Tag)
	}
	r.exact[reg.Tag] = reg
	return nil
}

// MustRegister adds a registration and panics on error. Use during startup wiring.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Resolve returns the registration for a tag, trying exact matches first and
// namespace prefixes second.
func (r *Registry) Resolve(tag string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if reg, ok := r.exact[tag]; ok {
		return reg, true
	}
	for _, reg := range r.prefixes {
		prefix := strings.TrimSuffix(reg.Tag, "*")
		if strings.HasPrefix(tag, prefix) && len(tag) > len(prefix) {
			return reg, true
		}
	}
	return Registration{}, false
}

// Supports reports whether any processor claims the tag.
func (r *Registry) Supports(tag string) bool {
	_, ok := r.Resolve(tag)
	return ok
}

// DefaultTask returns the registered default task for a tag.
func (r *Registry) DefaultTask(tag string) (string, bool) {
	reg, ok := r.Resolve(tag)
	if !ok {
		return "", false
	}
	return reg.DefaultTask, true
}

// Tags returns all registered tags, exact first, for diagnostics.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.exact)+len(r.prefixes))
	for tag := range r.exact {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, reg := range r.prefixes {
		tags = append(tags, reg.Tag)
	}
	return tags
}
