package packet

import "fmt"

// DecoderFactory produces a fresh, zero-valued Body instance ready to have ReadFrom called on
// it. Each decode call gets its own instance; factories must not return a shared value.
type DecoderFactory func() Body

// Registry maps packet identifiers to decoder factories. A Registry is immutable once built
// and safe for concurrent reads from multiple goroutines.
type Registry struct {
	byIdentifier map[string]DecoderFactory
}

// Lookup returns the decoder factory registered for identifier, if any.
func (r *Registry) Lookup(identifier string) (DecoderFactory, bool) {
	f, ok := r.byIdentifier[identifier]
	return f, ok
}

// IsKnown reports whether identifier has a registered decoder.
func (r *Registry) IsKnown(identifier string) bool {
	_, ok := r.byIdentifier[identifier]
	return ok
}

// Size returns the number of registered identifiers.
func (r *Registry) Size() int { return len(r.byIdentifier) }

// Builder assembles a Registry. A Builder is not safe for concurrent use — build the
// registry from a single goroutine before handing it to the codec.
type Builder struct {
	entries map[string]DecoderFactory
}

// BuilderFor starts a new Builder, optionally seeded from an existing registry's entries.
func BuilderFor(seed *Registry) *Builder {
	b := &Builder{entries: make(map[string]DecoderFactory)}
	if seed != nil {
		for k, v := range seed.byIdentifier {
			b.entries[k] = v
		}
	}
	return b
}

// NewBuilder starts an empty Builder.
func NewBuilder() *Builder { return BuilderFor(nil) }

// Register adds identifier unless it is already registered, in which case it leaves the
// existing entry in place and returns an error (it never panics) — callers that want to
// overwrite should call Remove first.
func (b *Builder) Register(identifier string, factory DecoderFactory) (*Builder, error) {
	if _, exists := b.entries[identifier]; exists {
		return b, fmt.Errorf("packet: identifier %q already registered", identifier)
	}
	b.entries[identifier] = factory
	return b, nil
}

// RegisterIfUnknown registers identifier only if nothing is registered for it yet; it never
// errors, mirroring the Java builder's convenience method used during version-negotiation
// glue when two sources might race to register the same deployment-specific kind.
func (b *Builder) RegisterIfUnknown(identifier string, factory DecoderFactory) *Builder {
	if _, exists := b.entries[identifier]; !exists {
		b.entries[identifier] = factory
	}
	return b
}

// Remove unregisters identifier unconditionally.
func (b *Builder) Remove(identifier string) *Builder {
	delete(b.entries, identifier)
	return b
}

// RemoveIfKnown unregisters identifier only if it is currently registered.
func (b *Builder) RemoveIfKnown(identifier string) *Builder {
	if _, exists := b.entries[identifier]; exists {
		delete(b.entries, identifier)
	}
	return b
}

// IfKnown invokes fn with the existing factory for identifier if one is registered.
func (b *Builder) IfKnown(identifier string, fn func(DecoderFactory)) *Builder {
	if f, exists := b.entries[identifier]; exists {
		fn(f)
	}
	return b
}

// IfUnknown invokes fn if identifier is not currently registered.
func (b *Builder) IfUnknown(identifier string, fn func()) *Builder {
	if _, exists := b.entries[identifier]; !exists {
		fn()
	}
	return b
}

// IsKnown reports whether identifier is currently registered in this builder.
func (b *Builder) IsKnown(identifier string) bool {
	_, exists := b.entries[identifier]
	return exists
}

// IsEmpty reports whether the builder currently has no registrations.
func (b *Builder) IsEmpty() bool { return len(b.entries) == 0 }

// GetSize returns the number of registrations currently in the builder.
func (b *Builder) GetSize() int { return len(b.entries) }

// Clear removes every registration from the builder.
func (b *Builder) Clear() *Builder {
	b.entries = make(map[string]DecoderFactory)
	return b
}

// Build produces an immutable Registry snapshotting the builder's current entries. The
// builder remains usable afterward; subsequent mutations do not affect the built Registry.
func (b *Builder) Build() *Registry {
	snapshot := make(map[string]DecoderFactory, len(b.entries))
	for k, v := range b.entries {
		snapshot[k] = v
	}
	return &Registry{byIdentifier: snapshot}
}
