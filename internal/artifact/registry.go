package artifact

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Constructor builds a layer instance from its serialized name and config.
type Constructor func(name string, cfg json.RawMessage) (Layer, error)

// Registry maps serialized layer class names to constructors. Registries are
// assembled once at startup and read-only afterwards; deserialization only
// ever looks classes up.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register binds a class name to a constructor.
func (r *Registry) Register(class string, ctor Constructor) {
	r.ctors[class] = ctor
}

// With returns a copy of the registry with the given overrides applied. The
// receiver is left untouched.
func (r *Registry) With(overrides map[string]Constructor) *Registry {
	out := NewRegistry()
	for class, ctor := range r.ctors {
		out.ctors[class] = ctor
	}
	for class, ctor := range overrides {
		out.ctors[class] = ctor
	}
	return out
}

// Construct instantiates a layer from its spec.
func (r *Registry) Construct(spec LayerSpec) (Layer, error) {
	ctor, ok := r.ctors[spec.ClassName]
	if !ok {
		return nil, fmt.Errorf("unknown layer class %q (layer %q)", spec.ClassName, spec.Name)
	}
	return ctor(spec.Name, spec.Config)
}

var (
	registryOnce    sync.Once
	builtinRegistry *Registry
	shimRegistry    *Registry
)

func initRegistries() {
	builtinRegistry = NewRegistry()
	builtinRegistry.Register("Dense", newDense)
	builtinRegistry.Register("Dropout", newDropout)
	builtinRegistry.Register("GlobalAveragePooling1D", newGlobalAveragePooling)
	builtinRegistry.Register("Bidirectional", newBidirectional)
	// "Attention" is deliberately absent here: artifacts referencing it were
	// saved against a non-standard layer and need the compatibility shim.
	shimRegistry = builtinRegistry.With(map[string]Constructor{
		"Attention": newCompatibleAttention,
	})
}

// Builtin returns the stock layer registry.
func Builtin() *Registry {
	registryOnce.Do(initRegistries)
	return builtinRegistry
}

// WithCompatibleAttention returns the stock registry with the reconstructed
// attention layer substituted for the "Attention" class.
func WithCompatibleAttention() *Registry {
	registryOnce.Do(initRegistries)
	return shimRegistry
}
