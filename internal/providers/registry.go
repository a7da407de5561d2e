package providers

type registryKey struct {
	endpointType string
	provider     string
}

// Registry maps (endpoint type, provider) pairs to adapters. Lookups
// are exact: there is no fallback provider for an endpoint type.
type Registry struct {
	adapters map[registryKey]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[registryKey]Adapter)}
}

func (r *Registry) Register(endpointType, provider string, adapter Adapter) {
	r.adapters[registryKey{endpointType: endpointType, provider: provider}] = adapter
}

// Resolve returns the adapter for the pair, or an UnsupportedStepError
// when none is registered.
func (r *Registry) Resolve(endpointType, provider string) (Adapter, error) {
	adapter, ok := r.adapters[registryKey{endpointType: endpointType, provider: provider}]
	if !ok {
		return nil, &UnsupportedStepError{EndpointType: endpointType, Provider: provider}
	}
	return adapter, nil
}
