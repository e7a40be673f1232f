package store

import (
	"sort"

	"github.com/grolu/credcache/internal/types"
)

// Classifier supplies the provider-type knowledge the binding views filter
// with. Implementations live outside the store (see internal/classify).
type Classifier interface {
	// IsInfrastructureProvider reports whether the provider type is a
	// configured infrastructure provider.
	IsInfrastructureProvider(providerType string) bool

	// IsDNSProvider reports whether the provider type is a configured DNS
	// provider.
	IsDNSProvider(providerType string) bool

	// IsSharedCredential reports whether the binding points at a shared,
	// well-known credential. Shared credentials are excluded from the DNS
	// view.
	IsSharedCredential(binding types.Binding) bool
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make([]T, 0, len(keys))
	for _, key := range keys {
		values = append(values, m[key])
	}
	return values
}

// AllBindings returns every binding: secret bindings first, then the
// credentials-bindings mapping (explicit and virtual records interleaved),
// each group in key order. Recomputed on every call.
func (s *Store) AllBindings() []types.Binding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Binding, 0, len(s.secretBindings)+len(s.credentialsBindings))
	for _, b := range sortedValues(s.secretBindings) {
		result = append(result, b)
	}
	result = append(result, sortedValues(s.credentialsBindings)...)
	return result
}

// ExplicitCredentialsBindings returns only the explicit CredentialsBinding
// records, leaving out everything synthesized.
func (s *Store) ExplicitCredentialsBindings() []types.CredentialsBinding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []types.CredentialsBinding
	for _, rec := range sortedValues(s.credentialsBindings) {
		if b, ok := rec.(types.CredentialsBinding); ok {
			result = append(result, b)
		}
	}
	return result
}

// InfrastructureBindings returns the bindings whose provider type is a
// configured infrastructure provider.
func (s *Store) InfrastructureBindings(classifier Classifier) []types.Binding {
	var result []types.Binding
	for _, b := range s.AllBindings() {
		if classifier.IsInfrastructureProvider(b.ProviderType()) {
			result = append(result, b)
		}
	}
	return result
}

// DNSBindings returns the bindings whose provider type is a configured DNS
// provider, excluding shared credentials.
func (s *Store) DNSBindings(classifier Classifier) []types.Binding {
	var result []types.Binding
	for _, b := range s.AllBindings() {
		if !classifier.IsDNSProvider(b.ProviderType()) {
			continue
		}
		if classifier.IsSharedCredential(b) {
			continue
		}
		result = append(result, b)
	}
	return result
}
