// Package classify answers which provider types are infrastructure or DNS
// providers and which credentials are shared, based on static service
// configuration. Only the store's binding views consume it.
package classify

import (
	"github.com/grolu/credcache/internal/types"
)

// SharedLabel marks a credential as shared/well-known. Shared credentials
// are excluded from the DNS binding view.
const SharedLabel = "credentials.shoot.gardener.cloud/shared"

// Config lists the currently configured provider types.
type Config struct {
	// InfrastructureProviderTypes are provider types backing infrastructure
	// (e.g. aws, gcp, azure).
	InfrastructureProviderTypes []string

	// DNSProviderTypes are provider types backing DNS (e.g. aws-route53,
	// cloudflare-dns).
	DNSProviderTypes []string
}

// Classifier implements store.Classifier from a Config.
type Classifier struct {
	infrastructure map[string]struct{}
	dns            map[string]struct{}
}

// New builds a Classifier from the configured provider-type lists.
func New(cfg Config) *Classifier {
	c := &Classifier{
		infrastructure: make(map[string]struct{}, len(cfg.InfrastructureProviderTypes)),
		dns:            make(map[string]struct{}, len(cfg.DNSProviderTypes)),
	}
	for _, t := range cfg.InfrastructureProviderTypes {
		c.infrastructure[t] = struct{}{}
	}
	for _, t := range cfg.DNSProviderTypes {
		c.dns[t] = struct{}{}
	}
	return c
}

// IsInfrastructureProvider reports whether the provider type is configured
// as an infrastructure provider.
func (c *Classifier) IsInfrastructureProvider(providerType string) bool {
	_, ok := c.infrastructure[providerType]
	return ok
}

// IsDNSProvider reports whether the provider type is configured as a DNS
// provider.
func (c *Classifier) IsDNSProvider(providerType string) bool {
	_, ok := c.dns[providerType]
	return ok
}

// IsSharedCredential reports whether the binding carries the shared marker
// label.
func (c *Classifier) IsSharedCredential(binding types.Binding) bool {
	return bindingLabels(binding)[SharedLabel] == "true"
}

// bindingLabels returns the label set of any member of the binding union.
func bindingLabels(binding types.Binding) map[string]string {
	switch b := binding.(type) {
	case types.SecretBinding:
		return b.Labels
	case types.CredentialsBinding:
		return b.Labels
	case types.VirtualBinding:
		return b.Labels
	default:
		return nil
	}
}
