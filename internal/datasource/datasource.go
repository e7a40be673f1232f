package datasource

import (
	"context"

	"github.com/grolu/credcache/internal/types"
)

// BindingParams describes a credentials binding to create or update. The
// records the store ends up holding always come from the backend's response,
// never from these parameters.
type BindingParams struct {
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	ProviderType string `json:"providerType"`

	// CredentialsKind is types.KindSecret or types.KindWorkloadIdentity.
	CredentialsKind      types.Kind `json:"credentialsKind"`
	CredentialsNamespace string     `json:"credentialsNamespace"`
	CredentialsName      string     `json:"credentialsName"`

	// SecretData, when non-nil, asks the backend to create or update the
	// referenced Secret together with the binding.
	SecretData map[string][]byte `json:"secretData,omitempty"`

	// SecretLabels are applied to that Secret (capability labels included).
	SecretLabels map[string]string `json:"secretLabels,omitempty"`
}

// BindingRef identifies a credentials binding to delete.
type BindingRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// BindingResult carries the authoritative records returned by a create or
// update. Secret is nil when the call did not touch one.
type BindingResult struct {
	Binding *types.CredentialsBinding
	Secret  *types.Secret
}

// Interface is the data-source contract the cache core consumes. All calls
// may fail with a *TransportError or *ValidationError.
type Interface interface {
	// Fetch returns one consistent snapshot of all five collections for the
	// namespace scope.
	Fetch(ctx context.Context, namespace string) (*types.Snapshot, error)

	// CreateBinding persists a new credentials binding (and optionally its
	// secret) and returns the authoritative records.
	CreateBinding(ctx context.Context, params BindingParams) (*BindingResult, error)

	// UpdateBinding persists changes to an existing credentials binding
	// (and optionally its secret) and returns the authoritative records.
	UpdateBinding(ctx context.Context, params BindingParams) (*BindingResult, error)

	// DeleteBinding removes a credentials binding. Local cache consistency
	// after a delete is restored by a full re-fetch, not by this call.
	DeleteBinding(ctx context.Context, ref BindingRef) error
}
