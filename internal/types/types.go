package types

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"

	"github.com/grolu/credcache/internal/util"
)

// Kind identifies one of the closed set of record kinds held by the store.
type Kind string

const (
	KindSecret             Kind = "Secret"
	KindWorkloadIdentity   Kind = "WorkloadIdentity"
	KindSecretBinding      Kind = "SecretBinding"
	KindCredentialsBinding Kind = "CredentialsBinding"
	KindQuota              Kind = "Quota"
)

// Provider declares the provider type a binding grants access to.
type Provider struct {
	Type string `json:"type"`
}

// Secret is an authoritative credential payload carrier. Provider
// capabilities are declared through its labels.
type Secret struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Data              map[string][]byte `json:"data,omitempty"`
}

// WorkloadIdentity is an authoritative identity resource. Like Secrets,
// provider capabilities are declared through its labels; its resource
// version distinguishes revisions of the same identity.
type WorkloadIdentity struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Audiences         []string `json:"audiences,omitempty"`
}

// SecretBinding binds a provider type to a Secret.
type SecretBinding struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Provider          Provider                 `json:"provider"`
	SecretRef         corev1.SecretReference   `json:"secretRef"`
	Quotas            []corev1.ObjectReference `json:"quotas,omitempty"`
}

// CredentialsBinding binds a provider type to either a Secret or a
// WorkloadIdentity, referenced by CredentialsRef.
type CredentialsBinding struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Provider          Provider                 `json:"provider"`
	CredentialsRef    corev1.ObjectReference   `json:"credentialsRef"`
	Quotas            []corev1.ObjectReference `json:"quotas,omitempty"`
}

// VirtualBinding is a derived record standing in for one provider capability
// declared via labels on a Secret or WorkloadIdentity. It is never persisted
// and never created outside NewVirtualBinding; its lifetime is bound to the
// owner it was synthesized from.
type VirtualBinding struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	OwnerKind         Kind                   `json:"ownerKind"`
	Provider          Provider               `json:"provider"`
	CredentialsRef    corev1.ObjectReference `json:"credentialsRef"`
}

// Quota is an authoritative, independent resource with no derived form.
type Quota struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata"`
	Scope             corev1.ObjectReference `json:"scope,omitempty"`
}

// NewVirtualBinding derives the virtual binding for one capability of the
// given owner. It is the only way virtual records come into existence, so
// every virtual key is guaranteed to carry the "/"+capability suffix that
// keeps it disjoint from explicit binding keys, and every virtual UID the
// "-"+capability suffix.
func NewVirtualBinding(ownerKind Kind, owner metav1.ObjectMeta, capability string) VirtualBinding {
	return VirtualBinding{
		TypeMeta: metav1.TypeMeta{Kind: string(ownerKind)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: owner.Namespace,
			Name:      owner.Name,
			UID:       k8stypes.UID(string(owner.UID) + "-" + capability),
			Labels:    owner.Labels,
		},
		OwnerKind: ownerKind,
		Provider:  Provider{Type: capability},
		CredentialsRef: corev1.ObjectReference{
			Kind:      string(ownerKind),
			Namespace: owner.Namespace,
			Name:      owner.Name,
			UID:       owner.UID,
		},
	}
}

// Binding is the closed union of records exposed through the binding views:
// explicit SecretBindings and CredentialsBindings, and synthesized
// VirtualBindings.
type Binding interface {
	// BindingKind discriminates the record. Virtual records report their
	// owner's kind (Secret or WorkloadIdentity), mirroring how they are
	// keyed and purged.
	BindingKind() Kind

	// BindingKey is the record's unique key within the bindings mapping.
	BindingKey() string

	// ProviderType is the provider type the binding declares.
	ProviderType() string
}

func (b SecretBinding) BindingKind() Kind    { return KindSecretBinding }
func (b SecretBinding) BindingKey() string   { return util.Key(b.Namespace, b.Name) }
func (b SecretBinding) ProviderType() string { return b.Provider.Type }

func (b CredentialsBinding) BindingKind() Kind    { return KindCredentialsBinding }
func (b CredentialsBinding) BindingKey() string   { return util.Key(b.Namespace, b.Name) }
func (b CredentialsBinding) ProviderType() string { return b.Provider.Type }

func (b VirtualBinding) BindingKind() Kind { return b.OwnerKind }
func (b VirtualBinding) BindingKey() string {
	return util.Key(b.Namespace, b.Name) + "/" + b.Provider.Type
}
func (b VirtualBinding) ProviderType() string { return b.Provider.Type }
