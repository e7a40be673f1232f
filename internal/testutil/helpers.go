// Package testutil provides shared test helpers for the credcache project.
// Import this in test files to avoid duplicating fixture loading and record
// builders.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	k8stypes "k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/yaml"

	"github.com/grolu/credcache/internal/capability"
	"github.com/grolu/credcache/internal/types"
)

// LoadFixture reads a YAML file and returns it as an Unstructured object.
// Fails the test immediately if the file can't be read or parsed.
func LoadFixture(t *testing.T, path string) *unstructured.Unstructured {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read fixture %s", path)
	obj := &unstructured.Unstructured{}
	require.NoError(t, yaml.Unmarshal(data, &obj.Object), "failed to parse fixture %s", path)
	return obj
}

// CapabilityLabels builds a label set declaring the given provider
// capabilities.
func CapabilityLabels(providerTypes ...string) map[string]string {
	labels := make(map[string]string, len(providerTypes))
	for _, t := range providerTypes {
		labels[capability.LabelPrefix+t] = "true"
	}
	return labels
}

// MakeSecret creates a test Secret with the given capability labels.
func MakeSecret(uid, namespace, name string, labels map[string]string) types.Secret {
	return types.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: string(types.KindSecret)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			UID:       k8stypes.UID(uid),
			Labels:    labels,
		},
	}
}

// MakeWorkloadIdentity creates a test WorkloadIdentity with the given
// capability labels.
func MakeWorkloadIdentity(uid, namespace, name string, labels map[string]string) types.WorkloadIdentity {
	return types.WorkloadIdentity{
		TypeMeta: metav1.TypeMeta{APIVersion: "security.gardener.cloud/v1alpha1", Kind: string(types.KindWorkloadIdentity)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace:       namespace,
			Name:            name,
			UID:             k8stypes.UID(uid),
			ResourceVersion: "1",
			Labels:          labels,
		},
	}
}

// MakeSecretBinding creates a test SecretBinding.
func MakeSecretBinding(uid, namespace, name, providerType, secretName string) types.SecretBinding {
	return types.SecretBinding{
		TypeMeta: metav1.TypeMeta{APIVersion: "core.gardener.cloud/v1beta1", Kind: string(types.KindSecretBinding)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			UID:       k8stypes.UID(uid),
		},
		Provider:  types.Provider{Type: providerType},
		SecretRef: corev1.SecretReference{Namespace: namespace, Name: secretName},
	}
}

// MakeCredentialsBinding creates a test explicit CredentialsBinding
// referencing a Secret or WorkloadIdentity.
func MakeCredentialsBinding(uid, namespace, name, providerType string, refKind types.Kind, refName string) types.CredentialsBinding {
	return types.CredentialsBinding{
		TypeMeta: metav1.TypeMeta{APIVersion: "security.gardener.cloud/v1alpha1", Kind: string(types.KindCredentialsBinding)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			UID:       k8stypes.UID(uid),
		},
		Provider: types.Provider{Type: providerType},
		CredentialsRef: corev1.ObjectReference{
			Kind:      string(refKind),
			Namespace: namespace,
			Name:      refName,
		},
	}
}

// MakeQuota creates a test Quota.
func MakeQuota(uid, namespace, name string) types.Quota {
	return types.Quota{
		TypeMeta: metav1.TypeMeta{APIVersion: "core.gardener.cloud/v1beta1", Kind: string(types.KindQuota)},
		ObjectMeta: metav1.ObjectMeta{
			Namespace: namespace,
			Name:      name,
			UID:       k8stypes.UID(uid),
		},
	}
}
