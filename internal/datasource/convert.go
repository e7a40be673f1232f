package datasource

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/grolu/credcache/internal/types"
)

var (
	secretBindingGVR = schema.GroupVersionResource{
		Group: "core.gardener.cloud", Version: "v1beta1", Resource: "secretbindings",
	}
	quotaGVR = schema.GroupVersionResource{
		Group: "core.gardener.cloud", Version: "v1beta1", Resource: "quotas",
	}
	credentialsBindingGVR = schema.GroupVersionResource{
		Group: "security.gardener.cloud", Version: "v1alpha1", Resource: "credentialsbindings",
	}
	workloadIdentityGVR = schema.GroupVersionResource{
		Group: "security.gardener.cloud", Version: "v1alpha1", Resource: "workloadidentities",
	}
)

// safeNestedString returns the string at the given field path, or "" if
// missing or the wrong type.
func safeNestedString(obj map[string]interface{}, fields ...string) string {
	if obj == nil {
		return ""
	}
	val, found, err := unstructured.NestedString(obj, fields...)
	if err != nil || !found {
		return ""
	}
	return val
}

// safeNestedSlice returns the slice at the given field path, or nil.
func safeNestedSlice(obj map[string]interface{}, fields ...string) []interface{} {
	if obj == nil {
		return nil
	}
	val, found, err := unstructured.NestedSlice(obj, fields...)
	if err != nil || !found {
		return nil
	}
	return val
}

// safeNestedStringSlice returns the []string at the given field path, or nil.
func safeNestedStringSlice(obj map[string]interface{}, fields ...string) []string {
	if obj == nil {
		return nil
	}
	val, found, err := unstructured.NestedStringSlice(obj, fields...)
	if err != nil || !found {
		return nil
	}
	return val
}

func metaOf(obj *unstructured.Unstructured) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Namespace:       obj.GetNamespace(),
		Name:            obj.GetName(),
		UID:             obj.GetUID(),
		ResourceVersion: obj.GetResourceVersion(),
		Labels:          obj.GetLabels(),
		Annotations:     obj.GetAnnotations(),
	}
}

// quotaRefs parses a list of {name, namespace} quota references. Entries
// without a name are dropped.
func quotaRefs(obj map[string]interface{}, fields ...string) []corev1.ObjectReference {
	var refs []corev1.ObjectReference
	for _, raw := range safeNestedSlice(obj, fields...) {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := safeNestedString(m, "name")
		if name == "" {
			continue
		}
		refs = append(refs, corev1.ObjectReference{
			Name:      name,
			Namespace: safeNestedString(m, "namespace"),
		})
	}
	return refs
}

func toSecretBinding(obj *unstructured.Unstructured) (types.SecretBinding, error) {
	providerType := safeNestedString(obj.Object, "provider", "type")
	if providerType == "" {
		return types.SecretBinding{}, fmt.Errorf("secretbinding %s/%s: missing provider.type", obj.GetNamespace(), obj.GetName())
	}
	secretName := safeNestedString(obj.Object, "secretRef", "name")
	if secretName == "" {
		return types.SecretBinding{}, fmt.Errorf("secretbinding %s/%s: missing secretRef.name", obj.GetNamespace(), obj.GetName())
	}
	secretNamespace := safeNestedString(obj.Object, "secretRef", "namespace")
	if secretNamespace == "" {
		secretNamespace = obj.GetNamespace()
	}
	return types.SecretBinding{
		TypeMeta:   metav1.TypeMeta{APIVersion: "core.gardener.cloud/v1beta1", Kind: string(types.KindSecretBinding)},
		ObjectMeta: metaOf(obj),
		Provider:   types.Provider{Type: providerType},
		SecretRef:  corev1.SecretReference{Name: secretName, Namespace: secretNamespace},
		Quotas:     quotaRefs(obj.Object, "quotas"),
	}, nil
}

func toCredentialsBinding(obj *unstructured.Unstructured) (types.CredentialsBinding, error) {
	providerType := safeNestedString(obj.Object, "provider", "type")
	if providerType == "" {
		return types.CredentialsBinding{}, fmt.Errorf("credentialsbinding %s/%s: missing provider.type", obj.GetNamespace(), obj.GetName())
	}
	refKind := safeNestedString(obj.Object, "credentialsRef", "kind")
	if refKind != string(types.KindSecret) && refKind != string(types.KindWorkloadIdentity) {
		return types.CredentialsBinding{}, fmt.Errorf("credentialsbinding %s/%s: credentialsRef.kind %q is not Secret or WorkloadIdentity", obj.GetNamespace(), obj.GetName(), refKind)
	}
	refName := safeNestedString(obj.Object, "credentialsRef", "name")
	if refName == "" {
		return types.CredentialsBinding{}, fmt.Errorf("credentialsbinding %s/%s: missing credentialsRef.name", obj.GetNamespace(), obj.GetName())
	}
	refNamespace := safeNestedString(obj.Object, "credentialsRef", "namespace")
	if refNamespace == "" {
		refNamespace = obj.GetNamespace()
	}
	return types.CredentialsBinding{
		TypeMeta:   metav1.TypeMeta{APIVersion: "security.gardener.cloud/v1alpha1", Kind: string(types.KindCredentialsBinding)},
		ObjectMeta: metaOf(obj),
		Provider:   types.Provider{Type: providerType},
		CredentialsRef: corev1.ObjectReference{
			APIVersion: safeNestedString(obj.Object, "credentialsRef", "apiVersion"),
			Kind:       refKind,
			Name:       refName,
			Namespace:  refNamespace,
		},
		Quotas: quotaRefs(obj.Object, "quotas"),
	}, nil
}

func toWorkloadIdentity(obj *unstructured.Unstructured) (types.WorkloadIdentity, error) {
	if obj.GetName() == "" {
		return types.WorkloadIdentity{}, fmt.Errorf("workloadidentity in %s: missing name", obj.GetNamespace())
	}
	return types.WorkloadIdentity{
		TypeMeta:   metav1.TypeMeta{APIVersion: "security.gardener.cloud/v1alpha1", Kind: string(types.KindWorkloadIdentity)},
		ObjectMeta: metaOf(obj),
		Audiences:  safeNestedStringSlice(obj.Object, "spec", "audiences"),
	}, nil
}

func toQuota(obj *unstructured.Unstructured) (types.Quota, error) {
	if obj.GetName() == "" {
		return types.Quota{}, fmt.Errorf("quota in %s: missing name", obj.GetNamespace())
	}
	return types.Quota{
		TypeMeta:   metav1.TypeMeta{APIVersion: "core.gardener.cloud/v1beta1", Kind: string(types.KindQuota)},
		ObjectMeta: metaOf(obj),
		Scope: corev1.ObjectReference{
			APIVersion: safeNestedString(obj.Object, "spec", "scope", "apiVersion"),
			Kind:       safeNestedString(obj.Object, "spec", "scope", "kind"),
		},
	}, nil
}

func fromCoreSecret(sec *corev1.Secret) types.Secret {
	return types.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: string(types.KindSecret)},
		ObjectMeta: sec.ObjectMeta,
		Data:       sec.Data,
	}
}
