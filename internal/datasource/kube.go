package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/grolu/credcache/internal/types"
)

// KubeSource implements Interface against a Kubernetes cluster: Gardener
// resources through the dynamic client, core/v1 Secrets through the typed
// clientset.
type KubeSource struct {
	logger  *zap.Logger
	client  kubernetes.Interface
	dynamic dynamic.Interface
}

// NewKubeSource creates a KubeSource.
func NewKubeSource(logger *zap.Logger, client kubernetes.Interface, dyn dynamic.Interface) *KubeSource {
	return &KubeSource{
		logger:  logger.Named("datasource"),
		client:  client,
		dynamic: dyn,
	}
}

// Fetch lists all five collections for the namespace. The first failing
// list or malformed item aborts the whole fetch; the caller must not apply
// anything from a failed fetch.
func (s *KubeSource) Fetch(ctx context.Context, namespace string) (*types.Snapshot, error) {
	snap := &types.Snapshot{}

	bindingList, err := s.dynamic.Resource(secretBindingGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &TransportError{Op: "list secretbindings", Err: err}
	}
	for i := range bindingList.Items {
		b, err := toSecretBinding(&bindingList.Items[i])
		if err != nil {
			return nil, &ValidationError{Resource: "secretbindings", Err: err}
		}
		snap.SecretBindings = append(snap.SecretBindings, b)
	}

	secretList, err := s.client.CoreV1().Secrets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &TransportError{Op: "list secrets", Err: err}
	}
	for i := range secretList.Items {
		snap.Secrets = append(snap.Secrets, fromCoreSecret(&secretList.Items[i]))
	}

	credList, err := s.dynamic.Resource(credentialsBindingGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &TransportError{Op: "list credentialsbindings", Err: err}
	}
	for i := range credList.Items {
		b, err := toCredentialsBinding(&credList.Items[i])
		if err != nil {
			return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
		}
		snap.CredentialsBindings = append(snap.CredentialsBindings, b)
	}

	wiList, err := s.dynamic.Resource(workloadIdentityGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &TransportError{Op: "list workloadidentities", Err: err}
	}
	for i := range wiList.Items {
		wi, err := toWorkloadIdentity(&wiList.Items[i])
		if err != nil {
			return nil, &ValidationError{Resource: "workloadidentities", Err: err}
		}
		snap.WorkloadIdentities = append(snap.WorkloadIdentities, wi)
	}

	quotaList, err := s.dynamic.Resource(quotaGVR).Namespace(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, &TransportError{Op: "list quotas", Err: err}
	}
	for i := range quotaList.Items {
		q, err := toQuota(&quotaList.Items[i])
		if err != nil {
			return nil, &ValidationError{Resource: "quotas", Err: err}
		}
		snap.Quotas = append(snap.Quotas, q)
	}

	s.logger.Debug("Fetched snapshot",
		zap.String("namespace", namespace),
		zap.Int("secret_bindings", len(snap.SecretBindings)),
		zap.Int("secrets", len(snap.Secrets)),
		zap.Int("credentials_bindings", len(snap.CredentialsBindings)),
		zap.Int("workload_identities", len(snap.WorkloadIdentities)),
		zap.Int("quotas", len(snap.Quotas)),
	)
	return snap, nil
}

func apiVersionForKind(kind types.Kind) string {
	if kind == types.KindSecret {
		return "v1"
	}
	return "security.gardener.cloud/v1alpha1"
}

func validateParams(params BindingParams) error {
	if params.Namespace == "" || params.Name == "" {
		return fmt.Errorf("binding namespace and name are required")
	}
	if params.CredentialsKind != types.KindSecret && params.CredentialsKind != types.KindWorkloadIdentity {
		return fmt.Errorf("credentials kind %q is not Secret or WorkloadIdentity", params.CredentialsKind)
	}
	if params.CredentialsName == "" {
		return fmt.Errorf("credentials name is required")
	}
	if params.ProviderType == "" {
		return fmt.Errorf("provider type is required")
	}
	return nil
}

func bindingObject(params BindingParams) *unstructured.Unstructured {
	refNamespace := params.CredentialsNamespace
	if refNamespace == "" {
		refNamespace = params.Namespace
	}
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "security.gardener.cloud/v1alpha1",
		"kind":       "CredentialsBinding",
		"metadata": map[string]interface{}{
			"namespace": params.Namespace,
			"name":      params.Name,
		},
		"provider": map[string]interface{}{
			"type": params.ProviderType,
		},
		"credentialsRef": map[string]interface{}{
			"apiVersion": apiVersionForKind(params.CredentialsKind),
			"kind":       string(params.CredentialsKind),
			"namespace":  refNamespace,
			"name":       params.CredentialsName,
		},
	}}
}

// CreateBinding creates the binding (and, when secret data is supplied, the
// referenced Secret first) and returns what the server stored.
func (s *KubeSource) CreateBinding(ctx context.Context, params BindingParams) (*BindingResult, error) {
	if err := validateParams(params); err != nil {
		return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
	}

	result := &BindingResult{}

	if params.SecretData != nil && params.CredentialsKind == types.KindSecret {
		namespace := params.CredentialsNamespace
		if namespace == "" {
			namespace = params.Namespace
		}
		created, err := s.client.CoreV1().Secrets(namespace).Create(ctx, &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: namespace,
				Name:      params.CredentialsName,
				Labels:    params.SecretLabels,
			},
			Data: params.SecretData,
		}, metav1.CreateOptions{})
		if err != nil {
			return nil, &TransportError{Op: "create secret", Err: err}
		}
		sec := fromCoreSecret(created)
		result.Secret = &sec
	}

	created, err := s.dynamic.Resource(credentialsBindingGVR).Namespace(params.Namespace).Create(ctx, bindingObject(params), metav1.CreateOptions{})
	if err != nil {
		return nil, &TransportError{Op: "create credentialsbinding", Err: err}
	}
	binding, err := toCredentialsBinding(created)
	if err != nil {
		return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
	}
	result.Binding = &binding

	s.logger.Info("Created credentials binding",
		zap.String("namespace", binding.Namespace),
		zap.String("name", binding.Name),
		zap.String("provider", binding.Provider.Type),
	)
	return result, nil
}

// UpdateBinding updates the referenced Secret's data and labels when secret
// data is supplied, refreshes the binding's provider type, and returns the
// server's view of both.
func (s *KubeSource) UpdateBinding(ctx context.Context, params BindingParams) (*BindingResult, error) {
	if err := validateParams(params); err != nil {
		return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
	}

	result := &BindingResult{}

	if params.SecretData != nil && params.CredentialsKind == types.KindSecret {
		namespace := params.CredentialsNamespace
		if namespace == "" {
			namespace = params.Namespace
		}
		existing, err := s.client.CoreV1().Secrets(namespace).Get(ctx, params.CredentialsName, metav1.GetOptions{})
		if err != nil {
			return nil, &TransportError{Op: "get secret", Err: err}
		}
		existing.Data = params.SecretData
		if params.SecretLabels != nil {
			existing.Labels = params.SecretLabels
		}
		updated, err := s.client.CoreV1().Secrets(namespace).Update(ctx, existing, metav1.UpdateOptions{})
		if err != nil {
			return nil, &TransportError{Op: "update secret", Err: err}
		}
		sec := fromCoreSecret(updated)
		result.Secret = &sec
	}

	existing, err := s.dynamic.Resource(credentialsBindingGVR).Namespace(params.Namespace).Get(ctx, params.Name, metav1.GetOptions{})
	if err != nil {
		return nil, &TransportError{Op: "get credentialsbinding", Err: err}
	}
	if err := unstructured.SetNestedField(existing.Object, params.ProviderType, "provider", "type"); err != nil {
		return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
	}
	updated, err := s.dynamic.Resource(credentialsBindingGVR).Namespace(params.Namespace).Update(ctx, existing, metav1.UpdateOptions{})
	if err != nil {
		return nil, &TransportError{Op: "update credentialsbinding", Err: err}
	}
	binding, err := toCredentialsBinding(updated)
	if err != nil {
		return nil, &ValidationError{Resource: "credentialsbindings", Err: err}
	}
	result.Binding = &binding

	s.logger.Info("Updated credentials binding",
		zap.String("namespace", binding.Namespace),
		zap.String("name", binding.Name),
	)
	return result, nil
}

// DeleteBinding removes the binding from the cluster.
func (s *KubeSource) DeleteBinding(ctx context.Context, ref BindingRef) error {
	if err := s.dynamic.Resource(credentialsBindingGVR).Namespace(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{}); err != nil {
		return &TransportError{Op: "delete credentialsbinding", Err: err}
	}
	s.logger.Info("Deleted credentials binding",
		zap.String("namespace", ref.Namespace),
		zap.String("name", ref.Name),
	)
	return nil
}
