package util

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8stypes "k8s.io/apimachinery/pkg/types"
)

// Key returns the "namespace/name" key identifying a resource within one
// store mapping.
func Key(namespace, name string) string {
	return k8stypes.NamespacedName{Namespace: namespace, Name: name}.String()
}

// ObjectKey is Key applied to a resource's metadata.
func ObjectKey(obj metav1.Object) string {
	return Key(obj.GetNamespace(), obj.GetName())
}
