// Package store holds the normalized in-memory cache of credential
// resources for one namespace scope: secret bindings, secrets, explicit
// credentials bindings, workload identities, and quotas, each keyed by
// "namespace/name".
//
// Secrets and workload identities that declare provider capabilities via
// labels are expanded into synthetic VirtualBinding records living alongside
// the explicit credentials bindings. Synthesis owns exactly the virtual
// records of one owner and never touches explicit bindings, even when they
// share the owner's namespace/name.
package store
