package types

// Snapshot is one full fetch of every resource collection for a namespace
// scope. Nil slices mean the collection was empty, never "keep prior data":
// a snapshot is only ever applied after a full reset.
type Snapshot struct {
	SecretBindings      []SecretBinding
	Secrets             []Secret
	CredentialsBindings []CredentialsBinding
	WorkloadIdentities  []WorkloadIdentity
	Quotas              []Quota
}
