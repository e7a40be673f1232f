package store

import (
	"strings"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/grolu/credcache/internal/capability"
	"github.com/grolu/credcache/internal/types"
	"github.com/grolu/credcache/internal/util"
)

// EventType categorizes a store change.
type EventType string

const (
	// EventUpsert is a single-resource insert/replace, including the
	// re-synthesis of the resource's virtual bindings.
	EventUpsert EventType = "upsert"
	// EventReplace is a full snapshot replacement.
	EventReplace EventType = "replace"
	// EventReset is a full clear with nothing put back.
	EventReset EventType = "reset"
)

// Event describes a change to the store. Kind and Key are set for upserts
// and empty for replace/reset.
type Event struct {
	Type EventType  `json:"type"`
	Kind types.Kind `json:"kind,omitempty"`
	Key  string     `json:"key,omitempty"`
}

// OnChangeFunc is called after a mutation has fully completed, outside the
// store lock.
type OnChangeFunc func(event Event)

// Store is a concurrent-safe normalized cache of credential resources.
// Mutations are serialized by the caller (one fetch or mutation response at
// a time); the lock exists so readers may run from other goroutines.
type Store struct {
	mu                  sync.RWMutex
	secretBindings      map[string]types.SecretBinding
	secrets             map[string]types.Secret
	credentialsBindings map[string]types.Binding
	workloadIdentities  map[string]types.WorkloadIdentity
	quotas              map[string]types.Quota
	onChange            OnChangeFunc
}

// New creates an empty Store with an optional change callback.
func New(onChange OnChangeFunc) *Store {
	s := &Store{onChange: onChange}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.secretBindings = make(map[string]types.SecretBinding)
	s.secrets = make(map[string]types.Secret)
	s.credentialsBindings = make(map[string]types.Binding)
	s.workloadIdentities = make(map[string]types.WorkloadIdentity)
	s.quotas = make(map[string]types.Quota)
}

func (s *Store) emit(event Event) {
	if s.onChange != nil {
		s.onChange(event)
	}
}

// Reset clears all five mappings.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.emit(Event{Type: EventReset})
}

// ReplaceAll clears the store and repopulates it from the snapshot: reset,
// then every upsert, then virtual-binding synthesis for every secret and
// workload identity, all under one critical section so no reader observes
// authoritative records without their virtual companions. A nil snapshot is
// an empty one.
func (s *Store) ReplaceAll(snap *types.Snapshot) {
	if snap == nil {
		snap = &types.Snapshot{}
	}

	s.mu.Lock()
	s.resetLocked()
	for _, b := range snap.SecretBindings {
		s.secretBindings[b.BindingKey()] = b
	}
	for _, sec := range snap.Secrets {
		s.secrets[util.ObjectKey(&sec)] = sec
	}
	for _, b := range snap.CredentialsBindings {
		s.credentialsBindings[b.BindingKey()] = b
	}
	for _, wi := range snap.WorkloadIdentities {
		s.workloadIdentities[util.ObjectKey(&wi)] = wi
	}
	for _, q := range snap.Quotas {
		s.quotas[util.ObjectKey(&q)] = q
	}
	for _, sec := range snap.Secrets {
		s.synthesizeLocked(types.KindSecret, sec.ObjectMeta)
	}
	for _, wi := range snap.WorkloadIdentities {
		s.synthesizeLocked(types.KindWorkloadIdentity, wi.ObjectMeta)
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventReplace})
}

// UpsertSecretBinding inserts or replaces a secret binding.
func (s *Store) UpsertSecretBinding(b types.SecretBinding) {
	s.mu.Lock()
	s.secretBindings[b.BindingKey()] = b
	s.mu.Unlock()

	s.emit(Event{Type: EventUpsert, Kind: types.KindSecretBinding, Key: b.BindingKey()})
}

// UpsertCredentialsBinding inserts or replaces an explicit credentials
// binding. Virtual records are untouched; their keys cannot collide with
// explicit ones.
func (s *Store) UpsertCredentialsBinding(b types.CredentialsBinding) {
	s.mu.Lock()
	s.credentialsBindings[b.BindingKey()] = b
	s.mu.Unlock()

	s.emit(Event{Type: EventUpsert, Kind: types.KindCredentialsBinding, Key: b.BindingKey()})
}

// UpsertSecret inserts or replaces a secret and re-synthesizes its virtual
// bindings from its current labels in the same critical section.
func (s *Store) UpsertSecret(sec types.Secret) {
	key := util.ObjectKey(&sec)

	s.mu.Lock()
	s.secrets[key] = sec
	s.synthesizeLocked(types.KindSecret, sec.ObjectMeta)
	s.mu.Unlock()

	s.emit(Event{Type: EventUpsert, Kind: types.KindSecret, Key: key})
}

// UpsertWorkloadIdentity inserts or replaces a workload identity and
// re-synthesizes its virtual bindings, exactly like UpsertSecret.
func (s *Store) UpsertWorkloadIdentity(wi types.WorkloadIdentity) {
	key := util.ObjectKey(&wi)

	s.mu.Lock()
	s.workloadIdentities[key] = wi
	s.synthesizeLocked(types.KindWorkloadIdentity, wi.ObjectMeta)
	s.mu.Unlock()

	s.emit(Event{Type: EventUpsert, Kind: types.KindWorkloadIdentity, Key: key})
}

/// Quotas have no single-resource upsert: they only change through
// ReplaceAll. Out-of-band quota changes are picked up by the next full
// refresh.

// synthesizeLocked refreshes the virtual bindings of one owner. It first
// removes every virtual record under the owner's key or key prefix whose
// owner kind matches, then inserts one VirtualBinding per capability label
// currently on the owner. Explicit bindings sharing the owner's
/// namespace/name survive: the removal matches on the VirtualBinding type and
// owner kind, not on the key alone. Idempotent for an unchanged owner.
func (s *Store) synthesizeLocked(ownerKind types.Kind, owner metav1.ObjectMeta) {
	ownerKey := util.Key(owner.Namespace, owner.Name)
	prefix := ownerKey + "/"

	for key, rec := range s.credentialsBindings {
		if key != ownerKey && !strings.HasPrefix(key, prefix) {
			continue
		}
		vb, ok := rec.(types.VirtualBinding)
		if !ok || vb.OwnerKind != ownerKind {
			continue
		}
		delete(s.credentialsBindings, key)
	}

	for _, tag := range capability.FromLabels(owner.Labels) {
		vb := types.NewVirtualBinding(ownerKind, owner, tag)
		s.credentialsBindings[vb.BindingKey()] = vb
	}
}

// GetSecret looks up a secret by namespace and name.
func (s *Store) GetSecret(namespace, name string) (types.Secret, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.secrets[util.Key(namespace, name)]
	return sec, ok
}

// GetWorkloadIdentity looks up a workload identity by namespace and name.
func (s *Store) GetWorkloadIdentity(namespace, name string) (types.WorkloadIdentity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wi, ok := s.workloadIdentities[util.Key(namespace, name)]
	return wi, ok
}

// GetQuota looks up a quota by namespace and name.
func (s *Store) GetQuota(namespace, name string) (types.Quota, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotas[util.Key(namespace, name)]
	return q, ok
}

// Counts reports the size of each mapping. CredentialsBindings counts only
// explicit records; synthesized ones are reported as VirtualBindings.
type Counts struct {
	SecretBindings      int `json:"secretBindings"`
	Secrets             int `json:"secrets"`
	CredentialsBindings int `json:"credentialsBindings"`
	VirtualBindings     int `json:"virtualBindings"`
	WorkloadIdentities  int `json:"workloadIdentities"`
	Quotas              int `json:"quotas"`
}

// Count returns the current mapping sizes.
func (s *Store) Count() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := Counts{
		SecretBindings:     len(s.secretBindings),
		Secrets:            len(s.secrets),
		WorkloadIdentities: len(s.workloadIdentities),
		Quotas:             len(s.quotas),
	}
	for _, rec := range s.credentialsBindings {
		if _, ok := rec.(types.VirtualBinding); ok {
			counts.VirtualBindings++
		} else {
			counts.CredentialsBindings++
		}
	}
	return counts
}
