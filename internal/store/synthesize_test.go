package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	k8stypes "k8s.io/apimachinery/pkg/types"

	"github.com/grolu/credcache/internal/testutil"
	"github.com/grolu/credcache/internal/types"
)

func virtualKeys(s *Store) []string {
	var keys []string
	for _, b := range s.AllBindings() {
		if _, ok := b.(types.VirtualBinding); ok {
			keys = append(keys, b.BindingKey())
		}
	}
	return keys
}

func TestSynthesisIdempotent(t *testing.T) {
	s := New(nil)
	sec := testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws", "gcp"))

	s.UpsertSecret(sec)
	first := s.AllBindings()

	s.UpsertSecret(sec)
	second := s.AllBindings()

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"garden-dev/creds/aws", "garden-dev/creds/gcp"}, virtualKeys(s))
}

func TestSynthesisFollowsLabelChanges(t *testing.T) {
	s := New(nil)

	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws", "gcp")))
	assert.Equal(t, []string{"garden-dev/creds/aws", "garden-dev/creds/gcp"}, virtualKeys(s))

	// aws is gone, azure is new; the stale aws entry must not survive.
	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("gcp", "azure")))
	assert.Equal(t, []string{"garden-dev/creds/azure", "garden-dev/creds/gcp"}, virtualKeys(s))
}

func TestSynthesisRemovesAllOnEmptyLabels(t *testing.T) {
	s := New(nil)

	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws")))
	require.Len(t, virtualKeys(s), 1)

	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", nil))
	assert.Empty(t, virtualKeys(s))
	// The authoritative secret itself stays.
	_, ok := s.GetSecret("garden-dev", "creds")
	assert.True(t, ok)
}

func TestSynthesisIsKindScoped(t *testing.T) {
	s := New(nil)

	// Explicit binding and secret share namespace/name.
	explicit := testutil.MakeCredentialsBinding("cb-1", "garden-dev", "creds", "aws", types.KindSecret, "creds")
	s.UpsertCredentialsBinding(explicit)
	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws")))

	// Both must be present: the explicit record under garden-dev/creds and
	// the virtual one under garden-dev/creds/aws.
	byKey := make(map[string]types.Binding)
	for _, b := range s.AllBindings() {
		byKey[b.BindingKey()] = b
	}
	require.Contains(t, byKey, "garden-dev/creds")
	require.Contains(t, byKey, "garden-dev/creds/aws")
	assert.IsType(t, types.CredentialsBinding{}, byKey["garden-dev/creds"])
	assert.IsType(t, types.VirtualBinding{}, byKey["garden-dev/creds/aws"])

	// Re-synthesizing again must still not touch the explicit record.
	s.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", nil))
	explicitAfter := s.ExplicitCredentialsBindings()
	require.Len(t, explicitAfter, 1)
	assert.Equal(t, explicit, explicitAfter[0])
}

func TestWorkloadIdentitySynthesis(t *testing.T) {
	s := New(nil)
	wi := testutil.MakeWorkloadIdentity("wi-1", "garden-dev", "identity", testutil.CapabilityLabels("gcp"))

	s.UpsertWorkloadIdentity(wi)

	keys := virtualKeys(s)
	require.Equal(t, []string{"garden-dev/identity/gcp"}, keys)

	all := s.AllBindings()
	require.Len(t, all, 1)
	vb, ok := all[0].(types.VirtualBinding)
	require.True(t, ok)
	assert.Equal(t, types.KindWorkloadIdentity, vb.OwnerKind)
	assert.Equal(t, types.KindWorkloadIdentity, vb.BindingKind())
	assert.Equal(t, k8stypes.UID("wi-1-gcp"), vb.UID)
	assert.Equal(t, "identity", vb.CredentialsRef.Name)

	// Updating the identity's labels re-synthesizes, same as for secrets.
	wi.Labels = testutil.CapabilityLabels("aws")
	s.UpsertWorkloadIdentity(wi)
	assert.Equal(t, []string{"garden-dev/identity/aws"}, virtualKeys(s))
}

func TestVirtualBindingFields(t *testing.T) {
	s := New(nil)
	s.UpsertSecret(testutil.MakeSecret("u1", "a", "s1", testutil.CapabilityLabels("aws")))

	all := s.AllBindings()
	require.Len(t, all, 1)

	vb, ok := all[0].(types.VirtualBinding)
	require.True(t, ok)
	assert.Equal(t, "a/s1/aws", vb.BindingKey())
	assert.Equal(t, types.KindSecret, vb.BindingKind())
	assert.Equal(t, "aws", vb.Provider.Type)
	assert.Equal(t, k8stypes.UID("u1-aws"), vb.UID)
	assert.Equal(t, "Secret", vb.CredentialsRef.Kind)
	assert.Equal(t, k8stypes.UID("u1"), vb.CredentialsRef.UID)
}
