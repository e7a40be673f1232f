package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grolu/credcache/internal/classify"
	"github.com/grolu/credcache/internal/testutil"
	"github.com/grolu/credcache/internal/types"
)

func populatedStore() *Store {
	s := New(nil)
	s.ReplaceAll(&types.Snapshot{
		SecretBindings: []types.SecretBinding{
			testutil.MakeSecretBinding("sb-1", "garden-dev", "zz-classic", "aws", "classic-secret"),
			testutil.MakeSecretBinding("sb-2", "garden-dev", "aa-classic", "ignored", "other-secret"),
		},
		Secrets: []types.Secret{
			testutil.MakeSecret("sec-1", "garden-dev", "dns-creds", testutil.CapabilityLabels("cloudflare-dns")),
		},
		CredentialsBindings: []types.CredentialsBinding{
			testutil.MakeCredentialsBinding("cb-1", "garden-dev", "infra", "gcp", types.KindSecret, "gcp-secret"),
		},
	})
	return s
}

func testClassifier() *classify.Classifier {
	return classify.New(classify.Config{
		InfrastructureProviderTypes: []string{"aws", "gcp"},
		DNSProviderTypes:            []string{"cloudflare-dns"},
	})
}

func TestAllBindingsOrder(t *testing.T) {
	s := populatedStore()

	var keys []string
	for _, b := range s.AllBindings() {
		keys = append(keys, b.BindingKey())
	}

	// Secret bindings first (key order), then the credentials-bindings
	// mapping (explicit and virtual, key order).
	assert.Equal(t, []string{
		"garden-dev/aa-classic",
		"garden-dev/zz-classic",
		"garden-dev/dns-creds/cloudflare-dns",
		"garden-dev/infra",
	}, keys)
}

func TestExplicitCredentialsBindings(t *testing.T) {
	s := populatedStore()

	explicit := s.ExplicitCredentialsBindings()
	require.Len(t, explicit, 1)
	assert.Equal(t, "infra", explicit[0].Name)
}

func TestInfrastructureBindings(t *testing.T) {
	s := populatedStore()

	var keys []string
	for _, b := range s.InfrastructureBindings(testClassifier()) {
		keys = append(keys, b.BindingKey())
	}
	assert.Equal(t, []string{"garden-dev/zz-classic", "garden-dev/infra"}, keys)
}

func TestDNSBindings(t *testing.T) {
	s := populatedStore()

	dns := s.DNSBindings(testClassifier())
	require.Len(t, dns, 1)
	assert.Equal(t, "garden-dev/dns-creds/cloudflare-dns", dns[0].BindingKey())
}

func TestDNSBindingsExcludeShared(t *testing.T) {
	s := populatedStore()

	// A second DNS credential marked shared must not show up.
	labels := testutil.CapabilityLabels("cloudflare-dns")
	labels[classify.SharedLabel] = "true"
	s.UpsertSecret(testutil.MakeSecret("sec-2", "garden-dev", "shared-dns", labels))

	dns := s.DNSBindings(testClassifier())
	require.Len(t, dns, 1)
	assert.Equal(t, "garden-dev/dns-creds/cloudflare-dns", dns[0].BindingKey())
}
