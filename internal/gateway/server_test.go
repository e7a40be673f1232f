package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grolu/credcache/internal/classify"
	"github.com/grolu/credcache/internal/credentials"
	"github.com/grolu/credcache/internal/datasource"
	"github.com/grolu/credcache/internal/store"
	"github.com/grolu/credcache/internal/testutil"
	"github.com/grolu/credcache/internal/types"
)

type fakeSource struct {
	snapshot     *types.Snapshot
	createResult *datasource.BindingResult
	updateResult *datasource.BindingResult
	deleteErr    error
}

func (f *fakeSource) Fetch(context.Context, string) (*types.Snapshot, error) {
	if f.snapshot == nil {
		return &types.Snapshot{}, nil
	}
	return f.snapshot, nil
}

func (f *fakeSource) CreateBinding(context.Context, datasource.BindingParams) (*datasource.BindingResult, error) {
	return f.createResult, nil
}

func (f *fakeSource) UpdateBinding(context.Context, datasource.BindingParams) (*datasource.BindingResult, error) {
	return f.updateResult, nil
}

func (f *fakeSource) DeleteBinding(context.Context, datasource.BindingRef) error {
	return f.deleteErr
}

func newTestServer(source *fakeSource, opts ServerOptions) (*Server, *store.Store) {
	st := store.New(nil)
	manager := credentials.New(zap.NewNop(), source, st, nil, "garden-dev")
	classifier := classify.New(classify.Config{
		InfrastructureProviderTypes: []string{"aws", "gcp"},
		DNSProviderTypes:            []string{"aws-route53"},
	})
	return NewServer(st, manager, classifier, opts), st
}

func seedStore(st *store.Store) {
	st.ReplaceAll(&types.Snapshot{
		SecretBindings: []types.SecretBinding{
			testutil.MakeSecretBinding("sb1", "garden-dev", "classic", "aws", "creds"),
		},
		Secrets: []types.Secret{
			testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws-route53")),
		},
		WorkloadIdentities: []types.WorkloadIdentity{
			testutil.MakeWorkloadIdentity("wi1", "garden-dev", "ci-identity", nil),
		},
		Quotas: []types.Quota{
			testutil.MakeQuota("q1", "garden-dev", "default-quota"),
		},
	})
}

func TestListBindingViews(t *testing.T) {
	srv, st := newTestServer(&fakeSource{}, ServerOptions{})
	seedStore(st)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		view     string
		wantKeys []string
	}{
		{view: "all", wantKeys: []string{"garden-dev/classic", "garden-dev/creds/aws-route53"}},
		{view: "infrastructure", wantKeys: []string{"garden-dev/classic"}},
		{view: "dns", wantKeys: []string{"garden-dev/creds/aws-route53"}},
		{view: "explicit", wantKeys: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/v1/bindings?view=" + tt.view)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				View  string `json:"view"`
				Items []struct {
					Key string `json:"key"`
				} `json:"items"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.view, body.View)

			keys := make([]string, 0, len(body.Items))
			for _, item := range body.Items {
				keys = append(keys, item.Key)
			}
			assert.ElementsMatch(t, tt.wantKeys, keys)
		})
	}
}

func TestListBindingsUnknownView(t *testing.T) {
	srv, _ := newTestServer(&fakeSource{}, ServerOptions{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/bindings?view=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateBindingEndpoint(t *testing.T) {
	binding := testutil.MakeCredentialsBinding("cb1", "garden-dev", "new", "aws", types.KindSecret, "new-secret")
	srv, st := newTestServer(&fakeSource{createResult: &datasource.BindingResult{Binding: &binding}}, ServerOptions{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	payload, err := json.Marshal(datasource.BindingParams{
		Namespace:       "garden-dev",
		Name:            "new",
		ProviderType:    "aws",
		CredentialsKind: types.KindSecret,
		CredentialsName: "new-secret",
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/bindings", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bindings := st.AllBindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "garden-dev/new", bindings[0].BindingKey())
}

func TestDeleteBindingEndpoint(t *testing.T) {
	srv, st := newTestServer(&fakeSource{}, ServerOptions{})
	st.UpsertCredentialsBinding(testutil.MakeCredentialsBinding("cb1", "garden-dev", "doomed", "aws", types.KindSecret, "creds"))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/bindings/garden-dev/doomed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Delete triggers a full refetch from the (empty) source.
	assert.Empty(t, st.AllBindings())
}

func TestPointLookups(t *testing.T) {
	srv, st := newTestServer(&fakeSource{}, ServerOptions{})
	seedStore(st)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	tests := []struct {
		path       string
		wantStatus int
	}{
		{path: "/api/v1/secrets/garden-dev/creds", wantStatus: http.StatusOK},
		{path: "/api/v1/secrets/garden-dev/missing", wantStatus: http.StatusNotFound},
		{path: "/api/v1/workloadidentities/garden-dev/ci-identity", wantStatus: http.StatusOK},
		{path: "/api/v1/workloadidentities/garden-dev/missing", wantStatus: http.StatusNotFound},
		{path: "/api/v1/quotas/garden-dev/default-quota", wantStatus: http.StatusOK},
		{path: "/api/v1/quotas/garden-dev/missing", wantStatus: http.StatusNotFound},
		{path: "/api/v1/secrets/garden-dev", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(strings.TrimPrefix(tt.path, "/api/v1/"), func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, st := newTestServer(&fakeSource{}, ServerOptions{})
	seedStore(st)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "garden-dev", status.Namespace)
	assert.Equal(t, 1, status.Counts.SecretBindings)
	assert.Equal(t, 1, status.Counts.Secrets)
	assert.Equal(t, 1, status.Counts.WorkloadIdentities)
	assert.Equal(t, 1, status.Counts.Quotas)
	assert.Equal(t, 1, status.Counts.VirtualBindings)
	assert.NotEmpty(t, status.UpSince)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(&fakeSource{}, ServerOptions{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialWS(ts *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(wsURL(ts), header)
}

func TestWebSocketOriginAllowList(t *testing.T) {
	srv, _ := newTestServer(&fakeSource{}, ServerOptions{
		AllowedOrigins: []string{"https://dashboard.example.com"},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := dialWS(ts, "https://dashboard.example.com")
	require.NoError(t, err)
	conn.Close()

	_, resp, err := dialWS(ts, "https://evil.example.com")
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestWebSocketEmptyAllowListAcceptsAnyOrigin(t *testing.T) {
	srv, _ := newTestServer(&fakeSource{}, ServerOptions{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := dialWS(ts, "https://anywhere.example.com")
	require.NoError(t, err)
	conn.Close()
}

func TestBroadcastReachesClients(t *testing.T) {
	srv, st := newTestServer(&fakeSource{}, ServerOptions{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := dialWS(ts, "")
	require.NoError(t, err)
	defer conn.Close()

	// The handler registers the client before entering its write loop; poll
	// until it shows up so the broadcast can't race the registration.
	require.Eventually(t, func() bool {
		srv.mu.RLock()
		defer srv.mu.RUnlock()
		return len(srv.wsClients) == 1
	}, 5*time.Second, 10*time.Millisecond)

	st.UpsertSecret(testutil.MakeSecret("u1", "garden-dev", "creds", testutil.CapabilityLabels("aws")))
	srv.Broadcast(store.Event{Type: store.EventUpsert, Kind: types.KindSecret, Key: "garden-dev/creds"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event store.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, store.EventUpsert, event.Type)
	assert.Equal(t, "garden-dev/creds", event.Key)
}
