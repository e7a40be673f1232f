package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grolu/credcache/internal/datasource"
	"github.com/grolu/credcache/internal/store"
	"github.com/grolu/credcache/internal/types"
)

// bindingItem is the wire form of one binding view entry.
type bindingItem struct {
	Key          string        `json:"key"`
	Kind         types.Kind    `json:"kind"`
	ProviderType string        `json:"providerType"`
	Binding      types.Binding `json:"binding"`
}

type bindingsResponse struct {
	View  string        `json:"view"`
	Items []bindingItem `json:"items"`
}

type statusResponse struct {
	Namespace string       `json:"namespace"`
	Counts    store.Counts `json:"counts"`
	UpSince   string       `json:"upSince"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func wrapBindings(bindings []types.Binding) []bindingItem {
	items := make([]bindingItem, 0, len(bindings))
	for _, b := range bindings {
		items = append(items, bindingItem{
			Key:          b.BindingKey(),
			Kind:         b.BindingKind(),
			ProviderType: b.ProviderType(),
			Binding:      b,
		})
	}
	return items
}

// handleBindings serves the binding views (GET) and the create/update
// mutations (POST/PUT).
func (s *Server) handleBindings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBindings(w, r)
	case http.MethodPost:
		s.handleMutateBinding(w, r, s.manager.CreateBinding)
	case http.MethodPut:
		s.handleMutateBinding(w, r, s.manager.UpdateBinding)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListBindings(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "all"
	}

	var bindings []types.Binding
	switch view {
	case "all":
		bindings = s.store.AllBindings()
	case "infrastructure":
		bindings = s.store.InfrastructureBindings(s.classifier)
	case "dns":
		bindings = s.store.DNSBindings(s.classifier)
	case "explicit":
		for _, b := range s.store.ExplicitCredentialsBindings() {
			bindings = append(bindings, b)
		}
	default:
		s.writeError(w, http.StatusBadRequest, "unknown view "+view)
		return
	}

	s.writeJSON(w, http.StatusOK, bindingsResponse{View: view, Items: wrapBindings(bindings)})
}

func (s *Server) handleMutateBinding(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, params datasource.BindingParams) error) {
	var params datasource.BindingParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := mutate(r.Context(), params); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBindingByKey serves DELETE /api/v1/bindings/{namespace}/{name}.
func (s *Server) handleBindingByKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	namespace, name, ok := splitKeyPath(r.URL.Path, "/api/v1/bindings/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "expected /api/v1/bindings/{namespace}/{name}")
		return
	}
	if err := s.manager.DeleteBinding(r.Context(), datasource.BindingRef{Namespace: namespace, Name: name}); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func splitKeyPath(path, prefix string) (namespace, name string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	namespace, name, ok := splitKeyPath(r.URL.Path, "/api/v1/secrets/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "expected /api/v1/secrets/{namespace}/{name}")
		return
	}
	sec, found := s.store.GetSecret(namespace, name)
	if !found {
		s.writeError(w, http.StatusNotFound, "secret not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sec)
}

func (s *Server) handleGetWorkloadIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	namespace, name, ok := splitKeyPath(r.URL.Path, "/api/v1/workloadidentities/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "expected /api/v1/workloadidentities/{namespace}/{name}")
		return
	}
	wi, found := s.store.GetWorkloadIdentity(namespace, name)
	if !found {
		s.writeError(w, http.StatusNotFound, "workload identity not found")
		return
	}
	s.writeJSON(w, http.StatusOK, wi)
}

func (s *Server) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	namespace, name, ok := splitKeyPath(r.URL.Path, "/api/v1/quotas/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "expected /api/v1/quotas/{namespace}/{name}")
		return
	}
	q, found := s.store.GetQuota(namespace, name)
	if !found {
		s.writeError(w, http.StatusNotFound, "quota not found")
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Namespace: s.manager.Namespace(),
		Counts:    s.store.Count(),
		UpSince:   s.startTime.UTC().Format(time.RFC3339),
	})
}
