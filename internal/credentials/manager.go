// Package credentials exposes the mutation surface of the cache: full
// refresh and single-binding create/update/delete, each composing the data
// source, the normalized store, and the notification sink.
package credentials

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grolu/credcache/internal/datasource"
	"github.com/grolu/credcache/internal/notifier"
	"github.com/grolu/credcache/internal/store"
	"github.com/grolu/credcache/internal/util"
)

// Manager owns all mutations of one Store. Calls are expected to be
// serialized by the caller; the manager performs no deduplication of
// concurrent refreshes and never retries.
type Manager struct {
	logger    *zap.Logger
	source    datasource.Interface
	store     *store.Store
	sink      notifier.Sink
	namespace string
}

// New creates a Manager scoped to one namespace.
func New(logger *zap.Logger, source datasource.Interface, st *store.Store, sink notifier.Sink, namespace string) *Manager {
	return &Manager{
		logger:    logger.Named("credentials"),
		source:    source,
		store:     st,
		sink:      sink,
		namespace: namespace,
	}
}

// Namespace returns the namespace scope this manager serves.
func (m *Manager) Namespace() string { return m.namespace }

// FetchAll refreshes the store from one full fetch. On failure the store is
// reset to empty before the error is returned, so readers never see a
// partially merged state.
func (m *Manager) FetchAll(ctx context.Context) error {
	snap, err := m.source.Fetch(ctx, m.namespace)
	if err != nil {
		m.store.Reset()
		return fmt.Errorf("fetching credentials for %q: %w", m.namespace, err)
	}
	m.store.ReplaceAll(snap)
	return nil
}

// applyResult upserts exactly the authoritative records the backend
// returned. The secret upsert re-synthesizes its virtual bindings.
func (m *Manager) applyResult(result *datasource.BindingResult) {
	if result == nil {
		return
	}
	if result.Secret != nil {
		m.store.UpsertSecret(*result.Secret)
	}
	if result.Binding != nil {
		m.store.UpsertCredentialsBinding(*result.Binding)
	}
}

func (m *Manager) notify(ctx context.Context, action, key, message string) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Notify(ctx, notifier.Event{Action: action, Key: key, Message: message}); err != nil {
		m.logger.Warn("Notification failed", zap.String("action", action), zap.Error(err))
	}
}

// CreateBinding persists a new binding and folds the backend's response into
// the store. The request parameters are never stored; the server may have
// normalized fields.
func (m *Manager) CreateBinding(ctx context.Context, params datasource.BindingParams) error {
	result, err := m.source.CreateBinding(ctx, params)
	if err != nil {
		return fmt.Errorf("creating binding %s: %w", util.Key(params.Namespace, params.Name), err)
	}
	m.applyResult(result)

	key := util.Key(params.Namespace, params.Name)
	if result.Binding != nil {
		key = result.Binding.BindingKey()
	}
	m.notify(ctx, "created", key, fmt.Sprintf("Credentials binding %s has been created", key))
	return nil
}

// UpdateBinding persists changes to an existing binding and folds the
// backend's response into the store.
func (m *Manager) UpdateBinding(ctx context.Context, params datasource.BindingParams) error {
	result, err := m.source.UpdateBinding(ctx, params)
	if err != nil {
		return fmt.Errorf("updating binding %s: %w", util.Key(params.Namespace, params.Name), err)
	}
	m.applyResult(result)

	key := util.Key(params.Namespace, params.Name)
	if result.Binding != nil {
		key = result.Binding.BindingKey()
	}
	m.notify(ctx, "updated", key, fmt.Sprintf("Credentials binding %s has been updated", key))
	return nil
}

// DeleteBinding deletes the binding at the backend and then re-fetches
// everything. Delegating delete consistency to a full refresh costs one
// round trip and removes all local bookkeeping for cascaded cleanup.
func (m *Manager) DeleteBinding(ctx context.Context, ref datasource.BindingRef) error {
	key := util.Key(ref.Namespace, ref.Name)
	if err := m.source.DeleteBinding(ctx, ref); err != nil {
		return fmt.Errorf("deleting binding %s: %w", key, err)
	}
	if err := m.FetchAll(ctx); err != nil {
		return err
	}
	m.notify(ctx, "deleted", key, fmt.Sprintf("Credentials binding %s has been deleted", key))
	return nil
}
