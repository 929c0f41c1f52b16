// Package mutation serializes and applies credential writes. Every write goes
// through a Coordinator, which validates it locally, queues it per credential
// key, sends it, and rebuilds the store from a full refetch on success.
package mutation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joshuadavidthomas/aikeys/internal/access"
	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/catalog"
	"github.com/joshuadavidthomas/aikeys/internal/credstore"
	"github.com/joshuadavidthomas/aikeys/internal/fetch"
	"github.com/joshuadavidthomas/aikeys/internal/logging"
	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/secret"
)

// Config holds the optional collaborators of a Coordinator.
type Config struct {
	Notifier Notifier
	Metrics  *Metrics
	Fetch    fetch.Config
}

type Coordinator struct {
	backend  api.Backend
	store    *credstore.Store
	viewer   access.Viewer
	notifier Notifier
	metrics  *Metrics
	fetchCfg fetch.Config

	q       *queue
	refresh singleflight.Group

	fetchSeq atomic.Uint64
	applyMu  sync.Mutex
	applied  uint64
}

func New(backend api.Backend, store *credstore.Store, viewer access.Viewer, cfg Config) *Coordinator {
	n := cfg.Notifier
	if n == nil {
		n = LogNotifier{}
	}
	return &Coordinator{
		backend:  backend,
		store:    store,
		viewer:   viewer,
		notifier: n,
		metrics:  cfg.Metrics,
		fetchCfg: cfg.Fetch,
		q:        newQueue(),
	}
}

func (c *Coordinator) Store() *credstore.Store { return c.store }

func (c *Coordinator) superAdmin() bool {
	return c.viewer != nil && c.viewer.IsSuperAdmin()
}

// Refresh refetches both record sets and replaces the store snapshot.
// Concurrent callers share one fetch.
func (c *Coordinator) Refresh(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		return nil, c.reload(context.WithoutCancel(ctx))
	})
	return err
}

// reload fetches one generation and installs it unless a fetch that started
// later has already been installed.
func (c *Coordinator) reload(ctx context.Context) error {
	seq := c.fetchSeq.Add(1)
	snap, err := fetch.Snapshot(ctx, c.backend, c.fetchCfg)
	c.metrics.observeRefresh(err)
	if err != nil {
		return err
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if seq < c.applied {
		logging.FromContext(ctx).Debug("dropping stale fetch", "seq", seq, "applied", c.applied)
		return nil
	}
	c.applied = seq
	gen := c.store.Replace(snap)
	logging.FromContext(ctx).Debug("refreshed credential store", "generation", gen, "providers", len(snap.Providers))
	return nil
}

// Pending reports how many writes for key are in flight or queued.
func (c *Coordinator) Pending(key credstore.Key) int {
	return c.q.pending(slotKey(key))
}

// WriteKey is the credential key a SaveKey with scope would write: the
// shared record only for super admins, the personal record otherwise.
func (c *Coordinator) WriteKey(providerID string, scope models.Scope) credstore.Key {
	if scope == models.ScopeShared && c.superAdmin() {
		return credstore.SharedKey(providerID)
	}
	return credstore.PersonalKey(providerID)
}

// SaveKey writes value as the provider's key in scope. Shared scope writes the
// shared record when the viewer is a super admin and otherwise writes the
// personal record with use_shared_api set. An empty value clears the key. A
// value equal to the mask sentinel leaves the stored key untouched.
func (c *Coordinator) SaveKey(ctx context.Context, providerID string, scope models.Scope, value string) error {
	backendName, err := c.resolve(providerID, scope)
	if err != nil {
		return c.fail(ctx, OpSaveKey, providerID, scope, err)
	}
	key := c.WriteKey(providerID, scope)

	return c.do(ctx, key, OpSaveKey, scope, func(ctx context.Context) error {
		if key.Scope == models.ScopeShared {
			return c.writeShared(ctx, providerID, backendName, keyField(value))
		}
		return c.writePersonal(ctx, providerID, backendName, func(p *api.PersonalSettingPayload) {
			p.APIKey = keyField(value)
			p.UseSharedAPI = scope == models.ScopeShared
		})
	}, writeHooks{committed: func() {
		if value != models.MaskSentinel {
			c.store.Commit(key, value)
		}
	}})
}

// DeletePersonal clears the viewer's personal key for the provider.
func (c *Coordinator) DeletePersonal(ctx context.Context, providerID string) error {
	return c.deleteKey(ctx, providerID, models.ScopePersonal)
}

// DeleteShared clears the provider's shared key. Only super admins may.
func (c *Coordinator) DeleteShared(ctx context.Context, providerID string) error {
	if !c.superAdmin() {
		return c.fail(ctx, OpSaveKey, providerID, models.ScopeShared,
			&ProviderError{ProviderID: providerID, Scope: models.ScopeShared, Err: ErrSharedNotPermitted})
	}
	return c.deleteKey(ctx, providerID, models.ScopeShared)
}

// deleteKey clears the local value before the request settles, puts it back
// if the request fails or is superseded, and clears it again after the
// post-success refetch. The value put back is the one held when the request
// is sent, so a save that landed while the delete waited is not lost.
func (c *Coordinator) deleteKey(ctx context.Context, providerID string, scope models.Scope) error {
	backendName, err := c.resolve(providerID, scope)
	if err != nil {
		return c.fail(ctx, OpSaveKey, providerID, scope, err)
	}
	key := credstore.Key{ProviderID: providerID, Scope: scope}
	empty := ""

	prev, had := c.store.ClearLocal(key)
	return c.do(ctx, key, OpSaveKey, scope, func(ctx context.Context) error {
		if l, ok := c.store.LocalKey(key); ok && l.Value != "" && !l.Dirty {
			prev, had = c.store.ClearLocal(key)
		}
		var err error
		if scope == models.ScopeShared {
			err = c.writeShared(ctx, providerID, backendName, &empty)
		} else {
			err = c.writePersonal(ctx, providerID, backendName, func(p *api.PersonalSettingPayload) {
				p.APIKey = &empty
			})
		}
		if err != nil {
			c.store.RestoreLocal(key, prev, had)
		}
		return err
	}, writeHooks{
		committed:  func() { c.store.ClearLocal(key) },
		refreshed:  func() { c.store.ClearLocal(key) },
		superseded: func() { c.store.RestoreLocal(key, prev, had) },
	})
}

// ToggleActive sets the activation flag of the provider's credential in
// scope. Shared scope is for super admins only and needs the backend's
// numeric provider id; both are checked before any request.
func (c *Coordinator) ToggleActive(ctx context.Context, providerID string, next bool, scope models.Scope) error {
	backendName, err := c.resolve(providerID, scope)
	if err != nil {
		return c.fail(ctx, OpToggleActive, providerID, scope, err)
	}

	if scope == models.ScopeShared {
		if !c.superAdmin() {
			return c.fail(ctx, OpToggleActive, providerID, scope,
				&ProviderError{ProviderID: providerID, Scope: models.ScopeShared, Err: ErrSharedNotPermitted})
		}
		backendID, ok := c.store.BackendID(providerID)
		if !ok {
			return c.fail(ctx, OpToggleActive, providerID, scope,
				&ProviderError{ProviderID: providerID, Scope: scope, Err: ErrMissingBackendID})
		}
		return c.do(ctx, credstore.SharedKey(providerID), OpToggleActive, scope, func(ctx context.Context) error {
			return c.backend.ToggleProvider(ctx, backendID, next)
		}, writeHooks{})
	}

	return c.do(ctx, credstore.PersonalKey(providerID), OpToggleActive, scope, func(ctx context.Context) error {
		return c.writePersonal(ctx, providerID, backendName, func(p *api.PersonalSettingPayload) {
			p.IsActive = next
		})
	}, writeHooks{})
}

// ToggleUseShared sets the viewer's opt-in to the shared key. It only ever
// writes the personal record. Opting in is refused locally when the viewer
// cannot use the shared key.
func (c *Coordinator) ToggleUseShared(ctx context.Context, providerID string, next bool) error {
	scope := models.ScopePersonal
	backendName, err := c.resolve(providerID, scope)
	if err != nil {
		return c.fail(ctx, OpToggleUseShared, providerID, scope, err)
	}
	if next {
		desc, _ := c.store.Descriptor(providerID)
		st := access.ResolveCredential(desc, c.store.Credential(providerID), c.superAdmin())
		if !st.CanUseShared {
			return c.fail(ctx, OpToggleUseShared, providerID, scope,
				&ProviderError{ProviderID: providerID, Scope: models.ScopeShared, Err: ErrSharedNotPermitted})
		}
	}

	return c.do(ctx, credstore.PersonalKey(providerID), OpToggleUseShared, scope, func(ctx context.Context) error {
		return c.writePersonal(ctx, providerID, backendName, func(p *api.PersonalSettingPayload) {
			p.UseSharedAPI = next
		})
	}, writeHooks{})
}

func (c *Coordinator) resolve(providerID string, scope models.Scope) (string, error) {
	if !scope.Valid() {
		return "", &ProviderError{ProviderID: providerID, Scope: scope, Err: fmt.Errorf("invalid scope %q", scope)}
	}
	name, ok := catalog.ResolveBackendName(providerID)
	if !ok {
		return "", &ProviderError{ProviderID: providerID, Scope: scope, Err: ErrUnresolvableProvider}
	}
	return name, nil
}

// writeHooks are optional callbacks around a queued write. committed runs
// after the write succeeds and before the refetch, refreshed after the
// refetch. superseded runs instead of the write when a newer request of the
// same op replaces it.
type writeHooks struct {
	committed  func()
	refreshed  func()
	superseded func()
}

// do runs write in the key's queue slot. On success it refetches while still
// holding the slot so the next queued write sees fresh record ids. The
// refetch does not join an in-flight Refresh, which may have started before
// the write landed. Failures are reported from inside the slot, so a caller
// that stops waiting still hears about them.
func (c *Coordinator) do(ctx context.Context, key credstore.Key, op Op, scope models.Scope, write func(context.Context) error, h writeHooks) error {
	logger := logging.ForProvider(ctx, key.ProviderID, string(key.Scope))

	return c.q.enqueue(ctx, slotKey(key), &job{
		op: op,
		run: func(ctx context.Context) error {
			start := time.Now()
			err := write(ctx)
			c.metrics.observeMutation(op, string(key.Scope), err, time.Since(start).Seconds())
			if err != nil {
				c.notifier.Notify(ctx, Notification{
					Level:      LevelError,
					ProviderID: key.ProviderID,
					Scope:      scope,
					Op:         op,
					Message:    err.Error(),
					Err:        err,
				})
				return err
			}
			logger.Debug("mutation accepted", "op", op)
			if h.committed != nil {
				h.committed()
			}
			c.store.Invalidate(key)
			if rerr := c.reload(ctx); rerr != nil {
				c.notifier.Notify(ctx, Notification{
					Level:      LevelWarn,
					ProviderID: key.ProviderID,
					Scope:      key.Scope,
					Op:         op,
					Message:    "Saved, but reloading provider settings failed: " + rerr.Error(),
					Err:        rerr,
				})
			}
			if h.refreshed != nil {
				h.refreshed()
			}
			return nil
		},
		superseded: func() {
			logger.Debug("mutation superseded", "op", op)
			c.metrics.observeMutation(op, string(key.Scope), ErrSuperseded, 0)
			if h.superseded != nil {
				h.superseded()
			}
		},
	})
}

// slotKey maps key onto its backend provider, so frontend ids that share a
// backend record also share a queue slot.
func slotKey(key credstore.Key) credstore.Key {
	if name, ok := catalog.ResolveBackendName(key.ProviderID); ok {
		key.ProviderID = name
	}
	return key
}

func (c *Coordinator) fail(ctx context.Context, op Op, providerID string, scope models.Scope, err error) error {
	c.metrics.observeMutation(op, string(scope), err, 0)
	c.notifier.Notify(ctx, Notification{
		Level:      LevelError,
		ProviderID: providerID,
		Scope:      scope,
		Op:         op,
		Message:    err.Error(),
		Err:        err,
	})
	return err
}

// writePersonal sends the current personal record with edit applied. The
// record is read when the request is sent, not when it was queued, so queued
// writes of different kinds compose.
func (c *Coordinator) writePersonal(ctx context.Context, providerID, backendName string, edit func(*api.PersonalSettingPayload)) error {
	rec, ok := c.store.Personal(providerID)
	p := api.PersonalSettingPayload{
		ID:           rec.ID,
		ProviderName: backendName,
		UseSharedAPI: rec.UseSharedAPI,
		IsActive:     rec.IsActive || !ok,
	}
	edit(&p)
	_, err := c.backend.SavePersonalSetting(ctx, p)
	return err
}

func (c *Coordinator) writeShared(ctx context.Context, providerID, backendName string, value *string) error {
	var idp *int64
	if id, ok := c.store.BackendID(providerID); ok {
		idp = &id
	}
	rec, ok := c.store.Shared(providerID)
	logging.FromContext(ctx).Debug("writing shared key", "provider", providerID, "create", idp == nil, "value", redacted(value))
	_, err := c.backend.SaveSharedKey(ctx, idp, api.SharedKeyPayload{
		ProviderName: backendName,
		SharedAPIKey: value,
		IsActive:     rec.IsActive || !ok,
	})
	return err
}

// keyField maps a submitted value to the wire field: nil for the mask
// sentinel, which leaves the stored key alone, and the value otherwise.
func keyField(value string) *string {
	if value == models.MaskSentinel {
		return nil
	}
	return &value
}

func redacted(v *string) string {
	if v == nil {
		return "(unchanged)"
	}
	return secret.Redact(*v)
}
