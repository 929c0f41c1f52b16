// Package console is the read model and intent surface rendering code binds
// to. It never writes the credential store directly; every change goes
// through the mutation coordinator.
package console

import (
	"context"
	"sync"

	"github.com/joshuadavidthomas/aikeys/internal/access"
	"github.com/joshuadavidthomas/aikeys/internal/credstore"
	"github.com/joshuadavidthomas/aikeys/internal/models"
	"github.com/joshuadavidthomas/aikeys/internal/mutation"
	"github.com/joshuadavidthomas/aikeys/internal/secret"
)

// ProviderView is one row of the console: the provider, its resolved access
// state and the display form of the key in effect.
type ProviderView struct {
	Descriptor models.ProviderDescriptor   `json:"provider" yaml:"provider"`
	State      models.EffectiveAccessState `json:"state" yaml:"state"`
	DisplayKey string                      `json:"key,omitempty" yaml:"key,omitempty"`
	Pending    bool                        `json:"pending,omitempty" yaml:"pending,omitempty"`
}

type Options struct {
	// RevealKeys shows locally held keys in full instead of masked.
	RevealKeys bool
}

type Console struct {
	coord  *mutation.Coordinator
	viewer access.Viewer
	opts   Options

	wg sync.WaitGroup
}

func New(coord *mutation.Coordinator, viewer access.Viewer, opts Options) *Console {
	return &Console{coord: coord, viewer: viewer, opts: opts}
}

// Load refetches everything.
func (c *Console) Load(ctx context.Context) error {
	return c.coord.Refresh(ctx)
}

func (c *Console) superAdmin() bool {
	return c.viewer != nil && c.viewer.IsSuperAdmin()
}

// Views returns a snapshot of every displayed provider.
func (c *Console) Views() []ProviderView {
	store := c.coord.Store()
	descs := store.Providers()
	out := make([]ProviderView, 0, len(descs))
	for _, d := range descs {
		out = append(out, c.view(store, d))
	}
	return out
}

func (c *Console) View(providerID string) (ProviderView, bool) {
	store := c.coord.Store()
	d, ok := store.Descriptor(providerID)
	if !ok {
		return ProviderView{}, false
	}
	return c.view(store, d), true
}

func (c *Console) view(store *credstore.Store, d models.ProviderDescriptor) ProviderView {
	id := d.FrontendID
	st := access.ResolveForViewer(d, store.Credential(id), c.viewer)
	v := ProviderView{
		Descriptor: d,
		State:      st,
		Pending:    c.coord.Pending(credstore.PersonalKey(id))+c.coord.Pending(credstore.SharedKey(id)) > 0,
	}
	if st.AccessStatus == models.AccessNoAccess {
		return v
	}
	if l, ok := store.LocalKey(c.displayKey(id, st)); ok {
		v.DisplayKey = secret.Display(l.Value, c.opts.RevealKeys)
	}
	return v
}

// displayKey picks the credential whose key is shown. Only a super admin
// using the shared key sees the shared value.
func (c *Console) displayKey(providerID string, st models.EffectiveAccessState) credstore.Key {
	if st.UseShared && c.superAdmin() {
		return credstore.SharedKey(providerID)
	}
	return credstore.PersonalKey(providerID)
}

// LocalKey returns the locally held key for providerID in scope, unmasked.
func (c *Console) LocalKey(providerID string, scope models.Scope) string {
	l, _ := c.coord.Store().LocalKey(credstore.Key{ProviderID: providerID, Scope: scope})
	return l.Value
}

// Subscribe forwards store change events to fn.
func (c *Console) Subscribe(fn func(credstore.Event)) func() {
	return c.coord.Store().Subscribe(fn)
}

func (c *Console) SaveKey(ctx context.Context, providerID string, scope models.Scope, value string) *Intent {
	return c.start(ctx, mutation.OpSaveKey, providerID, scope, func(ctx context.Context) error {
		return c.coord.SaveKey(ctx, providerID, scope, value)
	})
}

// DeleteKey clears the key in scope.
func (c *Console) DeleteKey(ctx context.Context, providerID string, scope models.Scope) *Intent {
	return c.start(ctx, mutation.OpSaveKey, providerID, scope, func(ctx context.Context) error {
		if scope == models.ScopeShared {
			return c.coord.DeleteShared(ctx, providerID)
		}
		return c.coord.DeletePersonal(ctx, providerID)
	})
}

func (c *Console) ToggleActive(ctx context.Context, providerID string, next bool, scope models.Scope) *Intent {
	return c.start(ctx, mutation.OpToggleActive, providerID, scope, func(ctx context.Context) error {
		return c.coord.ToggleActive(ctx, providerID, next, scope)
	})
}

func (c *Console) ToggleUseShared(ctx context.Context, providerID string, next bool) *Intent {
	return c.start(ctx, mutation.OpToggleUseShared, providerID, models.ScopePersonal, func(ctx context.Context) error {
		return c.coord.ToggleUseShared(ctx, providerID, next)
	})
}

// start runs fn in the background, detached from ctx's cancellation.
func (c *Console) start(ctx context.Context, op mutation.Op, providerID string, scope models.Scope, fn func(context.Context) error) *Intent {
	in := newIntent(op, providerID, scope)
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		in.settle(fn(ctx))
	}()
	return in
}

// Wait blocks until every started intent has settled.
func (c *Console) Wait() {
	c.wg.Wait()
}
